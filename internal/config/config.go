package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxUploadBytes int64
}

type PostgresConfig struct {
	DSN              string
	MaxOpen          int
	MaxIdle          int
	ConnMaxLifetime  time.Duration
	StatementTimeout time.Duration // zero keeps the server default
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
}

type StorageConfig struct {
	Enabled        bool
	Endpoint       string
	AccessKey      string
	SecretKey      string
	BucketEvidence string
	UseSSL         bool
	Region         string
}

type SecurityConfig struct {
	ModeratorSecret string
}

type GuardConfig struct {
	TextFields []string
	FileField  string
	MaxWidth   int
	MaxHeight  int
}

type OCRConfig struct {
	Endpoint           string
	Languages          []string
	Timeout            time.Duration
	MaxConcurrent      int64
	BreakerTimeout     time.Duration
	BreakerMaxFailures uint32
}

type LexiconConfig struct {
	Path  string
	Terms []string
}

type AuditConfig struct {
	// Mode is "direct" (write to postgres inline) or "stream" (publish to
	// redis and let the worker persist).
	Mode string
}

type QueueConfig struct {
	ClaimInterval time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Guard            GuardConfig
	OCR              OCRConfig
	Lexicon          LexiconConfig
	Audit            AuditConfig
	Queues           QueueConfig
	AllowCORSOrigins []string
}

const (
	AuditModeDirect = "direct"
	AuditModeStream = "stream"
)

var DefaultTextFields = []string{"bio", "name", "description", "message", "petName", "content", "title"}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("CONTENTGUARD")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.Audit.Mode {
	case AuditModeDirect, AuditModeStream:
	default:
		return fmt.Errorf("invalid audit mode %q", c.Audit.Mode)
	}
	if c.Guard.MaxWidth <= 0 || c.Guard.MaxHeight <= 0 {
		return fmt.Errorf("guard dimensions must be positive")
	}
	if c.OCR.MaxConcurrent <= 0 {
		return fmt.Errorf("ocr.maxconcurrent must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.maxuploadbytes", 10<<20)

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.statementtimeout", "5s")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "moderation:audit")
	v.SetDefault("redis.group", "moderation-workers")
	v.SetDefault("redis.consumer", "worker-1")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.bucketevidence", "contentguard-evidence")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("guard.textfields", DefaultTextFields)
	v.SetDefault("guard.filefield", "file")
	v.SetDefault("guard.maxwidth", 10000)
	v.SetDefault("guard.maxheight", 10000)

	v.SetDefault("ocr.endpoint", "http://127.0.0.1:8884")
	v.SetDefault("ocr.languages", []string{"eng", "spa"})
	v.SetDefault("ocr.timeout", "15s")
	v.SetDefault("ocr.maxconcurrent", 4)
	v.SetDefault("ocr.breakertimeout", "30s")
	v.SetDefault("ocr.breakermaxfailures", 5)

	v.SetDefault("audit.mode", AuditModeDirect)

	v.SetDefault("queues.claiminterval", "30s")
}
