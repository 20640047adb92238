package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"petamigos/contentguard/internal/config"
	"petamigos/contentguard/internal/middleware"
	"petamigos/contentguard/internal/models"
	"petamigos/contentguard/internal/security"
)

// ReviewStore is the read side of the moderation store plus reviewer
// decisions.
type ReviewStore interface {
	ListPending(ctx context.Context, limit, offset int) ([]models.AuditRecord, error)
	CountPending(ctx context.Context) (int, error)
	GetByID(ctx context.Context, id string) (models.AuditRecord, error)
	AppendReview(ctx context.Context, review models.Review) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Reviews ReviewStore
	// Guard wraps every content-accepting route.
	Guard gin.HandlerFunc
	DB    Pinger
	Cache redis.Cmdable
}

type HandlerSet struct {
	log     zerolog.Logger
	cfg     *config.AppConfig
	reviews ReviewStore
	guard   gin.HandlerFunc
	db      Pinger
	cache   redis.Cmdable
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Deps) HandlerSet {
	return HandlerSet{
		log:     log,
		cfg:     cfg,
		reviews: deps.Reviews,
		guard:   deps.Guard,
		db:      deps.DB,
		cache:   deps.Cache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	guarded := v1.Group("")
	guarded.Use(h.guard)
	guarded.POST("/profile", h.AcceptContent)
	guarded.POST("/pets", h.AcceptContent)
	guarded.POST("/messages", h.AcceptContent)
	guarded.POST("/media/upload", h.AcceptContent)

	moderation := v1.Group("/moderation")
	moderation.Use(
		middleware.ModeratorAuth(h.cfg.Security.ModeratorSecret),
		middleware.RequireRoles(security.RoleModerator, security.RoleAdmin),
	)
	moderation.GET("/pending", h.ListPending)
	moderation.GET("/:id", h.GetRecord)
	moderation.POST("/:id/approve", h.Approve)
	moderation.POST("/:id/reject", h.Reject)
}
