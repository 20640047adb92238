package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"petamigos/contentguard/internal/guard"
	"petamigos/contentguard/internal/media/sniffer"
)

// ContentGuardKey holds the guard.Decision for handlers behind ContentGuard.
const ContentGuardKey = "content_guard"

const multipartMemory = 8 << 20

var errNotObject = errors.New("json body is not an object")

type Evaluator interface {
	Evaluate(ctx context.Context, sub guard.Submission) guard.Decision
	// Fields lists the text fields the evaluator scans.
	Fields() []string
}

type GuardOptions struct {
	FileField      string
	MaxUploadBytes int64
}

func ContentGuard(gate Evaluator, opts GuardOptions, log zerolog.Logger) gin.HandlerFunc {
	if opts.FileField == "" {
		opts.FileField = "file"
	}

	return func(c *gin.Context) {
		if opts.MaxUploadBytes > 0 && c.Request.Body != nil && c.Request.Body != http.NoBody {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, opts.MaxUploadBytes)
		}

		sub, err := extractSubmission(c, opts.FileField, gate.Fields(), log)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload_too_large"})
				return
			}
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("unreadable submission")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
			return
		}

		decision := gate.Evaluate(c.Request.Context(), sub)
		c.Set(ContentGuardKey, decision)

		if !decision.Allowed {
			body := gin.H{"error": decision.Error}
			if decision.Details != "" {
				body["details"] = decision.Details
			}
			c.AbortWithStatusJSON(decision.Status, body)
			return
		}

		c.Next()
	}
}

// GuardDecision returns the decision stored by ContentGuard.
func GuardDecision(c *gin.Context) (guard.Decision, bool) {
	val, ok := c.Get(ContentGuardKey)
	if !ok {
		return guard.Decision{}, false
	}
	d, ok := val.(guard.Decision)
	return d, ok
}

func extractSubmission(c *gin.Context, fileField string, known []string, log zerolog.Logger) (guard.Submission, error) {
	sub := guard.Submission{Fields: map[string]string{}}
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return sub, nil
	}

	switch c.ContentType() {
	case gin.MIMEJSON:
		return sub, readJSONFields(c, sub.Fields, known)
	case gin.MIMEPOSTForm:
		if err := c.Request.ParseForm(); err != nil {
			return sub, fmt.Errorf("parse form: %w", err)
		}
		for key, values := range c.Request.PostForm {
			if len(values) > 0 {
				sub.Fields[key] = values[0]
			}
		}
		return sub, nil
	case gin.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
			return sub, fmt.Errorf("parse multipart: %w", err)
		}
		form := c.Request.MultipartForm
		for key, values := range form.Value {
			if len(values) > 0 {
				sub.Fields[key] = values[0]
			}
		}
		if headers := form.File[fileField]; len(headers) > 0 {
			file, err := readAttachment(headers[0], log)
			if err != nil {
				return sub, err
			}
			sub.File = file
		}
		return sub, nil
	default:
		return sub, nil
	}
}

// readJSONFields keeps top-level string values and puts the body back for
// the next handler. encoding/json binds keys to struct tags
// case-insensitively, so every key that folds to a scanned field is
// collected under that field's name, one value per line.
func readJSONFields(c *gin.Context, fields map[string]string, known []string) error {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("%w: %v", errNotObject, err)
	}
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var s string
		if err := json.Unmarshal(payload[key], &s); err != nil {
			continue
		}
		name := canonicalField(key, known)
		if prev, ok := fields[name]; ok {
			s = prev + "\n" + s
		}
		fields[name] = s
	}
	return nil
}

func canonicalField(key string, known []string) string {
	for _, name := range known {
		if strings.EqualFold(key, name) {
			return name
		}
	}
	return key
}

func readAttachment(header *multipart.FileHeader, log zerolog.Logger) (*guard.Attachment, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	declared := sniffer.MimeTypeFromHTTP(http.Header(header.Header))
	contentType := declared
	if sniffed, err := sniffer.DetectHead(data); err == nil {
		if declared != "" && declared != sniffed.MIME {
			log.Debug().
				Str("filename", header.Filename).
				Str("declared", declared).
				Str("sniffed", sniffed.MIME).
				Msg("upload content type mismatch")
		}
		contentType = sniffed.MIME
	}

	return &guard.Attachment{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}
