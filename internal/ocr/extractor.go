// Package ocr pulls visible text out of uploaded images and runs it
// through the lexical scanner.
//
// Engine failures fail open: the upload is allowed and the result carries
// ReasonSkipped. Format failures fail secure.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"petamigos/contentguard/internal/metrics"
	"petamigos/contentguard/internal/models"
)

const (
	ReasonSkipped       = "OCR Analysis skipped due to error"
	forbiddenTextPrefix = "Image contains forbidden text: "
)

var (
	DefaultLanguages = []string{"eng", "spa"}

	ErrEnginePanic = errors.New("ocr engine panicked")
)

type FormatValidator interface {
	ValidateFormat(data []byte) models.ScanResult
}

type TextScanner interface {
	Scan(text string) models.ScanResult
}

type Options struct {
	Languages     []string
	Timeout       time.Duration
	MaxConcurrent int64
}

type Extractor struct {
	formats   FormatValidator
	engine    Engine
	scanner   TextScanner
	languages []string
	timeout   time.Duration
	slots     *semaphore.Weighted
	log       zerolog.Logger
}

func NewExtractor(formats FormatValidator, engine Engine, scanner TextScanner, opts Options, log zerolog.Logger) *Extractor {
	languages := opts.Languages
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Extractor{
		formats:   formats,
		engine:    engine,
		scanner:   scanner,
		languages: languages,
		timeout:   opts.Timeout,
		slots:     semaphore.NewWeighted(maxConcurrent),
		log:       log,
	}
}

func (x *Extractor) ScanImageForText(ctx context.Context, data []byte) models.ScanResult {
	if result := x.formats.ValidateFormat(data); !result.Safe {
		return result
	}

	text, err := x.recognize(ctx, data)
	if err != nil {
		cause := skipCause(err)
		metrics.OCRSkipped.WithLabelValues(cause).Inc()
		x.log.Warn().Err(err).Str("cause", cause).Msg("ocr analysis skipped, allowing upload")
		return models.PassWithNote(ReasonSkipped)
	}

	if result := x.scanner.Scan(text); !result.Safe {
		return models.Block(forbiddenTextPrefix + result.Reason)
	}
	return models.Pass()
}

type recognition struct {
	text string
	err  error
}

// recognize runs the engine off the caller's goroutine so an engine that
// ignores its context still cannot hold the request past the deadline.
// The concurrency slot is released only when the engine call returns.
func (x *Extractor) recognize(ctx context.Context, data []byte) (string, error) {
	var cancel context.CancelFunc
	if x.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, x.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	if err := x.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire ocr slot: %w", err)
	}

	start := time.Now()
	done := make(chan recognition, 1)
	go func() {
		defer x.slots.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- recognition{err: fmt.Errorf("%w: %v", ErrEnginePanic, r)}
			}
		}()
		text, err := x.engine.Recognize(ctx, data, x.languages)
		done <- recognition{text: text, err: err}
	}()

	select {
	case out := <-done:
		metrics.OCRDuration.Observe(time.Since(start).Seconds())
		return out.text, out.err
	case <-ctx.Done():
		return "", fmt.Errorf("recognize: %w", ctx.Err())
	}
}

func skipCause(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrEnginePanic):
		return "panic"
	case IsBreakerOpen(err):
		return "breaker_open"
	default:
		return "engine_error"
	}
}
