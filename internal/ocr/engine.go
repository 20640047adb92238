package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const (
	recognizePath   = "/tesseract"
	maxResponseSize = 1 << 20
)

var ErrEngineStatus = errors.New("ocr engine returned non-200 status")

// Engine extracts visible text from raw image bytes.
type Engine interface {
	Recognize(ctx context.Context, image []byte, languages []string) (string, error)
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type recognizeOptions struct {
	Languages []string `json:"languages"`
}

type recognizeResponse struct {
	Data struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	} `json:"data"`
}

// HTTPEngine talks to a tesseract-server compatible HTTP service.
type HTTPEngine struct {
	endpoint string
	client   HTTPClient
	breaker  CircuitBreaker
	log      zerolog.Logger
}

func NewHTTPEngine(endpoint string, client HTTPClient, breaker CircuitBreaker, log zerolog.Logger) *HTTPEngine {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPEngine{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		client:   client,
		breaker:  breaker,
		log:      log,
	}
}

func (e *HTTPEngine) Recognize(ctx context.Context, image []byte, languages []string) (string, error) {
	if e.breaker == nil {
		return e.recognize(ctx, image, languages)
	}

	var text string
	err := e.breaker.Execute(func() error {
		var err error
		text, err = e.recognize(ctx, image, languages)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (e *HTTPEngine) recognize(ctx context.Context, image []byte, languages []string) (string, error) {
	body, contentType, err := encodeRecognizeRequest(image, languages)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+recognizePath, body)
	if err != nil {
		return "", fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ocr engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.log.Error().Int("status_code", resp.StatusCode).Msg("ocr engine returned non-200 status")
		return "", fmt.Errorf("%w: status %d", ErrEngineStatus, resp.StatusCode)
	}

	var out recognizeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	return out.Data.Stdout, nil
}

func encodeRecognizeRequest(image []byte, languages []string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	options, err := json.Marshal(recognizeOptions{Languages: languages})
	if err != nil {
		return nil, "", fmt.Errorf("encode ocr options: %w", err)
	}
	if err := w.WriteField("options", string(options)); err != nil {
		return nil, "", fmt.Errorf("write options field: %w", err)
	}

	part, err := w.CreateFormFile("file", "upload")
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
