package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petamigos/contentguard/internal/config"
	"petamigos/contentguard/internal/guard"
	"petamigos/contentguard/internal/lexicon"
	"petamigos/contentguard/internal/media/validator"
	"petamigos/contentguard/internal/models"
	"petamigos/contentguard/internal/moderation"
	"petamigos/contentguard/internal/ocr"
	"petamigos/contentguard/internal/testutil"
)

type memorySink struct {
	mu      sync.Mutex
	records []models.AuditRecord
}

func (s *memorySink) Record(_ context.Context, record models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

type fixedEngine string

func (e fixedEngine) Recognize(context.Context, []byte, []string) (string, error) {
	return string(e), nil
}

type guardHarness struct {
	router  *gin.Engine
	sink    *memorySink
	reached *bool
	bound   *map[string]any
}

func newGuardHarness(t *testing.T, ocrText string, maxUpload int64) *guardHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	scanner := lexicon.NewScanner(lexicon.NewTermSet([]string{"badword"}))
	images := validator.NewValidator(0, 0)
	extractor := ocr.NewExtractor(images, fixedEngine(ocrText), scanner, ocr.Options{}, zerolog.Nop())
	sink := &memorySink{}
	gate := guard.NewGate(config.DefaultTextFields, scanner, images, extractor,
		moderation.NewService(sink, nil, zerolog.Nop()), zerolog.Nop())

	reached := false
	bound := map[string]any{}
	router := gin.New()
	router.POST("/submit", ContentGuard(gate, GuardOptions{MaxUploadBytes: maxUpload}, zerolog.Nop()), func(c *gin.Context) {
		reached = true
		if c.ContentType() == gin.MIMEJSON {
			_ = c.ShouldBindJSON(&bound)
		}
		d, _ := GuardDecision(c)
		c.JSON(http.StatusAccepted, gin.H{"state": d.State})
	})

	return &guardHarness{router: router, sink: sink, reached: &reached, bound: &bound}
}

func (h *guardHarness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/submit", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, fields map[string]string, file []byte, declared string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="pet.png"`)
		h.Set("Content-Type", declared)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/submit", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestContentGuard_AllowsCleanJSONAndRestoresBody(t *testing.T) {
	h := newGuardHarness(t, "", 0)

	w := h.do(jsonRequest(t, map[string]any{"bio": "I love my dog", "age": 3}))

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, *h.reached)
	assert.Equal(t, "I love my dog", (*h.bound)["bio"])
	assert.Equal(t, string(guard.StateAllowed), decodeBody(t, w)["state"])
}

func TestContentGuard_BlocksBannedTermInJSON(t *testing.T) {
	h := newGuardHarness(t, "", 0)

	w := h.do(jsonRequest(t, map[string]any{"bio": "hi", "message": "what a BADWORD."}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, *h.reached)
	assert.Equal(t, map[string]any{
		"error":   "Content Violation",
		"details": "Forbidden word detected: badword",
	}, decodeBody(t, w))
}

func TestContentGuard_ScansCaseVariantKeys(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "upper case key", body: map[string]any{"BIO": "a badword here"}},
		{name: "mixed case camel key", body: map[string]any{"PETNAME": "badword"}},
		{name: "clean exact key with dirty variant", body: map[string]any{"bio": "lovely", "Bio": "badword"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newGuardHarness(t, "", 0)

			w := h.do(jsonRequest(t, tt.body))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, *h.reached)
			assert.Equal(t, map[string]any{
				"error":   "Content Violation",
				"details": "Forbidden word detected: badword",
			}, decodeBody(t, w))
		})
	}
}

func TestReadJSONFields_FoldsKeysDeterministically(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{"bio":"one","BIO":"two","other":"x","n":1}`))

	fields := map[string]string{}
	require.NoError(t, readJSONFields(c, fields, []string{"bio"}))

	assert.Equal(t, map[string]string{"bio": "two\none", "other": "x"}, fields)
}

func TestContentGuard_BlocksBannedTermInForm(t *testing.T) {
	h := newGuardHarness(t, "", 0)

	form := url.Values{"name": {"badword"}}
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := h.do(req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Content Violation", decodeBody(t, w)["error"])
}

func TestContentGuard_MalformedJSON(t *testing.T) {
	h := newGuardHarness(t, "", 0)

	for _, body := range []string{"{not json", `["bio"]`} {
		req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		w := h.do(req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, map[string]any{"error": "invalid_body"}, decodeBody(t, w))
	}
	assert.False(t, *h.reached)
}

func TestContentGuard_Uploads(t *testing.T) {
	tests := []struct {
		name    string
		file    []byte
		ocrText string
		status  int
		body    map[string]any
		audits  int
	}{
		{
			name:   "undecodable",
			file:   []byte("this is not an image at all"),
			status: http.StatusBadRequest,
			body:   map[string]any{"error": "Image Violation", "details": "Invalid image format"},
		},
		{
			name:   "pixel bomb",
			file:   testutil.PNGHeader(20000, 20000),
			status: http.StatusBadRequest,
			body:   map[string]any{"error": "Image Violation", "details": "Image dimensions too large"},
		},
		{
			name:    "forbidden text",
			file:    testutil.PNG(8, 8),
			ocrText: "free badword inside",
			status:  http.StatusBadRequest,
			body: map[string]any{
				"error":   "Image Content Violation",
				"details": "Image contains forbidden text: Forbidden word detected: badword",
			},
			audits: 1,
		},
		{
			name:    "clean image",
			file:    testutil.GIF(8, 8),
			ocrText: "good dog",
			status:  http.StatusAccepted,
			body:    map[string]any{"state": string(guard.StateAllowed)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newGuardHarness(t, tt.ocrText, 0)

			w := h.do(multipartRequest(t, map[string]string{"petName": "Rex"}, tt.file, "image/png"))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.body, decodeBody(t, w))
			require.Len(t, h.sink.records, tt.audits)
			if tt.audits > 0 {
				assert.Equal(t, 1.0, h.sink.records[0].ConfidenceScore)
			}
		})
	}
}

func TestContentGuard_RejectsOversizedBody(t *testing.T) {
	h := newGuardHarness(t, "", 64)

	w := h.do(jsonRequest(t, map[string]any{"bio": strings.Repeat("a", 256)}))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.False(t, *h.reached)
}

func TestContentGuard_InternalErrorOmitsDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/submit", ContentGuard(evaluatorFunc(func(context.Context, guard.Submission) guard.Decision {
		return guard.Decision{Status: http.StatusInternalServerError, Error: guard.ErrorInternal, State: guard.StateBlocked}
	}), GuardOptions{}, zerolog.Nop()), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, map[string]any{"bio": "hello"}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Security check failed"}`, w.Body.String())
}

type evaluatorFunc func(context.Context, guard.Submission) guard.Decision

func (f evaluatorFunc) Evaluate(ctx context.Context, sub guard.Submission) guard.Decision {
	return f(ctx, sub)
}

func (f evaluatorFunc) Fields() []string {
	return config.DefaultTextFields
}
