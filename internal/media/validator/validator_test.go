package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petamigos/contentguard/internal/models"
	"petamigos/contentguard/internal/testutil"
)

func TestValidator_ValidateFormat(t *testing.T) {
	v := NewValidator(DefaultMaxWidth, DefaultMaxHeight)

	tests := []struct {
		name string
		data []byte
		want models.ScanResult
	}{
		{name: "png", data: testutil.PNG(4, 4), want: models.Pass()},
		{name: "gif", data: testutil.GIF(4, 4), want: models.Pass()},
		{name: "png header only", data: testutil.PNGHeader(20000, 20000), want: models.Pass()},
		{name: "empty", data: nil, want: models.Block(ReasonInvalidFormat)},
		{name: "plain text", data: []byte("definitely not an image"), want: models.Block(ReasonInvalidFormat)},
		{name: "svg is not rasterizable", data: []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), want: models.Block(ReasonInvalidFormat)},
		{name: "pdf", data: []byte("%PDF-1.7\n"), want: models.Block(ReasonInvalidFormat)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.ValidateFormat(tt.data))
		})
	}
}

func TestValidator_ValidateMetadata(t *testing.T) {
	v := NewValidator(DefaultMaxWidth, DefaultMaxHeight)

	tests := []struct {
		name string
		data []byte
		want models.ScanResult
	}{
		{name: "small image", data: testutil.PNG(8, 8), want: models.Pass()},
		{name: "boundary is safe", data: testutil.PNGHeader(10000, 10000), want: models.Pass()},
		{name: "width over limit", data: testutil.PNGHeader(10001, 10), want: models.Block(ReasonDimensionsTooLarge)},
		{name: "height over limit", data: testutil.PNGHeader(10, 10001), want: models.Block(ReasonDimensionsTooLarge)},
		{name: "pixel bomb", data: testutil.PNGHeader(20000, 20000), want: models.Block(ReasonDimensionsTooLarge)},
		{name: "truncated header", data: testutil.TruncatedPNG(), want: models.Block(ReasonMetadataFailed)},
		{name: "garbage", data: []byte("garbage"), want: models.Block(ReasonMetadataFailed)},
		{name: "empty", data: []byte{}, want: models.Block(ReasonMetadataFailed)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.ValidateMetadata(tt.data))
		})
	}
}

func TestValidator_CustomLimits(t *testing.T) {
	v := NewValidator(100, 50)

	assert.True(t, v.ValidateMetadata(testutil.PNGHeader(100, 50)).Safe)
	assert.Equal(t, models.Block(ReasonDimensionsTooLarge), v.ValidateMetadata(testutil.PNGHeader(101, 50)))
	assert.Equal(t, models.Block(ReasonDimensionsTooLarge), v.ValidateMetadata(testutil.PNGHeader(100, 51)))
}

func TestNewValidator_DefaultsNonPositiveLimits(t *testing.T) {
	v := NewValidator(0, -1)
	assert.Equal(t, DefaultMaxWidth, v.maxWidth)
	assert.Equal(t, DefaultMaxHeight, v.maxHeight)
}

func TestValidator_Inspect(t *testing.T) {
	v := NewValidator(DefaultMaxWidth, DefaultMaxHeight)

	meta, err := v.Inspect(testutil.PNG(12, 7))
	require.NoError(t, err)
	assert.Equal(t, models.ImageMetadata{Format: "png", MIME: "image/png", Width: 12, Height: 7}, meta)

	meta, err = v.Inspect(testutil.GIF(3, 5))
	require.NoError(t, err)
	assert.Equal(t, "gif", meta.Format)
	assert.Equal(t, 3, meta.Width)
	assert.Equal(t, 5, meta.Height)

	_, err = v.Inspect([]byte(`<svg></svg>`))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
