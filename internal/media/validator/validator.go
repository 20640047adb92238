// Package validator rejects uploads that are not decodable images or whose
// declared dimensions would make decoding them expensive. Only image
// headers are read; pixel data is never decoded here.
package validator

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"petamigos/contentguard/internal/media/sniffer"
	"petamigos/contentguard/internal/models"
)

const (
	DefaultMaxWidth  = 10000
	DefaultMaxHeight = 10000

	ReasonInvalidFormat      = "Invalid image format"
	ReasonDimensionsTooLarge = "Image dimensions too large"
	ReasonMetadataFailed     = "Metadata scan failed"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

type Validator struct {
	maxWidth  int
	maxHeight int
}

func NewValidator(maxWidth, maxHeight int) *Validator {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	return &Validator{maxWidth: maxWidth, maxHeight: maxHeight}
}

// Inspect sniffs the format and decodes the image header.
func (v *Validator) Inspect(data []byte) (models.ImageMetadata, error) {
	sniffed, err := sniffer.DetectHead(data)
	if err != nil {
		return models.ImageMetadata{}, err
	}
	meta := models.ImageMetadata{Format: string(sniffed.Type), MIME: sniffed.MIME}
	if !sniffed.Rasterizable() {
		return meta, fmt.Errorf("%w: %s", ErrUnsupportedFormat, sniffed.Type)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return meta, fmt.Errorf("decode config: %w", err)
	}
	if format != "" {
		meta.Format = format
	}
	meta.Width = cfg.Width
	meta.Height = cfg.Height
	return meta, nil
}

func (v *Validator) ValidateFormat(data []byte) models.ScanResult {
	sniffed, err := sniffer.DetectHead(data)
	if err != nil || !sniffed.Rasterizable() {
		return models.Block(ReasonInvalidFormat)
	}
	return models.Pass()
}

// ValidateMetadata is the pixel-bomb guard. Any decode failure blocks.
func (v *Validator) ValidateMetadata(data []byte) models.ScanResult {
	meta, err := v.Inspect(data)
	if err != nil {
		return models.Block(ReasonMetadataFailed)
	}
	if meta.Width > v.maxWidth || meta.Height > v.maxHeight {
		return models.Block(ReasonDimensionsTooLarge)
	}
	return models.Pass()
}
