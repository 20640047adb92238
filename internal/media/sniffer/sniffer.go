package sniffer

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
)

type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeGIF  MediaType = "gif"
	TypeWEBP MediaType = "webp"
	TypeBMP  MediaType = "bmp"
	TypeTIFF MediaType = "tiff"
	TypeAVIF MediaType = "avif"
	TypeSVG  MediaType = "svg"
)

var ErrUnknownType = errors.New("unknown media type")

type Result struct {
	Type MediaType
	MIME string
}

// Rasterizable reports whether the type has a registered pixel decoder.
// AVIF and SVG are recognised but cannot be decoded for OCR.
func (r Result) Rasterizable() bool {
	switch r.Type {
	case TypeJPEG, TypePNG, TypeGIF, TypeWEBP, TypeBMP, TypeTIFF:
		return true
	default:
		return false
	}
}

func DetectHead(head []byte) (Result, error) {
	if len(head) == 0 {
		return Result{}, ErrUnknownType
	}
	if len(head) > 512 {
		head = head[:512]
	}

	if isJPEG(head) {
		return Result{Type: TypeJPEG, MIME: "image/jpeg"}, nil
	}
	if isPNG(head) {
		return Result{Type: TypePNG, MIME: "image/png"}, nil
	}
	if isGIF(head) {
		return Result{Type: TypeGIF, MIME: "image/gif"}, nil
	}
	if isWEBP(head) {
		return Result{Type: TypeWEBP, MIME: "image/webp"}, nil
	}
	if isBMP(head) {
		return Result{Type: TypeBMP, MIME: "image/bmp"}, nil
	}
	if isTIFF(head) {
		return Result{Type: TypeTIFF, MIME: "image/tiff"}, nil
	}
	if isAVIF(head) {
		return Result{Type: TypeAVIF, MIME: "image/avif"}, nil
	}
	if isSVG(head) {
		return Result{Type: TypeSVG, MIME: "image/svg+xml"}, nil
	}

	return Result{}, ErrUnknownType
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}

func isGIF(head []byte) bool {
	return len(head) >= 6 && (bytes.Equal(head[:6], []byte("GIF87a")) || bytes.Equal(head[:6], []byte("GIF89a")))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("WEBP"))
}

func isBMP(head []byte) bool {
	// "BM" alone is too weak; require the fixed-size file header as well.
	return len(head) >= 14 && head[0] == 'B' && head[1] == 'M'
}

func isTIFF(head []byte) bool {
	return len(head) >= 4 &&
		(bytes.Equal(head[:4], []byte{'I', 'I', 0x2a, 0x00}) || bytes.Equal(head[:4], []byte{'M', 'M', 0x00, 0x2a}))
}

func isAVIF(head []byte) bool {
	if len(head) < 12 {
		return false
	}
	boxType := string(head[4:8])
	return boxType == "ftyp" && bytes.Contains(head[8:], []byte("avif"))
}

func isSVG(head []byte) bool {
	trimmed := strings.TrimSpace(string(head))
	return strings.HasPrefix(trimmed, "<svg") || strings.HasPrefix(trimmed, "<?xml")
}

func MimeTypeFromHTTP(header http.Header) string {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}
