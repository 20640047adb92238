package models

type ScanResult struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason,omitempty"`
}

func Pass() ScanResult {
	return ScanResult{Safe: true}
}

func Block(reason string) ScanResult {
	return ScanResult{Safe: false, Reason: reason}
}

// PassWithNote is only used by the OCR fail-open path, which lets content
// through but still reports why the check was skipped.
func PassWithNote(note string) ScanResult {
	return ScanResult{Safe: true, Reason: note}
}

type ImageMetadata struct {
	Format string
	MIME   string
	Width  int
	Height int
}
