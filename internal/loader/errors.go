package loader

import "fmt"

// Load error codes, shared with CLI output.
const (
	ErrCodeNotFound     = "E005" // path not found
	ErrCodeReadFailed   = "E007" // file could not be read
	ErrCodeUnsupported  = "E008" // unknown bundle file extension
	ErrCodeDecodeFailed = "E009" // JSON/YAML/CUE decode failed
)

// LoadError represents an error that occurred while reading a bundle file.
type LoadError struct {
	Code    string
	Path    string
	Line    int // 1-based, 0 when unknown
	Column  int
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Path, e.Line, e.Column, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
