// Package transcribe turns uploaded audio into text before analysis.
//
// Transcription is optional and online only: when it is not enabled the
// engine reports ErrTranscriptionUnavailable instead of guessing.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

var (
	// ErrTranscription matches every *TranscriptionError.
	ErrTranscription = errors.New("transcription failed")

	// ErrTranscriptionUnavailable means no transcriber is configured.
	ErrTranscriptionUnavailable = errors.New("transcription unavailable")

	// ErrUnsupportedFormat is returned for files without an audio extension.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// SupportedExtensions lists the accepted audio file extensions.
var SupportedExtensions = []string{".wav", ".mp3", ".m4a", ".flac", ".ogg"}

// IsSupported reports whether filename has a supported audio extension.
func IsSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Transcriber converts audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// TranscriptionError describes a failed transcription of one file.
type TranscriptionError struct {
	Filename string
	Err      error
}

func (e *TranscriptionError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("transcription failed: %v", e.Err)
	}
	return fmt.Sprintf("transcription of %s failed: %v", e.Filename, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// Is makes every TranscriptionError match ErrTranscription.
func (e *TranscriptionError) Is(target error) bool {
	return target == ErrTranscription
}
