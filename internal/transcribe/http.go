package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/scrypster/lifecache/internal/breaker"
)

// HTTPConfig holds configuration for an OpenAI-compatible transcription API.
type HTTPConfig struct {
	APIKey   string
	Model    string        // default: whisper-1
	BaseURL  string        // default: https://api.openai.com
	Language string        // optional ISO-639-1 hint
	Timeout  time.Duration // default: 2m
}

// HTTPTranscriber calls POST /v1/audio/transcriptions.
type HTTPTranscriber struct {
	cfg            HTTPConfig
	client         *http.Client
	circuitBreaker *breaker.CircuitBreaker
}

// NewHTTPTranscriber creates a transcriber with the given configuration.
func NewHTTPTranscriber(cfg HTTPConfig) *HTTPTranscriber {
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &HTTPTranscriber{
		cfg:            cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: breaker.New(breaker.Config{Name: "transcription"}),
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads audio and returns the recognized text.
// Every failure is a *TranscriptionError.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if !IsSupported(filename) {
		return "", &TranscriptionError{Filename: filename, Err: ErrUnsupportedFormat}
	}

	// Buffer once so a half-open retry never sees a drained reader.
	data, err := io.ReadAll(audio)
	if err != nil {
		return "", &TranscriptionError{Filename: filename, Err: fmt.Errorf("failed to read audio: %w", err)}
	}

	var text string
	err = t.circuitBreaker.Execute(ctx, func() error {
		var callErr error
		text, callErr = t.transcribe(ctx, filename, data)
		return callErr
	})
	if err != nil {
		if errors.Is(err, breaker.ErrCircuitOpen) {
			err = fmt.Errorf("transcription circuit breaker open: %w", err)
		}
		return "", &TranscriptionError{Filename: filename, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &TranscriptionError{Filename: filename, Err: errors.New("no speech recognized")}
	}
	return text, nil
}

func (t *HTTPTranscriber) transcribe(ctx context.Context, filename string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	fields := map[string]string{"model": t.cfg.Model, "response_format": "json"}
	if t.cfg.Language != "" {
		fields["language"] = t.cfg.Language
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.cfg.BaseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if t.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("transcription API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Text, nil
}

// Compile-time assertion.
var _ Transcriber = (*HTTPTranscriber)(nil)
