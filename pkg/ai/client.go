// Package ai provides a minimal client for OpenAI-compatible completion,
// vision and transcription APIs.
package ai

import (
	"context"
	"errors"
)

// Detail controls how much of an image the vision model inspects.
type Detail string

const (
	DetailLow  Detail = "low"
	DetailHigh Detail = "high"
)

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageRef `json:"image_url,omitempty"`
}

// ImageRef references an image by URL.
type ImageRef struct {
	URL    string `json:"url"`
	Detail Detail `json:"detail,omitempty"`
}

// Message is one turn in a completion request. Exactly one of Content or
// Parts is set; Parts marks the message as multimodal.
type Message struct {
	Role    string
	Content string
	Parts   []ContentPart
}

// Request is a chat completion request.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Response is the full completion result, returned atomically.
type Response struct {
	Text string
}

// Client is the surface the pipeline depends on. The production
// implementation is OpenAIClient; tests substitute fakes.
type Client interface {
	// CreateChatCompletion issues a single completion call. No retries.
	CreateChatCompletion(ctx context.Context, req Request) (*Response, error)

	// Transcribe converts audio fetched from audioURL to text.
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

var (
	// ErrMissingAPIKey is returned when the server credential is absent
	ErrMissingAPIKey = errors.New("ai: api key not configured")

	// ErrQuotaExhausted is returned when the provider reports quota exhaustion
	ErrQuotaExhausted = errors.New("ai: provider quota exhausted")
)
