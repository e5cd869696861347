package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	openAIBaseURL       = "https://api.openai.com/v1"
	defaultChatTimeout  = 60 * time.Second
	defaultAudioTimeout = 120 * time.Second
	maxAudioBytes       = 25 << 20
)

// OpenAIClient implements Client against the OpenAI HTTP API.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	audioClient *http.Client
}

// OpenAIConfig holds client configuration.
type OpenAIConfig struct {
	// APIKey is the server-side credential (required)
	APIKey string

	// BaseURL overrides the API endpoint, e.g. for a proxy or tests
	BaseURL string

	// HTTPClient is an optional client for chat calls.
	// If nil, a default client with a 60s timeout is used.
	HTTPClient *http.Client

	// AudioHTTPClient is an optional client for transcription calls.
	// If nil, a default client with a 120s timeout is used.
	AudioHTTPClient *http.Client
}

// NewOpenAIClient creates a new OpenAI API client.
func NewOpenAIClient(config OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = openAIBaseURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultChatTimeout}
	}
	audioClient := config.AudioHTTPClient
	if audioClient == nil {
		audioClient = &http.Client{Timeout: defaultAudioTimeout}
	}

	return &OpenAIClient{
		apiKey:      strings.TrimSpace(config.APIKey),
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		audioClient: audioClient,
	}, nil
}

type wireMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// CreateChatCompletion implements Client.
func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, req Request) (*Response, error) {
	wire := completionRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	for _, m := range req.Messages {
		if len(m.Parts) > 0 {
			wire.Messages = append(wire.Messages, wireMessage{Role: m.Role, Content: m.Parts})
		} else {
			wire.Messages = append(wire.Messages, wireMessage{Role: m.Role, Content: m.Content})
		}
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion call failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed completionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s", ErrQuotaExhausted, errMessage(parsed))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("completion api status %d: %s", resp.StatusCode, errMessage(parsed))
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("completion api returned no choices")
	}

	return &Response{Text: parsed.Choices[0].Message.Content}, nil
}

// Transcribe implements Client. The audio is fetched from audioURL and
// forwarded to the transcription endpoint as a multipart upload.
func (c *OpenAIClient) Transcribe(ctx context.Context, audioURL string) (string, error) {
	audio, err := c.fetchAudio(ctx, audioURL)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "recording.m4a")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := mw.WriteField("model", "whisper-1"); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.audioClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("transcription call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrQuotaExhausted
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("transcription api status %d: %s", resp.StatusCode, string(msg))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return parsed.Text, nil
}

func (c *OpenAIClient) fetchAudio(ctx context.Context, audioURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.audioClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch audio: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
}

func errMessage(resp completionResponse) string {
	if resp.Error != nil {
		return resp.Error.Message
	}
	return "unknown error"
}
