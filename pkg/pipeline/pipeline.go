// Package pipeline implements the server-side moderation and completion
// pipeline behind the chat and sound-diagnosis endpoints. Each request is
// handled statelessly: validate, optionally pre-check the image, build the
// prompt, issue a single completion call and return the full text.
package pipeline

import (
	"context"
	"strings"

	"github.com/revlinehq/scotty/pkg/ai"
	"github.com/revlinehq/scotty/pkg/chat"
	"github.com/revlinehq/scotty/pkg/quota"
)

const (
	// maxMessageLen caps a single message's content before it is sent on
	maxMessageLen = 4000

	textModel   = "gpt-4o-mini"
	visionModel = "gpt-4o"

	textMaxTokens   = 600
	visionMaxTokens = 900

	// precheckMaxTokens keeps the moderation call near-zero cost
	precheckMaxTokens = 5

	chatTemperature = 0.7
)

// ChatRequest is the input to the chat pipeline.
type ChatRequest struct {
	Messages []chat.Message
	ImageURL string
	UserTier quota.Tier
}

// ChatReply is the full reply, returned atomically. No streaming.
type ChatReply struct {
	Reply string
}

// Verdict is the moderation pre-check result. It only influences the
// immediate response and is never persisted.
type Verdict struct {
	Safe   bool
	Reason string
}

// Pipeline orchestrates moderation and completion calls.
type Pipeline struct {
	client ai.Client
	logger quota.Logger
}

// New creates a pipeline over an AI client.
func New(client ai.Client, logger quota.Logger) (*Pipeline, error) {
	if client == nil {
		return nil, ErrPrecondition
	}
	if logger == nil {
		logger = &quota.NoopLogger{}
	}
	return &Pipeline{client: client, logger: logger}, nil
}

// Chat runs the full moderation + completion pipeline for one request.
func (p *Pipeline) Chat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	msgs := cleanMessages(req.Messages)
	if len(msgs) == 0 {
		return nil, ErrInvalidArgument
	}

	if req.ImageURL != "" {
		verdict := p.precheckImage(ctx, req.ImageURL)
		if !verdict.Safe {
			p.logger.Info("image rejected by pre-check",
				quota.Field{Key: "reason", Value: verdict.Reason},
			)
			return &ChatReply{Reply: redirectReply}, nil
		}
	}

	aiReq := buildCompletion(msgs, req.ImageURL)
	resp, err := p.client.CreateChatCompletion(ctx, aiReq)
	if err != nil {
		if err == ai.ErrMissingAPIKey {
			return nil, ErrPrecondition
		}
		p.logger.Error("completion call failed",
			quota.Field{Key: "error", Value: err.Error()},
		)
		return nil, internal(err)
	}

	return &ChatReply{Reply: resp.Text}, nil
}

// precheckImage runs the cheap vision classification. Any answer other
// than an exact YES rejects the image; transport failures fail open so a
// broken classifier never blocks legitimate users.
func (p *Pipeline) precheckImage(ctx context.Context, imageURL string) Verdict {
	resp, err := p.client.CreateChatCompletion(ctx, ai.Request{
		Model:     visionModel,
		MaxTokens: precheckMaxTokens,
		Messages: []ai.Message{{
			Role: "user",
			Parts: []ai.ContentPart{
				{Type: "text", Text: visionCheckPrompt},
				{Type: "image_url", ImageURL: &ai.ImageRef{URL: imageURL, Detail: ai.DetailLow}},
			},
		}},
	})
	if err != nil {
		p.logger.Warn("vision pre-check failed, treating image as safe",
			quota.Field{Key: "error", Value: err.Error()},
		)
		return Verdict{Safe: true, Reason: "precheck_error"}
	}

	answer := strings.ToUpper(strings.TrimSpace(resp.Text))
	if answer == "YES" {
		return Verdict{Safe: true}
	}
	return Verdict{Safe: false, Reason: "not_automotive"}
}

// cleanMessages validates and clamps the incoming message list: drops
// entries with empty content or unknown roles, caps per-message length and
// keeps only the most recent HistoryLimit turns.
func cleanMessages(msgs []chat.Message) []chat.Message {
	out := make([]chat.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleUser, chat.RoleAssistant, chat.RoleSystem:
		default:
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if len(content) > maxMessageLen {
			content = content[:maxMessageLen]
		}
		m.Content = content
		out = append(out, m)
	}
	return chat.Truncate(out, chat.HistoryLimit)
}

// buildCompletion assembles the final completion request: fixed system
// block, prior turns, and a multimodal high-detail final turn when an
// image is present. Model and token budget depend on modality.
func buildCompletion(msgs []chat.Message, imageURL string) ai.Request {
	req := ai.Request{
		Model:       textModel,
		MaxTokens:   textMaxTokens,
		Temperature: chatTemperature,
	}
	if imageURL != "" {
		req.Model = visionModel
		req.MaxTokens = visionMaxTokens
	}

	req.Messages = append(req.Messages, ai.Message{Role: "system", Content: systemPrompt})

	for i, m := range msgs {
		last := i == len(msgs)-1
		if last && imageURL != "" {
			req.Messages = append(req.Messages, ai.Message{
				Role: string(m.Role),
				Parts: []ai.ContentPart{
					{Type: "text", Text: m.Content},
					{Type: "image_url", ImageURL: &ai.ImageRef{URL: imageURL, Detail: ai.DetailHigh}},
				},
			})
			continue
		}
		req.Messages = append(req.Messages, ai.Message{Role: string(m.Role), Content: m.Content})
	}
	return req
}

// RedirectReply exposes the fixed moderation redirect for tests and
// clients that want to special-case it.
func RedirectReply() string { return redirectReply }
