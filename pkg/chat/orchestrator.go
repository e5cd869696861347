// Package chat implements the per-turn orchestration around the AI
// assistant: quota gating, VIN short-circuiting, dispatch to the server
// pipeline, reply replay and conversation persistence.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/revlinehq/scotty/pkg/quota"
	"github.com/revlinehq/scotty/pkg/vin"
)

// FallbackReply is appended when dispatch fails, so the conversation
// stays usable instead of surfacing a blocking error.
const FallbackReply = "Server hiccup, try again."

// Dispatcher sends a composed turn to the server pipeline and returns the
// full reply text. Implemented by the pipeline server-side and by an HTTP
// client on devices.
type Dispatcher interface {
	Dispatch(ctx context.Context, history []Message, imageURL string, tier quota.Tier) (string, error)
}

// VINDecoder resolves a VIN to a human-readable vehicle description.
// The production implementation wraps an external lookup service.
type VINDecoder interface {
	Decode(ctx context.Context, vin string) (string, error)
}

// Turn is the outcome of one user turn.
type Turn struct {
	// Reply is the assistant's reply text (empty when Denied)
	Reply string

	// Denied is set when the quota gate stopped the turn before any
	// network call; Decision carries the numbers for the paywall
	Denied   bool
	Decision quota.Decision

	// VIN is set when the turn was short-circuited by VIN detection
	VIN string

	// Failed is set when dispatch errored and Reply is the canned fallback
	Failed bool
}

// Orchestrator drives one assistant turn end to end.
type Orchestrator struct {
	quotas     *quota.Manager
	dispatcher Dispatcher
	decoder    VINDecoder
	store      Store
	logger     quota.Logger
	now        func() time.Time
}

// Config holds orchestrator collaborators.
type Config struct {
	// Quotas is the quota manager (required)
	Quotas *quota.Manager

	// Dispatcher sends composed turns to the pipeline (required)
	Dispatcher Dispatcher

	// Decoder resolves VINs; when nil, VIN detection is disabled and
	// VIN-looking text falls through to the AI path
	Decoder VINDecoder

	// Store persists conversation logs (required)
	Store Store

	// Logger is used for structured logging (default: NoopLogger)
	Logger quota.Logger

	// Now overrides the wall clock, for tests
	Now func() time.Time
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(config Config) (*Orchestrator, error) {
	if config.Quotas == nil || config.Dispatcher == nil || config.Store == nil {
		return nil, fmt.Errorf("chat: quotas, dispatcher and store are required")
	}
	if config.Logger == nil {
		config.Logger = &quota.NoopLogger{}
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Orchestrator{
		quotas:     config.Quotas,
		dispatcher: config.Dispatcher,
		decoder:    config.Decoder,
		store:      config.Store,
		logger:     config.Logger,
		now:        config.Now,
	}, nil
}

// Send runs one user turn: gate, compose, VIN short-circuit, dispatch,
// persist, increment.
//
// The messages counter is charged for every gated turn that proceeds,
// including VIN short-circuits (which never reach the model) and failed
// dispatches. That mirrors the original behavior deliberately; the gate
// is best-effort fair-use limiting, not billing.
func (o *Orchestrator) Send(ctx context.Context, userID string, tier quota.Tier, conversationID, text, imageURL string) (*Turn, error) {
	gate := o.quotas.Check(ctx, userID, quota.FeatureMessages, tier)
	if !gate.Allowed {
		return &Turn{Denied: true, Decision: gate}, nil
	}

	if imageURL != "" {
		imgGate := o.quotas.Check(ctx, userID, quota.FeatureImages, tier)
		if !imgGate.Allowed {
			return &Turn{Denied: true, Decision: imgGate}, nil
		}
	}

	history, err := o.store.Messages(ctx, userID, conversationID)
	if err != nil {
		// Missing history degrades to a fresh conversation rather than
		// blocking the turn.
		o.logger.Warn("conversation load failed",
			quota.Field{Key: "user_id", Value: userID},
			quota.Field{Key: "error", Value: err.Error()},
		)
		history = nil
	}

	userMsg := Message{Role: RoleUser, Content: text, ImageURL: imageURL, CreatedAt: o.now().UTC()}

	turn := &Turn{Decision: gate}
	if v, ok := o.detectVIN(text); ok {
		turn.VIN = v
		turn.Reply = o.decodeVIN(ctx, v)
	} else {
		composed := Truncate(append(history, userMsg), HistoryLimit)
		reply, err := o.dispatcher.Dispatch(ctx, composed, imageURL, tier)
		if err != nil {
			o.logger.Error("dispatch failed",
				quota.Field{Key: "user_id", Value: userID},
				quota.Field{Key: "error", Value: err.Error()},
			)
			turn.Reply = FallbackReply
			turn.Failed = true
		} else {
			turn.Reply = reply
		}
	}

	assistantMsg := Message{Role: RoleAssistant, Content: turn.Reply, CreatedAt: o.now().UTC()}
	if err := o.store.AppendMessages(ctx, userID, conversationID, userMsg, assistantMsg); err != nil {
		o.logger.Warn("conversation append failed",
			quota.Field{Key: "user_id", Value: userID},
			quota.Field{Key: "error", Value: err.Error()},
		)
	}

	if _, err := o.quotas.Increment(ctx, userID, quota.FeatureMessages, tier); err != nil {
		o.logger.Warn("message counter increment failed",
			quota.Field{Key: "user_id", Value: userID},
			quota.Field{Key: "error", Value: err.Error()},
		)
	}
	if imageURL != "" && turn.VIN == "" {
		if _, err := o.quotas.Increment(ctx, userID, quota.FeatureImages, tier); err != nil {
			o.logger.Warn("image counter increment failed",
				quota.Field{Key: "user_id", Value: userID},
				quota.Field{Key: "error", Value: err.Error()},
			)
		}
	}

	return turn, nil
}

func (o *Orchestrator) detectVIN(text string) (string, bool) {
	if o.decoder == nil {
		return "", false
	}
	return vin.Extract(text)
}

func (o *Orchestrator) decodeVIN(ctx context.Context, v string) string {
	desc, err := o.decoder.Decode(ctx, v)
	if err != nil {
		o.logger.Warn("vin decode failed",
			quota.Field{Key: "vin", Value: v},
			quota.Field{Key: "error", Value: err.Error()},
		)
		return fmt.Sprintf("I spotted the VIN %s but couldn't decode it right now. Give it another shot in a minute.", v)
	}
	return fmt.Sprintf("Found a VIN in there! Here's what %s decodes to:\n\n%s", v, desc)
}
