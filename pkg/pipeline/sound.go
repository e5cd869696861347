package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/revlinehq/scotty/pkg/ai"
	"github.com/revlinehq/scotty/pkg/quota"
)

const (
	soundModel     = "gpt-4o-mini"
	soundMaxTokens = 500
)

// CarInfo describes the vehicle a sound recording came from.
type CarInfo struct {
	Make    string `json:"make,omitempty"`
	Model   string `json:"model,omitempty"`
	Year    int    `json:"year,omitempty"`
	Mileage int    `json:"mileage,omitempty"`
}

// SoundRequest is the input to the sound-diagnosis pipeline.
type SoundRequest struct {
	AudioURL string
	CarInfo  *CarInfo
}

// Diagnosis is the result of a sound analysis.
type Diagnosis struct {
	Success   bool
	Diagnosis string
}

const soundSystemPrompt = `You are Scotty, an expert automotive diagnostician. A user recorded a sound their car is making; the recording was transcribed and described below. Based on the description and the vehicle details, explain the most likely causes, how urgent each is, and what the owner should check or ask a shop to check. If the description is too vague to diagnose, say what a better recording would capture.`

// DiagnoseSound transcribes a recording and asks the model for a
// diagnosis. Provider quota errors map to ErrResourceExhausted.
func (p *Pipeline) DiagnoseSound(ctx context.Context, req SoundRequest) (*Diagnosis, error) {
	if strings.TrimSpace(req.AudioURL) == "" {
		return nil, ErrInvalidArgument
	}

	transcript, err := p.client.Transcribe(ctx, req.AudioURL)
	if err != nil {
		if errors.Is(err, ai.ErrQuotaExhausted) {
			return nil, ErrResourceExhausted
		}
		if errors.Is(err, ai.ErrMissingAPIKey) {
			return nil, ErrPrecondition
		}
		p.logger.Error("transcription failed",
			quota.Field{Key: "error", Value: err.Error()},
		)
		return nil, internal(err)
	}

	user := fmt.Sprintf("Sound description: %s", transcript)
	if req.CarInfo != nil {
		user += fmt.Sprintf("\nVehicle: %d %s %s, %d miles",
			req.CarInfo.Year, req.CarInfo.Make, req.CarInfo.Model, req.CarInfo.Mileage)
	}

	resp, err := p.client.CreateChatCompletion(ctx, ai.Request{
		Model:     soundModel,
		MaxTokens: soundMaxTokens,
		Messages: []ai.Message{
			{Role: "system", Content: soundSystemPrompt},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		if errors.Is(err, ai.ErrQuotaExhausted) {
			return nil, ErrResourceExhausted
		}
		return nil, internal(err)
	}

	return &Diagnosis{Success: true, Diagnosis: resp.Text}, nil
}
