package ai

import (
	"context"
	"errors"
	"fmt"
)

// CompletionClient is the subset of a chat-completion API the expander needs.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompletionParams are the sampling settings sent with every request.
type CompletionParams struct {
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

func DefaultCompletionParams() CompletionParams {
	return CompletionParams{
		Temperature:      0.1,
		MaxTokens:        256,
		TopP:             1,
		FrequencyPenalty: 0,
		PresencePenalty:  0,
	}
}

// Expansion is the validated form of a completion reply. Exactly one of
// Titles or Refusal carries information.
type Expansion struct {
	Titles  []string `json:"titles"`
	Refusal string   `json:"refusal,omitempty"`
}

func (e Expansion) Refused() bool {
	return e.Refusal != ""
}

// ErrMalformedReply means the reply was neither a refusal nor a JSON array
// of titles.
var ErrMalformedReply = errors.New("malformed completion reply")

// APIError is returned for non-2xx responses or error bodies from the
// completion API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return "OpenAI API error"
	}
	if e.Message == "" {
		return fmt.Sprintf("OpenAI API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("OpenAI API error (status %d): %s", e.StatusCode, e.Message)
}
