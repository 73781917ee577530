package llm

import (
	"context"
	"errors"
	"strings"
)

var ErrEmptyResponse = errors.New("model returned an empty response")

// Message is one prior exchange shown to the model. Role is "user" or "model".
type Message struct {
	Role string
	Text string
}

type Prompt struct {
	System   string
	Messages []Message
}

// Completer is the inference service: a prompt in, free-form text out.
// Identical prompts may yield different completions.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// IsRateLimited reports whether err looks like a quota or throttling rejection.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "resource_exhausted", "rate limit", "too many requests", "throttl", "quota"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
