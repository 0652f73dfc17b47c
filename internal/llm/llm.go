// Package llm is the chat-completion boundary used by the selection and
// generation stages.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrModelUnavailable marks a transport failure that survived every retry.
var ErrModelUnavailable = errors.New("model unavailable")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// JSON asks the provider to constrain the reply to a JSON object.
	JSON bool
}

type ChatModel interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// ChatModelFunc adapts a function to ChatModel.
type ChatModelFunc func(ctx context.Context, req ChatRequest) (string, error)

func (f ChatModelFunc) Complete(ctx context.Context, req ChatRequest) (string, error) {
	return f(ctx, req)
}

// RetryPolicy sleeps Backoff*attempt between attempts.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Wait blocks for the backoff that follows the given 1-based attempt.
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	delay := p.Backoff * time.Duration(attempt)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CompleteWithRetry retries transport errors. Exhaustion is reported as
// ErrModelUnavailable; cancellation is returned as is.
func CompleteWithRetry(ctx context.Context, model ChatModel, req ChatRequest, policy RetryPolicy, logger *slog.Logger) (string, error) {
	var lastErr error
	total := policy.attempts()
	for attempt := 1; attempt <= total; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := model.Complete(ctx, req)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		if logger != nil {
			logger.WarnContext(ctx, "chat completion failed",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", total),
				slog.String("error", err.Error()),
			)
		}
		if attempt < total {
			if err := policy.Wait(ctx, attempt); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("%w: %w", ErrModelUnavailable, lastErr)
}

// WithSchema returns a copy of messages whose system message also demands
// output matching schemaJSON. The input slice is not modified.
func WithSchema(messages []Message, schemaJSON string) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	instruction := "\n\nOutput must strictly follow this JSON schema and contain nothing else:\n" + schemaJSON
	for i := range out {
		if out[i].Role == RoleSystem {
			out[i].Content += instruction
			return out
		}
	}
	return append([]Message{{Role: RoleSystem, Content: instruction[2:]}}, out...)
}
