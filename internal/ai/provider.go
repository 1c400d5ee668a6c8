package ai

import (
	"context"
	"errors"
)

type Message struct {
	Role    string
	Content string
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ErrNotConfigured means the provider has no credential/backend and can
// never succeed; callers should degrade instead of retrying.
var ErrNotConfigured = errors.New("ai: provider not configured")
