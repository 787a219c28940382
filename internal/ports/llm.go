package ports

import (
	"context"
	"io"

	"github.com/J-York/TarotWhisper/internal/domain"
)

// ChatRequest is a single-prompt streaming chat-completion call.
type ChatRequest struct {
	Config domain.ApiConfig
	Prompt string
}

// ChatStream is an open upstream response body. The caller must close Body.
type ChatStream struct {
	Body        io.ReadCloser
	ContentType string
}

// ChatStreamer opens a streaming chat completion against an
// OpenAI-compatible endpoint.
type ChatStreamer interface {
	StreamChat(ctx context.Context, req ChatRequest) (*ChatStream, error)
}
