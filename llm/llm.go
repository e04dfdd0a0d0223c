// Package llm defines the generation service used by the memory engine.
//
// The engine treats text generation as a black box behind the Client
// interface: it sends an ordered message sequence and receives plain
// text back. Implementations:
//   - AnthropicClient: Claude API (production)
//   - Stub: scripted responses (testing)
package llm

import (
	"context"

	"github.com/evermind-ai/recall/core"
)

// Request describes a single completion call.
type Request struct {
	// System is the system prompt. Empty means no system prompt.
	System string

	// Messages is the ordered conversation to complete.
	Messages []core.Turn

	// MaxTokens caps the response length. Zero means the client default.
	MaxTokens int64

	// Temperature controls sampling randomness. Zero means the model default.
	Temperature float64
}

// Client is the generation service contract.
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends the request to the model and returns the text response.
	Complete(ctx context.Context, req Request) (string, error)
}
