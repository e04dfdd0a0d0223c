package memory

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/evermind-ai/recall/core"
	"github.com/evermind-ai/recall/llm"
)

const (
	// DefaultCacheLimit is the maximum number of turns the active
	// window holds before rotation compresses it into the summary.
	DefaultCacheLimit = 7

	// DefaultMaxSummaryChars bounds rolling-summary growth. Old
	// paragraphs are compacted away once the merged summary exceeds it.
	DefaultMaxSummaryChars = 8000

	// seedPrefix marks the synthetic turn a rotation leaves behind.
	seedPrefix = "Previous conversation context: "
)

const summarizeInstructions = `Summarize the following conversation concisely. Capture facts about the user, their preferences, decisions made, and any plans discussed. Write flowing prose, not a transcript. Output only the summary.`

// Buffer maintains the bounded dialogue window and the rolling summary,
// and decides when compression happens. It is session-scoped: a Buffer
// must not be shared across sessions without external synchronization.
type Buffer struct {
	gen             llm.Client
	limit           int
	maxSummaryChars int

	turns   []core.Turn
	summary string
}

// BufferOption configures a Buffer.
type BufferOption func(*Buffer)

// WithCacheLimit overrides the window size that triggers rotation.
func WithCacheLimit(n int) BufferOption {
	return func(b *Buffer) {
		if n > 1 {
			b.limit = n
		}
	}
}

// WithMaxSummaryChars overrides the rolling-summary growth bound.
// Zero disables compaction.
func WithMaxSummaryChars(n int) BufferOption {
	return func(b *Buffer) {
		b.maxSummaryChars = n
	}
}

// NewBuffer creates an empty buffer that summarizes through gen.
func NewBuffer(gen llm.Client, opts ...BufferOption) *Buffer {
	b := &Buffer{
		gen:             gen,
		limit:           DefaultCacheLimit,
		maxSummaryChars: DefaultMaxSummaryChars,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Append inserts a turn. When the window reaches the limit, rotation
// runs synchronously before Append returns. On rotation failure the
// window and summary are left exactly as they were, appended turn
// included, and the error is returned.
func (b *Buffer) Append(ctx context.Context, turn core.Turn) error {
	b.turns = append(b.turns, turn)
	if len(b.turns) >= b.limit {
		if err := b.Rotate(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Rotate summarizes the current window, merges the result into the
// rolling summary, and replaces the window with a single seeded turn.
// No state changes on failure.
func (b *Buffer) Rotate(ctx context.Context) error {
	if len(b.turns) == 0 {
		return nil
	}

	incoming, err := b.summarize(ctx, b.turns)
	if err != nil {
		return fmt.Errorf("summarize window: %w", err)
	}

	b.summary = compactSummary(MergeSummary(b.summary, incoming), b.maxSummaryChars)
	b.turns = []core.Turn{{Role: core.RoleUser, Content: seedPrefix + b.summary}}
	log.Printf("[MEMORY] Rotated window into rolling summary (%d chars)", len(b.summary))
	return nil
}

// SnapshotForProcessing returns the rolling summary plus, when the
// window holds more than the single seeded turn, a fresh summary of the
// residual window. It never mutates state: clearing happens only after
// the caller confirms successful downstream storage, via Reset.
func (b *Buffer) SnapshotForProcessing(ctx context.Context) ([]string, error) {
	var summaries []string
	if b.summary != "" {
		summaries = append(summaries, b.summary)
	}
	if b.hasResidual() {
		residual, err := b.summarize(ctx, b.turns)
		if err != nil {
			return nil, fmt.Errorf("summarize residual window: %w", err)
		}
		if residual != "" {
			summaries = append(summaries, residual)
		}
	}
	return summaries, nil
}

// Reset clears the window and the rolling summary. Call only after the
// extraction pipeline has successfully stored its output.
func (b *Buffer) Reset() {
	b.turns = nil
	b.summary = ""
}

// Turns returns a copy of the current window.
func (b *Buffer) Turns() []core.Turn {
	out := make([]core.Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

// Summary returns the current rolling summary.
func (b *Buffer) Summary() string {
	return b.summary
}

// Len returns the number of turns in the window.
func (b *Buffer) Len() int {
	return len(b.turns)
}

func (b *Buffer) hasResidual() bool {
	switch len(b.turns) {
	case 0:
		return false
	case 1:
		t := b.turns[0]
		return !(t.Role == core.RoleUser && strings.HasPrefix(t.Content, seedPrefix))
	default:
		return true
	}
}

func (b *Buffer) summarize(ctx context.Context, turns []core.Turn) (string, error) {
	var transcript strings.Builder
	for _, t := range turns {
		transcript.WriteString(string(t.Role))
		transcript.WriteString(": ")
		transcript.WriteString(t.Content)
		transcript.WriteString("\n")
	}

	out, err := b.gen.Complete(ctx, llm.Request{
		System:    summarizeInstructions,
		Messages:  []core.Turn{{Role: core.RoleUser, Content: transcript.String()}},
		MaxTokens: 512,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// MergeSummary combines the previous rolling summary with a newly
// generated one. The previous summary always comes first; a blank-line
// separator is used when both sides are non-empty.
func MergeSummary(prev, incoming string) string {
	prev = strings.TrimSpace(prev)
	incoming = strings.TrimSpace(incoming)
	switch {
	case prev == "":
		return incoming
	case incoming == "":
		return prev
	default:
		return prev + "\n\n" + incoming
	}
}

// compactSummary bounds summary growth by dropping whole oldest
// paragraphs first, then trimming the head of a single oversized
// paragraph. max <= 0 disables compaction.
func compactSummary(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}

	paragraphs := strings.Split(s, "\n\n")
	for len(paragraphs) > 1 && len(strings.Join(paragraphs, "\n\n")) > max {
		paragraphs = paragraphs[1:]
	}

	out := strings.Join(paragraphs, "\n\n")
	if len(out) > max {
		runes := []rune(out)
		if len(runes) > max {
			out = string(runes[len(runes)-max:])
		}
	}
	return out
}
