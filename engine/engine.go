// Package engine sequences one conversational session over the memory
// system: retrieve relevant memories, generate a reply, maintain the
// bounded conversation window, and (on demand) distill the session into
// long-term facts.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/evermind-ai/recall/core"
	"github.com/evermind-ai/recall/llm"
	"github.com/evermind-ai/recall/memory"
)

// DefaultSearchLimit is how many memories a chat turn retrieves.
const DefaultSearchLimit = 3

// DefaultSystemPrompt is the base system prompt for chat turns.
const DefaultSystemPrompt = `You are a helpful assistant with long-term memory.

GUIDELINES:
- Be conversational and concise
- When relevant memories are provided, use them naturally; never recite them verbatim
- Never invent memories you were not given
- If a memory conflicts with what the user just said, trust the user`

// Engine orchestrates a single conversational session. It is
// session-scoped like the Buffer it owns; only the Store behind it may
// be shared across sessions.
type Engine struct {
	gen          llm.Client
	store        memory.Store
	buffer       *memory.Buffer
	reformulator *memory.Reformulator
	extractor    *memory.Extractor

	system      string
	maxTokens   int64
	searchLimit int
}

// Option configures the engine.
type Option func(*Engine)

// WithSystemPrompt overrides the base system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) {
		if prompt != "" {
			e.system = prompt
		}
	}
}

// WithSearchLimit overrides how many memories each turn retrieves.
func WithSearchLimit(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.searchLimit = n
		}
	}
}

// WithMaxTokens caps reply length.
func WithMaxTokens(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithBuffer replaces the default conversation buffer.
func WithBuffer(b *memory.Buffer) Option {
	return func(e *Engine) {
		if b != nil {
			e.buffer = b
		}
	}
}

// WithExtractor replaces the default extraction pipeline.
func WithExtractor(x *memory.Extractor) Option {
	return func(e *Engine) {
		if x != nil {
			e.extractor = x
		}
	}
}

// New creates a session engine over the given generation client and
// memory store.
func New(gen llm.Client, store memory.Store, opts ...Option) *Engine {
	e := &Engine{
		gen:         gen,
		store:       store,
		system:      DefaultSystemPrompt,
		maxTokens:   1024,
		searchLimit: DefaultSearchLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.buffer == nil {
		e.buffer = memory.NewBuffer(gen)
	}
	e.reformulator = memory.NewReformulator(gen)
	if e.extractor == nil {
		e.extractor = memory.NewExtractor(gen)
	}
	return e
}

// Reply is the outcome of one chat turn.
type Reply struct {
	// Text is the assistant's response.
	Text string `json:"text"`

	// Memories are the retrieved memories that informed the response.
	Memories []memory.SearchResult `json:"memories,omitempty"`
}

// Chat runs one conversational turn: reformulate the input into a
// retrieval query, search the store, compose the prompt, generate the
// reply, and append both turns to the window (which may rotate it).
// Retrieval failures degrade to "no memories found" and never abort
// the turn; generation and rotation failures propagate.
func (e *Engine) Chat(ctx context.Context, userMessage string) (*Reply, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, fmt.Errorf("user message must not be empty")
	}

	recent := e.buffer.Turns()
	query := e.reformulator.Reformulate(ctx, userMessage, recent)

	memories, err := e.store.Search(ctx, query, e.searchLimit)
	if err != nil {
		// Only contract violations reach here; treat as no memories.
		log.Printf("[ENGINE] Memory search rejected: %v", err)
		memories = nil
	}

	system := e.system
	if block := formatMemories(memories); block != "" {
		system += "\n\n" + block
	}

	text, err := e.gen.Complete(ctx, llm.Request{
		System:    system,
		Messages:  append(recent, core.Turn{Role: core.RoleUser, Content: userMessage}),
		MaxTokens: e.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	if err := e.buffer.Append(ctx, core.Turn{Role: core.RoleUser, Content: userMessage}); err != nil {
		return nil, fmt.Errorf("append user turn: %w", err)
	}
	if err := e.buffer.Append(ctx, core.Turn{Role: core.RoleAssistant, Content: text}); err != nil {
		return nil, fmt.Errorf("append assistant turn: %w", err)
	}

	return &Reply{Text: text, Memories: memories}, nil
}

// Memorize distills the session so far into fact chunks and stores
// them, then clears the buffer and rolling summary. State is cleared
// only after storage succeeds, so a failed run can simply be retried.
// Returns the number of chunks stored.
func (e *Engine) Memorize(ctx context.Context) (int, error) {
	summaries, err := e.buffer.SnapshotForProcessing(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot conversation: %w", err)
	}
	if len(summaries) == 0 {
		return 0, nil
	}

	chunks, err := e.extractor.Process(ctx, summaries)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		// Nothing stored, so nothing is cleared; the next trigger
		// retries against the same summaries.
		log.Printf("[ENGINE] Extraction produced no storable chunks")
		return 0, nil
	}

	if err := e.store.Insert(ctx, chunks); err != nil {
		return 0, err
	}

	e.buffer.Reset()
	return len(chunks), nil
}

// Recall searches long-term memory directly.
func (e *Engine) Recall(ctx context.Context, query string, limit int) ([]memory.SearchResult, error) {
	return e.store.Search(ctx, query, limit)
}

// Memories enumerates everything in long-term memory.
func (e *Engine) Memories(ctx context.Context) ([]memory.StoredMemory, error) {
	return e.store.ListAll(ctx)
}

// Forget clears long-term memory and returns the count deleted.
func (e *Engine) Forget(ctx context.Context) (int, error) {
	return e.store.Clear(ctx)
}

// Buffer exposes the session's conversation buffer.
func (e *Engine) Buffer() *memory.Buffer {
	return e.buffer
}

// formatMemories renders retrieved memories as a numbered prompt block.
func formatMemories(memories []memory.SearchResult) string {
	if len(memories) == 0 {
		return ""
	}

	var block strings.Builder
	block.WriteString("=== RELEVANT MEMORIES ===\n")
	for i, m := range memories {
		fmt.Fprintf(&block, "%d. %s\n", i+1, m.Narrative)
	}
	return strings.TrimRight(block.String(), "\n")
}
