package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/evermind-ai/recall/core"
	"github.com/evermind-ai/recall/llm"
)

// factDelimiter separates unrelated facts in the generation output.
const factDelimiter = "|"

const extractionInstructions = `You extract long-term memory facts from conversation summaries.

Extract self-contained factual statements: who/what/where/when, preferences, skills, and plans. Do NOT extract narrative or conversational-flow statements ("the user then asked...").

Rules:
- Each statement must make sense on its own, with no external context.
- Merge related facts into one statement.
- Separate unrelated facts with the "` + factDelimiter + `" character.
- Aim for 2-4 sentences per statement.

Output only the statements and delimiters, nothing else.`

// Extractor turns accumulated free-text summaries into atomic
// MemoryChunks suitable for long-term semantic retrieval.
type Extractor struct {
	gen    llm.Client
	tagger TopicTagger
	source string
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithTopicTagger replaces the default keyword heuristic. Nil disables
// topic tagging entirely.
func WithTopicTagger(t TopicTagger) ExtractorOption {
	return func(e *Extractor) {
		e.tagger = t
	}
}

// WithSource overrides the source tag attached to produced chunks.
func WithSource(source string) ExtractorOption {
	return func(e *Extractor) {
		if source != "" {
			e.source = source
		}
	}
}

// NewExtractor creates an extraction pipeline over the given client.
func NewExtractor(gen llm.Client, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		gen:    gen,
		tagger: FirstWordsTagger{},
		source: SourceConversationSummary,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process extracts fact chunks from the given summaries. Empty input is
// a no-op that never reaches the generation service. Generation failure
// propagates; callers must not assume partial output on error.
// Unparseable output yields zero chunks, not an error.
func (e *Extractor) Process(ctx context.Context, summaries []string) ([]MemoryChunk, error) {
	if len(summaries) == 0 {
		return nil, nil
	}

	var combined strings.Builder
	for i, s := range summaries {
		fmt.Fprintf(&combined, "Summary %d:\n%s\n\n", i+1, s)
	}

	raw, err := e.gen.Complete(ctx, llm.Request{
		System:    extractionInstructions,
		Messages:  []core.Turn{{Role: core.RoleUser, Content: combined.String()}},
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("extract facts: %w", err)
	}

	now := time.Now()
	var chunks []MemoryChunk
	for _, fragment := range splitFacts(raw) {
		words := wordCount(fragment)
		if words < MinChunkWords || words > MaxChunkWords {
			log.Printf("[MEMORY] Dropping fragment with %d words (bounds %d-%d)", words, MinChunkWords, MaxChunkWords)
			continue
		}

		chunk := MemoryChunk{
			Narrative: fragment,
			Metadata: ChunkMetadata{
				Timestamp:   now,
				Source:      e.source,
				ChunkLength: len(fragment),
			},
		}
		if e.tagger != nil {
			chunk.Metadata.Topics = e.tagger.Topics(fragment)
		}
		chunks = append(chunks, chunk)
	}

	log.Printf("[MEMORY] Extracted %d chunks from %d summaries", len(chunks), len(summaries))
	return chunks, nil
}

// splitFacts parses raw generation output into candidate fact strings:
// split on the delimiter, trim whitespace, drop empty fragments. Pure
// so delimiter edge cases can be tested without any service call.
func splitFacts(raw string) []string {
	var facts []string
	for _, part := range strings.Split(raw, factDelimiter) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		facts = append(facts, part)
	}
	return facts
}
