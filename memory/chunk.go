package memory

import (
	"strings"
	"time"
)

// Word-count bounds for stored chunks. Fragments outside this range are
// discarded before they reach the store: too short is noise, too long
// usually means the delimiter split failed.
const (
	MinChunkWords = 10
	MaxChunkWords = 200
)

// SourceConversationSummary tags chunks produced by the extraction pipeline.
const SourceConversationSummary = "conversation_summary"

// ChunkMetadata describes where a chunk came from and what it covers.
type ChunkMetadata struct {
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
	Topics      string    `json:"topics,omitempty"` // comma-joined keywords
	ChunkLength int       `json:"chunk_length"`     // character length of the narrative
}

// MemoryChunk is an atomic, self-contained factual statement eligible
// for long-term storage. Chunks are immutable after creation.
type MemoryChunk struct {
	Narrative string        `json:"narrative"`
	Metadata  ChunkMetadata `json:"metadata"`
}

// StoredMemory is a MemoryChunk plus its backend-assigned id.
type StoredMemory struct {
	ID    string      `json:"id"`
	Chunk MemoryChunk `json:"chunk"`
}

// SearchResult is a transient projection returned by Search. Distance is
// backend-defined (lower means more similar) and is an opaque ordering
// key, not a calibrated probability.
type SearchResult struct {
	Narrative string        `json:"narrative"`
	Metadata  ChunkMetadata `json:"metadata"`
	Distance  float32       `json:"distance"`
}

// TopicTagger derives an optional comma-joined keyword string from a
// chunk narrative. Implementations may be arbitrarily smart; the field
// stays advisory either way.
type TopicTagger interface {
	Topics(narrative string) string
}

// FirstWordsTagger is the default tagger: the first three distinct
// words longer than five characters, lower-cased. A weak heuristic,
// kept pluggable on purpose.
type FirstWordsTagger struct{}

// Topics implements TopicTagger.
func (FirstWordsTagger) Topics(narrative string) string {
	seen := make(map[string]bool)
	var topics []string
	for _, word := range strings.Fields(narrative) {
		word = strings.ToLower(strings.Trim(word, ".,!?;:\"'()"))
		if len(word) <= 5 || seen[word] {
			continue
		}
		seen[word] = true
		topics = append(topics, word)
		if len(topics) == 3 {
			break
		}
	}
	return strings.Join(topics, ",")
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
