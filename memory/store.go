package memory

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Metadata keys used when persisting chunks to the backend.
const (
	metaSource      = "source"
	metaTopics      = "topics"
	metaChunkLength = "chunk_length"
	metaCreatedAt   = "created_at"
)

// VectorStore implements Store over an injected Backend and Embedder.
// Reads may run concurrently; writes are serialized so concurrent
// sessions cannot interleave partial batches.
type VectorStore struct {
	backend  Backend
	embedder Embedder
	writeMu  sync.Mutex
}

// NewVectorStore creates a store over the given backend and embedder.
// Both are externally owned; the store never closes them.
func NewVectorStore(backend Backend, embedder Embedder) *VectorStore {
	return &VectorStore{
		backend:  backend,
		embedder: embedder,
	}
}

// Insert embeds each chunk, assigns it a unique id, and writes it to the
// backend one record at a time. The first failure aborts the call.
func (s *VectorStore) Insert(ctx context.Context, chunks []MemoryChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for i, chunk := range chunks {
		embedding, err := s.embedder.Embed(ctx, chunk.Narrative)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}
		id := uuid.New().String()
		if err := s.backend.Add(ctx, id, embedding, chunk.Narrative, encodeMetadata(chunk.Metadata)); err != nil {
			return fmt.Errorf("write chunk %d: %w", i, err)
		}
	}

	log.Printf("[MEMORY] Stored %d chunks", len(chunks))
	return nil
}

// Search embeds the query and returns the backend's nearest matches in
// ascending distance order. Dependency failures degrade to an empty
// result set; only contract violations return an error.
func (s *VectorStore) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit < 0 {
		return nil, fmt.Errorf("search limit must not be negative, got %d", limit)
	}
	if limit == 0 {
		return nil, nil
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("[MEMORY] Search degraded, embed query failed: %v", err)
		return nil, nil
	}

	matches, err := s.backend.Query(ctx, embedding, limit)
	if err != nil {
		log.Printf("[MEMORY] Search degraded, backend query failed: %v", err)
		return nil, nil
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, SearchResult{
			Narrative: m.Document,
			Metadata:  decodeMetadata(m.Metadata),
			Distance:  m.Distance,
		})
	}
	return results, nil
}

// ListAll enumerates every stored memory.
func (s *VectorStore) ListAll(ctx context.Context) ([]StoredMemory, error) {
	records, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}

	memories := make([]StoredMemory, 0, len(records))
	for _, rec := range records {
		memories = append(memories, StoredMemory{
			ID: rec.ID,
			Chunk: MemoryChunk{
				Narrative: rec.Document,
				Metadata:  decodeMetadata(rec.Metadata),
			},
		})
	}
	return memories, nil
}

// Clear deletes every stored memory and returns the count deleted.
func (s *VectorStore) Clear(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deleted, err := s.backend.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear memories: %w", err)
	}
	log.Printf("[MEMORY] Cleared %d memories", deleted)
	return deleted, nil
}

func encodeMetadata(md ChunkMetadata) map[string]string {
	m := map[string]string{
		metaSource:      md.Source,
		metaChunkLength: strconv.Itoa(md.ChunkLength),
		metaCreatedAt:   md.Timestamp.Format(time.RFC3339Nano),
	}
	if md.Topics != "" {
		m[metaTopics] = md.Topics
	}
	return m
}

func decodeMetadata(m map[string]string) ChunkMetadata {
	length, _ := strconv.Atoi(m[metaChunkLength])
	created, _ := time.Parse(time.RFC3339Nano, m[metaCreatedAt])
	return ChunkMetadata{
		Timestamp:   created,
		Source:      m[metaSource],
		Topics:      m[metaTopics],
		ChunkLength: length,
	}
}
