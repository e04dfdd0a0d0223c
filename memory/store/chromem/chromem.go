// Package chromem implements the memory.Backend contract over
// chromem-go, a pure Go embedded vector database.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/evermind-ai/recall/memory"
)

// DefaultCollection is used when no collection name is configured.
const DefaultCollection = "memories"

// Backend stores records in a single named chromem collection. The
// collection is created lazily on first use and the handle is cached
// for the process lifetime; re-initialization reuses the handle.
type Backend struct {
	db   *chromem.DB
	name string

	mu  sync.Mutex
	col *chromem.Collection
	ids []string // insertion-ordered, for enumeration
}

var _ memory.Backend = (*Backend)(nil)

// New creates an in-memory chromem backend.
func New(collection string) (*Backend, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Backend{
		db:   chromem.NewDB(),
		name: collection,
	}, nil
}

// collection returns the cached handle, creating the collection on
// first use. Callers must hold b.mu.
func (b *Backend) collection() (*chromem.Collection, error) {
	if b.col != nil {
		return b.col, nil
	}

	// No embedding func: callers always provide embeddings. Default
	// cosine distance.
	col, err := b.db.GetOrCreateCollection(b.name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %q: %w", b.name, err)
	}
	b.col = col
	return col, nil
}

// Add writes one record.
func (b *Backend) Add(ctx context.Context, id string, embedding []float32, document string, metadata map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	col, err := b.collection()
	if err != nil {
		return err
	}

	err = col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   document,
		Embedding: embedding,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	b.ids = append(b.ids, id)
	return nil
}

// Query returns up to k nearest records by cosine distance, closest
// first. An empty collection yields no results and no error.
func (b *Backend) Query(ctx context.Context, embedding []float32, k int) ([]memory.BackendResult, error) {
	b.mu.Lock()
	col, err := b.collection()
	count := len(b.ids)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if count == 0 || k <= 0 {
		return nil, nil
	}

	// chromem rejects nResults larger than the document count. Retry
	// with smaller limits rather than tracking exact counts here.
	var results []chromem.Result
	for limit := k; limit >= 1; limit-- {
		results, err = col.QueryEmbedding(ctx, embedding, limit, nil, nil)
		if err == nil {
			break
		}
		if isTooFewDocsError(err) {
			continue
		}
		return nil, fmt.Errorf("query collection: %w", err)
	}
	if err != nil {
		return nil, nil
	}

	matches := make([]memory.BackendResult, 0, len(results))
	for _, r := range results {
		distance := 1 - r.Similarity
		if distance < 0 {
			distance = 0
		}
		matches = append(matches, memory.BackendResult{
			ID:       r.ID,
			Document: r.Content,
			Metadata: r.Metadata,
			Distance: distance,
		})
	}
	return matches, nil
}

// List enumerates every record in insertion order.
func (b *Backend) List(ctx context.Context) ([]memory.BackendRecord, error) {
	b.mu.Lock()
	col, err := b.collection()
	ids := make([]string, len(b.ids))
	copy(ids, b.ids)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	records := make([]memory.BackendRecord, 0, len(ids))
	for _, id := range ids {
		doc, err := col.GetByID(ctx, id)
		if err != nil {
			log.Printf("[CHROMEM] Skipping missing document %s: %v", id, err)
			continue
		}
		records = append(records, memory.BackendRecord{
			ID:       doc.ID,
			Document: doc.Content,
			Metadata: doc.Metadata,
		})
	}
	return records, nil
}

// DeleteAll drops the collection and returns how many records it held.
// The collection is recreated lazily on next use.
func (b *Backend) DeleteAll(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	deleted := len(b.ids)
	if b.col == nil && deleted == 0 {
		return 0, nil
	}

	if err := b.db.DeleteCollection(b.name); err != nil {
		return 0, fmt.Errorf("delete collection %q: %w", b.name, err)
	}
	b.col = nil
	b.ids = nil
	return deleted, nil
}

// Count returns the number of stored records.
func (b *Backend) Count(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ids), nil
}

// isTooFewDocsError reports whether err is chromem complaining that
// nResults exceeds the collection size.
func isTooFewDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
