package memory

import "context"

// Store is the four-operation contract of the semantic memory store.
// It is the system's only persistent memory.
//
// Failure policy is asymmetric by design:
//   - Search degrades: embedding or backend failures yield empty
//     results, never an aborted chat turn.
//   - Insert and Clear propagate: silently losing data is worse than
//     surfacing an error.
type Store interface {
	// Insert embeds and persists the chunks. If any chunk cannot be
	// written the call fails with the underlying error; callers must
	// not assume all-or-nothing backend transactionality, only that
	// failure is signalled when not all chunks were written.
	Insert(ctx context.Context, chunks []MemoryChunk) error

	// Search returns up to limit results ordered by ascending distance.
	// A negative limit is rejected eagerly.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// ListAll enumerates every stored memory in backend-defined order.
	ListAll(ctx context.Context) ([]StoredMemory, error)

	// Clear deletes all stored memories and returns the count deleted.
	// Idempotent: clearing an empty store returns 0.
	Clear(ctx context.Context) (int, error)
}

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), cache (ristretto decorator),
// onnx (local model), or API-backed embedders in production.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Backend is the vector index contract the store depends on. It mirrors
// what embedded vector databases expose; implementations must provide
// per-call atomicity for a single add or delete request.
type Backend interface {
	// Add writes one record. Ids are caller-assigned and must be unique.
	Add(ctx context.Context, id string, embedding []float32, document string, metadata map[string]string) error

	// Query returns the k nearest records, ascending by distance.
	Query(ctx context.Context, embedding []float32, k int) ([]BackendResult, error)

	// List returns every record in enumeration order.
	List(ctx context.Context) ([]BackendRecord, error)

	// DeleteAll removes every record and returns how many were removed.
	DeleteAll(ctx context.Context) (int, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// BackendResult is one ranked match from Backend.Query.
type BackendResult struct {
	ID       string
	Document string
	Metadata map[string]string
	Distance float32
}

// BackendRecord is one stored record from Backend.List.
type BackendRecord struct {
	ID       string
	Document string
	Metadata map[string]string
}
