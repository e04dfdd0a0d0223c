package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evermind-ai/recall/memory"
	"github.com/evermind-ai/recall/memory/embedder/mock"
)

// fakeBackend is an in-memory Backend with injectable failures.
type fakeBackend struct {
	records  []memory.BackendRecord
	addErr   error
	queryErr error
	listErr  error
}

func (f *fakeBackend) Add(_ context.Context, id string, _ []float32, document string, metadata map[string]string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.records = append(f.records, memory.BackendRecord{ID: id, Document: document, Metadata: metadata})
	return nil
}

func (f *fakeBackend) Query(_ context.Context, _ []float32, k int) ([]memory.BackendResult, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []memory.BackendResult
	for i, rec := range f.records {
		if i >= k {
			break
		}
		out = append(out, memory.BackendResult{
			ID:       rec.ID,
			Document: rec.Document,
			Metadata: rec.Metadata,
			Distance: float32(i) * 0.1,
		})
	}
	return out, nil
}

func (f *fakeBackend) List(_ context.Context) ([]memory.BackendRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records, nil
}

func (f *fakeBackend) DeleteAll(_ context.Context) (int, error) {
	n := len(f.records)
	f.records = nil
	return n, nil
}

func (f *fakeBackend) Count(_ context.Context) (int, error) {
	return len(f.records), nil
}

// failingEmbedder always errors.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

func (failingEmbedder) Dimensions() int { return 8 }

func testChunk(narrative string) memory.MemoryChunk {
	return memory.MemoryChunk{
		Narrative: narrative,
		Metadata: memory.ChunkMetadata{
			Timestamp:   time.Now(),
			Source:      memory.SourceConversationSummary,
			Topics:      "testing,memory",
			ChunkLength: len(narrative),
		},
	}
}

func TestInsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	store := memory.NewVectorStore(backend, mock.New())

	chunks := []memory.MemoryChunk{
		testChunk("User recently moved from Brazil to Tokyo and misses home cooking."),
		testChunk("User is training for a marathon scheduled for June."),
	}
	if err := store.Insert(ctx, chunks); err != nil {
		t.Fatalf("insert: %v", err)
	}

	stored, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("listAll: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored memories, got %d", len(stored))
	}
	if stored[0].ID == "" || stored[0].ID == stored[1].ID {
		t.Errorf("ids must be unique and non-empty: %q, %q", stored[0].ID, stored[1].ID)
	}

	for i, s := range stored {
		want := chunks[i]
		if s.Chunk.Narrative != want.Narrative {
			t.Errorf("memory %d narrative = %q, want %q", i, s.Chunk.Narrative, want.Narrative)
		}
		if s.Chunk.Metadata.Source != want.Metadata.Source ||
			s.Chunk.Metadata.Topics != want.Metadata.Topics ||
			s.Chunk.Metadata.ChunkLength != want.Metadata.ChunkLength {
			t.Errorf("memory %d metadata = %+v, want %+v", i, s.Chunk.Metadata, want.Metadata)
		}
		if !s.Chunk.Metadata.Timestamp.Equal(want.Metadata.Timestamp) {
			t.Errorf("memory %d timestamp = %v, want %v", i, s.Chunk.Metadata.Timestamp, want.Metadata.Timestamp)
		}
	}
}

func TestInsertPropagatesFailures(t *testing.T) {
	ctx := context.Background()
	chunks := []memory.MemoryChunk{testChunk("Some durable fact about the user worth keeping around.")}

	store := memory.NewVectorStore(&fakeBackend{}, failingEmbedder{})
	if err := store.Insert(ctx, chunks); err == nil {
		t.Error("embedding failure must fail the insert")
	}

	store = memory.NewVectorStore(&fakeBackend{addErr: errors.New("disk full")}, mock.New())
	if err := store.Insert(ctx, chunks); err == nil {
		t.Error("backend failure must fail the insert")
	}
}

func TestSearchDegradesOnDependencyFailure(t *testing.T) {
	ctx := context.Background()

	store := memory.NewVectorStore(&fakeBackend{}, failingEmbedder{})
	results, err := store.Search(ctx, "anything", 3)
	if err != nil {
		t.Fatalf("embed failure must degrade, not propagate: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}

	store = memory.NewVectorStore(&fakeBackend{queryErr: errors.New("index offline")}, mock.New())
	results, err = store.Search(ctx, "anything", 3)
	if err != nil {
		t.Fatalf("backend failure must degrade, not propagate: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSearchRejectsNegativeLimit(t *testing.T) {
	store := memory.NewVectorStore(&fakeBackend{}, mock.New())
	if _, err := store.Search(context.Background(), "query", -1); err == nil {
		t.Error("negative limit must be rejected eagerly")
	}
}

func TestSearchLimitRespected(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	store := memory.NewVectorStore(backend, mock.New())

	for _, n := range []string{
		"User prefers strong black coffee first thing every single morning.",
		"User plays classical guitar and practices most weekday evenings at home.",
		"User is learning Japanese to prepare for daily life in Tokyo.",
	} {
		if err := store.Insert(ctx, []memory.MemoryChunk{testChunk(n)}); err != nil {
			t.Fatal(err)
		}
	}

	results, err := store.Search(ctx, "hobbies", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) > 2 {
		t.Errorf("search returned %d results for limit 2", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("results not in ascending distance order: %v then %v", results[i-1].Distance, results[i].Distance)
		}
	}
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewVectorStore(&fakeBackend{}, mock.New())

	chunks := []memory.MemoryChunk{
		testChunk("User recently adopted a rescue dog named Feijoada from a shelter."),
		testChunk("User commutes by bicycle whenever the Tokyo weather allows it."),
	}
	if err := store.Insert(ctx, chunks); err != nil {
		t.Fatal(err)
	}

	deleted, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if deleted != 2 {
		t.Errorf("first clear deleted %d, want 2", deleted)
	}

	deleted, err = store.Clear(ctx)
	if err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if deleted != 0 {
		t.Errorf("second clear deleted %d, want 0", deleted)
	}

	stored, err := store.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 0 {
		t.Errorf("store not empty after clear: %d memories", len(stored))
	}
}

func TestSearchZeroLimit(t *testing.T) {
	gen := mock.New()
	store := memory.NewVectorStore(&fakeBackend{}, gen)

	results, err := store.Search(context.Background(), "query", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("limit 0 returned %d results", len(results))
	}
}
