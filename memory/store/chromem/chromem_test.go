package chromem_test

import (
	"context"
	"testing"

	"github.com/evermind-ai/recall/memory/store/chromem"
)

func metadata(source string) map[string]string {
	return map[string]string{"source": source}
}

func TestAddQueryOrdering(t *testing.T) {
	ctx := context.Background()
	backend, err := chromem.New("test")
	if err != nil {
		t.Fatal(err)
	}

	// Hand-made unit vectors with known similarity to the query.
	if err := backend.Add(ctx, "exact", []float32{1, 0, 0}, "exact match", metadata("a")); err != nil {
		t.Fatal(err)
	}
	if err := backend.Add(ctx, "near", []float32{0.9, 0.4359, 0}, "near match", metadata("b")); err != nil {
		t.Fatal(err)
	}
	if err := backend.Add(ctx, "far", []float32{0, 0, 1}, "far match", metadata("c")); err != nil {
		t.Fatal(err)
	}

	results, err := backend.Query(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ID != "exact" {
		t.Errorf("closest result = %s, want exact", results[0].ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("distances not ascending: %v then %v", results[i-1].Distance, results[i].Distance)
		}
	}
	if results[0].Document != "exact match" || results[0].Metadata["source"] != "a" {
		t.Errorf("result payload mangled: %+v", results[0])
	}
}

func TestQueryShrinksOversizedK(t *testing.T) {
	ctx := context.Background()
	backend, err := chromem.New("test")
	if err != nil {
		t.Fatal(err)
	}

	if err := backend.Add(ctx, "only", []float32{1, 0, 0}, "the only record", metadata("a")); err != nil {
		t.Fatal(err)
	}

	// k exceeds the record count; the backend retries with smaller limits.
	results, err := backend.Query(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestQueryEmptyCollection(t *testing.T) {
	backend, err := chromem.New("test")
	if err != nil {
		t.Fatal(err)
	}

	results, err := backend.Query(context.Background(), []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("empty collection should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestListInsertionOrder(t *testing.T) {
	ctx := context.Background()
	backend, err := chromem.New("test")
	if err != nil {
		t.Fatal(err)
	}

	ids := []string{"first", "second", "third"}
	for i, id := range ids {
		vec := []float32{float32(i), 1, 0}
		if err := backend.Add(ctx, id, vec, "doc "+id, metadata(id)); err != nil {
			t.Fatal(err)
		}
	}

	records, err := backend.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec.ID != ids[i] {
			t.Errorf("record %d id = %s, want %s", i, rec.ID, ids[i])
		}
	}
}

func TestDeleteAllAndReuse(t *testing.T) {
	ctx := context.Background()
	backend, err := chromem.New("test")
	if err != nil {
		t.Fatal(err)
	}

	if err := backend.Add(ctx, "a", []float32{1, 0, 0}, "doc a", metadata("a")); err != nil {
		t.Fatal(err)
	}
	if err := backend.Add(ctx, "b", []float32{0, 1, 0}, "doc b", metadata("b")); err != nil {
		t.Fatal(err)
	}

	deleted, err := backend.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("deleteAll: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted %d, want 2", deleted)
	}

	deleted, err = backend.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("second deleteAll: %v", err)
	}
	if deleted != 0 {
		t.Errorf("second deleteAll removed %d, want 0", deleted)
	}

	if n, _ := backend.Count(ctx); n != 0 {
		t.Errorf("count after clear = %d", n)
	}

	// The collection is recreated lazily; the backend stays usable.
	if err := backend.Add(ctx, "c", []float32{0, 0, 1}, "doc c", metadata("c")); err != nil {
		t.Fatalf("add after clear: %v", err)
	}
	records, err := backend.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != "c" {
		t.Errorf("unexpected records after reuse: %+v", records)
	}
}
