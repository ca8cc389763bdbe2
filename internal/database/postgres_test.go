package database

import (
	"context"
	"os"
	"testing"

	"symptom-triage/internal/models"
)

func TestPgVector(t *testing.T) {
	tests := []struct {
		in   []float64
		want string
	}{
		{nil, "[]"},
		{[]float64{1}, "[1]"},
		{[]float64{0.1, -0.25, 3e-07}, "[0.1,-0.25,3e-07]"},
	}
	for _, tt := range tests {
		if got := pgVector(tt.in); got != tt.want {
			t.Errorf("pgVector(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestStoreRoundTrip runs against a real pgvector database when
// TEST_DATABASE_URL is set.
func TestStoreRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := NewDB(ctx, url)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(ctx, 3); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	const store = "test_symptom"
	if err := db.ClearStore(ctx, store); err != nil {
		t.Fatalf("ClearStore: %v", err)
	}
	t.Cleanup(func() { db.ClearStore(context.Background(), store) })

	exists, err := db.StoreExists(ctx, store)
	if err != nil || exists {
		t.Fatalf("expected empty store, got exists=%v err=%v", exists, err)
	}

	chunks := []models.TextChunk{
		{ID: 1, Content: "fever", Metadata: models.Metadata{Source: "a.pdf", PageNumber: 1}, Embedding: []float64{1, 0, 0}},
		{ID: 2, Content: "bleeding", Metadata: models.Metadata{Source: "b.pdf", PageNumber: 2}, Embedding: []float64{0, 1, 0}},
	}
	if err := db.StoreChunks(ctx, store, chunks); err != nil {
		t.Fatalf("StoreChunks: %v", err)
	}

	if exists, _ := db.StoreExists(ctx, store); !exists {
		t.Fatal("expected store to exist")
	}

	hits, err := db.Store(store).Search(ctx, []float64{0, 1, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Content != "bleeding" || hits[0].Metadata["source"] != "b.pdf" {
		t.Errorf("unexpected hits %+v", hits)
	}
}
