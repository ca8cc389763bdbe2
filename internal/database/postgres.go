// Package database stores knowledge passages in Postgres with pgvector.
package database

import (
	"context"
	"fmt"
	"strings"

	"symptom-triage/internal/knowledge"
	"symptom-triage/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultDimension matches all-MiniLM class embedding models.
const DefaultDimension = 384

// DB represents the database connection
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB creates a new database connection
func NewDB(ctx context.Context, connStr string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Initialize sets up the passage table and its indices
func (db *DB) Initialize(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	if _, err := db.Pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err := db.Pool.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS knowledge_passages (
            id SERIAL PRIMARY KEY,
            store TEXT NOT NULL,
            content TEXT NOT NULL,
            source TEXT NOT NULL DEFAULT '',
            page_number INTEGER NOT NULL DEFAULT 0,
            title TEXT NOT NULL DEFAULT '',
            section TEXT NOT NULL DEFAULT '',
            embedding vector(%d) NOT NULL
        )
    `, dimension))
	if err != nil {
		return fmt.Errorf("failed to create knowledge_passages table: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS knowledge_passages_embedding_idx ON knowledge_passages
		USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS knowledge_passages_store_idx ON knowledge_passages (store)
	`)
	if err != nil {
		return fmt.Errorf("failed to create store index: %w", err)
	}

	return nil
}

// StoreExists reports whether any passages were indexed under store. A
// missing table counts as an absent store.
func (db *DB) StoreExists(ctx context.Context, store string) (bool, error) {
	var tableExists bool
	if err := db.Pool.QueryRow(ctx, `SELECT to_regclass('knowledge_passages') IS NOT NULL`).Scan(&tableExists); err != nil {
		return false, fmt.Errorf("failed to check passage table: %w", err)
	}
	if !tableExists {
		return false, nil
	}

	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM knowledge_passages WHERE store = $1)
	`, store).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check store %s: %w", store, err)
	}
	return exists, nil
}

// ClearStore removes every passage of store so it can be rebuilt.
func (db *DB) ClearStore(ctx context.Context, store string) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM knowledge_passages WHERE store = $1`, store); err != nil {
		return fmt.Errorf("failed to clear store %s: %w", store, err)
	}
	return nil
}

// StoreChunks inserts embedded chunks under store in a single batch.
func (db *DB) StoreChunks(ctx context.Context, store string, chunks []models.TextChunk) error {
	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO knowledge_passages (store, content, source, page_number, title, section, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7::vector)
		`, store, c.Content, c.Metadata.Source, c.Metadata.PageNumber, c.Metadata.Title, c.Metadata.Section,
			pgVector(c.Embedding))
	}

	results := db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to store chunk %d: %w", chunks[i].ID, err)
		}
	}
	return nil
}

// Store returns a read-only search view over one named store.
func (db *DB) Store(name string) *Store {
	return &Store{db: db, name: name}
}

// Close closes the database connection
func (db *DB) Close() {
	db.Pool.Close()
}

// Store is one named knowledge store searched by cosine distance.
type Store struct {
	db   *DB
	name string
}

var _ knowledge.Index = (*Store)(nil)

// Name returns the store name.
func (s *Store) Name() string { return s.name }

// Search finds the passages closest to embedding
func (s *Store) Search(ctx context.Context, embedding []float64, limit int) ([]knowledge.Hit, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT content, source, page_number, title, section,
		       1 - (embedding <=> $2::vector) AS score
		FROM knowledge_passages
		WHERE store = $1
		ORDER BY embedding <=> $2::vector
		LIMIT $3
	`, s.name, pgVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar passages: %w", err)
	}
	defer rows.Close()

	var hits []knowledge.Hit
	for rows.Next() {
		var (
			content string
			meta    models.Metadata
			score   float64
		)
		if err := rows.Scan(&content, &meta.Source, &meta.PageNumber, &meta.Title, &meta.Section, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hits = append(hits, knowledge.Hit{
			Content:  content,
			Metadata: meta.Map(),
			Score:    score,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return hits, nil
}

// pgVector formats a float64 slice as a pgvector literal, e.g. "[0.1,0.2,0.3]".
func pgVector(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
