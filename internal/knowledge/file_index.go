package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"symptom-triage/internal/models"
)

// IndexFileName is the artifact written inside an index directory.
const IndexFileName = "index.json"

type fileIndexDocument struct {
	Name      string             `json:"name"`
	Model     string             `json:"model,omitempty"`
	Dimension int                `json:"dimension"`
	Chunks    []models.TextChunk `json:"chunks"`
}

// FileIndex is an in-memory index loaded from disk and searched by brute-force
// cosine similarity. It is never modified after loading.
type FileIndex struct {
	name      string
	dimension int
	chunks    []models.TextChunk
	norms     []float64
}

// FileIndexExists reports whether dir holds an index artifact.
func FileIndexExists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, IndexFileName))
	return err == nil && !info.IsDir()
}

// LoadFileIndex reads the index stored in dir.
func LoadFileIndex(dir string) (*FileIndex, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", dir, err)
	}

	var doc fileIndexDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode index %s: %w", dir, err)
	}
	if len(doc.Chunks) == 0 {
		return nil, fmt.Errorf("index %s has no passages", dir)
	}

	name := doc.Name
	if name == "" {
		name = filepath.Base(dir)
	}

	idx := &FileIndex{
		name:      name,
		dimension: doc.Dimension,
		chunks:    doc.Chunks,
		norms:     make([]float64, len(doc.Chunks)),
	}
	for i, c := range doc.Chunks {
		if idx.dimension == 0 {
			idx.dimension = len(c.Embedding)
		}
		if len(c.Embedding) != idx.dimension {
			return nil, fmt.Errorf("index %s: chunk %d has dimension %d, expected %d",
				dir, c.ID, len(c.Embedding), idx.dimension)
		}
		idx.norms[i] = norm(c.Embedding)
	}
	return idx, nil
}

// WriteFileIndex stores embedded chunks as an index in dir, creating it if needed.
func WriteFileIndex(dir, model string, chunks []models.TextChunk) error {
	if len(chunks) == 0 {
		return errors.New("no chunks to index")
	}
	dimension := len(chunks[0].Embedding)
	for _, c := range chunks {
		if len(c.Embedding) == 0 || len(c.Embedding) != dimension {
			return fmt.Errorf("chunk %d has dimension %d, expected %d", c.ID, len(c.Embedding), dimension)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	data, err := json.Marshal(fileIndexDocument{
		Name:      filepath.Base(dir),
		Model:     model,
		Dimension: dimension,
		Chunks:    chunks,
	})
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	tmp := filepath.Join(dir, IndexFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, IndexFileName)); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// Name returns the index name.
func (f *FileIndex) Name() string { return f.name }

// Len returns the number of passages in the index.
func (f *FileIndex) Len() int { return len(f.chunks) }

// Search returns the limit passages most similar to embedding.
func (f *FileIndex) Search(ctx context.Context, embedding []float64, limit int) ([]Hit, error) {
	if len(embedding) != f.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(embedding), f.dimension)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qNorm := norm(embedding)
	hits := make([]Hit, len(f.chunks))
	for i, c := range f.chunks {
		hits[i] = Hit{
			Content:  c.Content,
			Metadata: c.Metadata.Map(),
			Score:    cosine(embedding, c.Embedding, qNorm, f.norms[i]),
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float64, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (na * nb)
}
