package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"symptom-triage/internal/metrics"
	"symptom-triage/internal/models"
)

// PassageChars caps the content of passages handed back to callers.
const PassageChars = 200

const expansionPrompt = `You are an AI language model assistant. Your task is to generate %d different versions of the given user question to retrieve relevant documents from a vector database. By generating multiple perspectives on the user question, your goal is to help the user overcome some of the limitations of the distance-based similarity search. Provide these alternative questions separated by newlines.
Original question: %s`

const answerPrompt = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

%s

Question: %s
Helpful Answer:`

// Options tunes retrieval.
type Options struct {
	// K is the number of merged passages handed to generation.
	K int
	// Expansions is the number of alternative phrasings requested from the
	// language model. Zero disables expansion.
	Expansions int

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// DefaultOptions returns three passages from three query phrasings.
func DefaultOptions() Options {
	return Options{K: 3, Expansions: 3, Logger: zerolog.Nop()}
}

// Retriever answers questions from one knowledge index.
type Retriever struct {
	index    Index
	embedder Embedder
	llm      Generator
	opts     Options
}

// NewRetriever creates a retriever over index.
func NewRetriever(index Index, embedder Embedder, llm Generator, opts Options) *Retriever {
	if opts.K <= 0 {
		opts.K = DefaultOptions().K
	}
	if opts.Expansions < 0 {
		opts.Expansions = 0
	}
	return &Retriever{
		index:    index,
		embedder: embedder,
		llm:      llm,
		opts:     opts,
	}
}

// IndexName returns the name of the index being searched.
func (r *Retriever) IndexName() string {
	return r.index.Name()
}

// Retrieve returns the merged top passages for query without generating an answer.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.Passage, error) {
	hits, err := r.retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	return toPassages(hits, 0), nil
}

// Answer retrieves context for query and generates an answer from it. At most
// maxResults source passages are returned; zero or less returns all of them.
func (r *Retriever) Answer(ctx context.Context, query string, maxResults int) (string, []models.Passage, error) {
	hits, err := r.retrieve(ctx, query)
	if err != nil {
		return "", nil, err
	}

	contexts := make([]string, len(hits))
	for i, h := range hits {
		contexts[i] = h.Content
	}

	answer, err := r.llm.Generate(ctx, fmt.Sprintf(answerPrompt, strings.Join(contexts, "\n\n"), query))
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return answer, toPassages(hits, maxResults), nil
}

func (r *Retriever) retrieve(ctx context.Context, query string) ([]Hit, error) {
	queries, expanded := r.expand(ctx, query)

	results := make([][]Hit, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			vec, err := r.embedder.EmbedText(gctx, q)
			if err != nil {
				return fmt.Errorf("failed to embed query: %w", err)
			}
			hits, err := r.index.Search(gctx, vec, r.opts.K)
			if err != nil {
				return fmt.Errorf("failed to search %s: %w", r.index.Name(), err)
			}
			results[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	hits := merge(results, r.opts.K)

	r.opts.Logger.Debug().
		Str("index", r.index.Name()).
		Int("queries", len(queries)).
		Int("passages", len(hits)).
		Bool("expanded", expanded).
		Msg("Retrieved passages")
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordRetrieval(r.index.Name(), len(hits), expanded)
	}
	return hits, nil
}

// expand asks the language model for alternative phrasings of query. The
// original query is used alone when expansion is disabled or yields nothing.
func (r *Retriever) expand(ctx context.Context, query string) ([]string, bool) {
	if r.opts.Expansions == 0 {
		return []string{query}, false
	}

	out, err := r.llm.Generate(ctx, fmt.Sprintf(expansionPrompt, r.opts.Expansions, query))
	if err != nil {
		r.opts.Logger.Warn().Err(err).Msg("Query expansion failed, using original query")
		return []string{query}, false
	}

	queries := splitQueries(out, r.opts.Expansions)
	if len(queries) == 0 {
		return []string{query}, false
	}
	return queries, true
}

func splitQueries(text string, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		line = strings.TrimSpace(line)
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out
}

// merge de-duplicates hits by content, keeping the best score, and returns the
// top k by score. Ties keep the order in which passages were first seen.
func merge(results [][]Hit, k int) []Hit {
	best := make(map[string]int)
	var merged []Hit
	for _, hits := range results {
		for _, h := range hits {
			if i, ok := best[h.Content]; ok {
				if h.Score > merged[i].Score {
					merged[i] = h
				}
				continue
			}
			best[h.Content] = len(merged)
			merged = append(merged, h)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged
}

func toPassages(hits []Hit, limit int) []models.Passage {
	if limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	out := make([]models.Passage, 0, len(hits))
	for _, h := range hits {
		source := "Unknown"
		if s, ok := h.Metadata["source"].(string); ok && s != "" {
			source = s
		}
		out = append(out, models.Passage{
			Source:   source,
			Content:  truncate(h.Content, PassageChars),
			Metadata: h.Metadata,
		})
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
