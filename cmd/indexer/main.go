package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"symptom-triage/internal/config"
	"symptom-triage/internal/database"
	"symptom-triage/internal/embedding"
	"symptom-triage/internal/knowledge"
	"symptom-triage/internal/logging"
	"symptom-triage/internal/models"
	"symptom-triage/internal/processor"
)

func main() {
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: "console"})

	pdfPath := flag.String("pdf", "", "Path to a single PDF or text document")
	dirPath := flag.String("dir", "", "Directory of PDF, .txt and .md documents")
	store := flag.String("store", cfg.SymptomIndex, "Index name to build (e.g. symptom_preg_db, medical_db)")
	backend := flag.String("backend", cfg.IndexBackend, "Index backend: file or postgres")
	vectorDir := flag.String("vectorstore", cfg.VectorStoreDir, "Root directory for file indices")
	pgConnString := flag.String("pg", cfg.DatabaseURL, "PostgreSQL connection string")
	ollamaHost := flag.String("ollama", cfg.OllamaHost, "Ollama host (default uses OLLAMA_HOST env var)")
	embeddingModel := flag.String("model", cfg.EmbeddingModel, "Ollama model for embeddings")
	chunkSize := flag.Int("chunk-size", processor.DefaultChunkSize, "Character size for text chunks")
	chunkOverlap := flag.Int("chunk-overlap", processor.DefaultChunkOverlap, "Character overlap between chunks")
	maxConcurrent := flag.Int("max-concurrent", max(1, runtime.NumCPU()/2), "Maximum concurrent embedding requests")
	flag.Parse()

	if (*pdfPath == "") == (*dirPath == "") {
		log.Fatal().Msg("Exactly one of -pdf or -dir is required")
	}
	input := *pdfPath
	if input == "" {
		input = *dirPath
	}
	if _, err := os.Stat(input); err != nil {
		log.Fatal().Err(err).Str("path", input).Msg("Input does not exist")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("input", input).
		Str("store", *store).
		Str("backend", *backend).
		Str("model", *embeddingModel).
		Int("max_concurrent", *maxConcurrent).
		Msg("Building knowledge index")

	docs := processor.NewDocumentProcessor(*chunkSize, *chunkOverlap)
	startTime := time.Now()

	var chunks []models.TextChunk
	var err error
	if *pdfPath != "" {
		chunks, err = docs.ProcessFile(ctx, *pdfPath)
	} else {
		chunks, err = docs.ProcessDir(ctx, *dirPath)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to process documents")
	}
	if len(chunks) == 0 {
		log.Fatal().Msg("No text extracted from input")
	}
	log.Info().Int("chunks", len(chunks)).Dur("elapsed", time.Since(startTime)).Msg("Extracted chunks")

	embedder, err := embedding.NewOllamaEmbedder(*ollamaHost, *embeddingModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create embedder")
	}
	embedder.MaxConcurrent = *maxConcurrent

	embeddingStart := time.Now()
	progressFunc := func(processed, total int) {
		elapsed := time.Since(embeddingStart)
		remaining := elapsed*time.Duration(total)/time.Duration(processed) - elapsed
		if processed%25 == 0 || processed == total {
			log.Info().
				Int("processed", processed).
				Int("total", total).
				Dur("remaining", remaining.Round(time.Second)).
				Msg("Embedding progress")
		}
	}

	embedded, err := embedder.EmbedBatchWithProgress(ctx, chunks, progressFunc)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create embeddings")
	}
	embeddingDuration := time.Since(embeddingStart)

	storeStart := time.Now()
	switch *backend {
	case "file":
		dir := filepath.Join(*vectorDir, *store)
		if err := knowledge.WriteFileIndex(dir, *embeddingModel, embedded); err != nil {
			log.Fatal().Err(err).Msg("Failed to write index")
		}
		log.Info().Str("path", dir).Msg("File index written")

	case "postgres":
		if err := storePostgres(ctx, *pgConnString, *store, embedded); err != nil {
			log.Fatal().Err(err).Msg("Failed to store chunks")
		}

	default:
		log.Fatal().Str("backend", *backend).Msg("Unknown index backend")
	}

	log.Info().
		Dur("total", time.Since(startTime)).
		Dur("embedding", embeddingDuration).
		Dur("storage", time.Since(storeStart)).
		Msg("Completed indexing")

	printChunkStatistics(embedded)
}

func storePostgres(ctx context.Context, connStr, store string, chunks []models.TextChunk) error {
	db, err := database.NewDB(ctx, connStr)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Initialize(ctx, len(chunks[0].Embedding)); err != nil {
		return err
	}
	if err := db.ClearStore(ctx, store); err != nil {
		return err
	}
	if err := db.StoreChunks(ctx, store, chunks); err != nil {
		return err
	}
	log.Info().Str("store", store).Int("chunks", len(chunks)).Msg("Chunks stored in database")
	return nil
}

// printChunkStatistics logs a summary of the indexed chunks
func printChunkStatistics(chunks []models.TextChunk) {
	var totalLength int
	sources := make(map[string]int)
	sections := make(map[string]int)

	for _, chunk := range chunks {
		totalLength += len([]rune(chunk.Content))
		sources[chunk.Metadata.Source]++
		if chunk.Metadata.Section != "" {
			sections[chunk.Metadata.Section]++
		}
	}

	log.Info().
		Int("chunks", len(chunks)).
		Float64("avg_length", float64(totalLength)/float64(len(chunks))).
		Int("sources", len(sources)).
		Int("sections", len(sections)).
		Msg("Chunk statistics")

	for source, count := range sources {
		log.Info().Str("source", source).Int("chunks", count).Msg("Source breakdown")
	}
}
