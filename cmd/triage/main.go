package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"symptom-triage/internal/app"
	"symptom-triage/internal/config"
	"symptom-triage/internal/logging"
	"symptom-triage/internal/models"
	"symptom-triage/internal/prompt"
	"symptom-triage/internal/triage"
)

func main() {
	cfg := config.Load()

	queryFlag := flag.String("q", "", "Symptom description or question (non-interactive mode)")
	interactive := flag.Bool("i", false, "Run in interactive mode")
	category := flag.String("category", "adult", "Patient category (e.g. 'pregnant women', 'newborn', 'elderly')")
	audioPath := flag.String("audio", "", "Audio file to transcribe and analyze")
	modelSize := flag.String("size", cfg.WhisperDefaultSize, "Speech model size (tiny, base, small, medium, large)")
	kb := flag.Bool("kb", false, "Answer from the knowledge base instead of running a triage analysis")
	direct := flag.Bool("direct", false, "Ask the language model directly without retrieval")
	retrieve := flag.Bool("retrieve", false, "Only list the passages retrieved for the query")
	maxResults := flag.Int("context", cfg.RetrievalK, "Number of passages to return with -kb")
	verbose := flag.Bool("v", false, "Log at debug level")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: "console"})

	ctx := context.Background()
	application, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize symptom analyzer")
	}
	defer application.Close()

	r := &runner{
		analyzer:   application.Analyzer,
		category:   prompt.ParseCategory(*category),
		modelSize:  *modelSize,
		maxResults: *maxResults,
		kb:         *kb,
		direct:     *direct,
		retrieve:   *retrieve,
	}

	switch {
	case *audioPath != "":
		if err := r.analyzeAudio(ctx, *audioPath); err != nil {
			fatal(err)
		}
	case *interactive:
		r.interactive(ctx)
	case *queryFlag != "":
		out, err := r.run(ctx, *queryFlag)
		if err != nil {
			fatal(err)
		}
		fmt.Println(out)
	default:
		fmt.Fprintln(os.Stderr, "A query is required in non-interactive mode. Use -q 'your symptoms', -i or -audio")
		os.Exit(2)
	}
}

type runner struct {
	analyzer   *triage.Analyzer
	category   prompt.Category
	modelSize  string
	maxResults int
	kb         bool
	direct     bool
	retrieve   bool
}

func (r *runner) run(ctx context.Context, input string) (string, error) {
	switch {
	case r.retrieve:
		passages, err := r.analyzer.RetrievePassages(ctx, input)
		if err != nil {
			return "", err
		}
		return formatAnswer(fmt.Sprintf("Retrieved %d passages from %s", len(passages), r.analyzer.IndexName()), passages), nil
	case r.kb:
		answer, sources, err := r.analyzer.QueryKnowledgeBase(ctx, input, r.maxResults)
		if err != nil {
			return "", err
		}
		return formatAnswer(answer, sources), nil
	case r.direct:
		return r.analyzer.DirectQuery(ctx, input)
	default:
		analysis, err := r.analyzer.Analyze(ctx, input, r.category)
		if err != nil {
			return "", err
		}
		return formatAnalysis(analysis)
	}
}

func (r *runner) analyzeAudio(ctx context.Context, path string) error {
	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}

	t, analysis, err := r.analyzer.AnalyzeAudio(ctx, base64.StdEncoding.EncodeToString(audio), r.modelSize, r.category)
	if err != nil {
		return err
	}
	fmt.Printf("Transcript (%s): %s\n\n", t.Language, t.Text)

	out, err := formatAnalysis(analysis)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func (r *runner) interactive(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Printf("Symptom Triage Assistant (%s, %s mode) - describe symptoms (type 'exit' to quit)\n",
		r.category, r.analyzer.RetrievalMode())
	fmt.Println("Commands: /category <label>, /kb, /direct, /retrieve, /analyze")

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		lower := strings.ToLower(input)
		switch {
		case lower == "exit" || lower == "quit":
			return
		case input == "":
			continue
		case strings.HasPrefix(lower, "/category "):
			r.category = prompt.ParseCategory(input[len("/category "):])
			fmt.Printf("Category set to: %s\n", r.category)
			continue
		case lower == "/retrieve":
			r.kb, r.direct, r.retrieve = false, false, true
			fmt.Println("Retrieval-only mode")
			continue
		case lower == "/kb":
			r.kb, r.direct, r.retrieve = true, false, false
			fmt.Println("Knowledge-base mode")
			continue
		case lower == "/direct":
			r.kb, r.direct, r.retrieve = false, true, false
			fmt.Println("Direct model mode")
			continue
		case lower == "/analyze":
			r.kb, r.direct, r.retrieve = false, false, false
			fmt.Println("Triage analysis mode")
			continue
		}

		fmt.Print("Analyzing... ")
		out, err := r.run(ctx, input)
		if err != nil {
			fmt.Printf("\rError: %v\n", err)
			continue
		}
		fmt.Println("\r" + out)
	}
}

func formatAnalysis(a models.StructuredAnalysis) (string, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode analysis: %w", err)
	}
	return fmt.Sprintf("Urgency: %s\n\n%s", models.ClassifyUrgency(a.UrgencyLevel), data), nil
}

func formatAnswer(answer string, sources []models.Passage) string {
	var sb strings.Builder

	sb.WriteString(answer)
	sb.WriteString("\n\n")

	if len(sources) > 0 {
		sb.WriteString("Sources:\n")
		for i, source := range sources {
			page := "N/A"
			if p, ok := source.Metadata["page_number"]; ok && fmt.Sprint(p) != "0" {
				page = fmt.Sprint(p)
			}
			sb.WriteString(fmt.Sprintf("  %d. [%s, Page: %s] %s\n", i+1, source.Source, page, source.Content))
		}
	}

	return sb.String()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
