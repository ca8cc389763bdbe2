package processor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func sentence(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "fever"
	}
	return strings.Join(words, " ") + "."
}

func TestNewDocumentProcessorDefaults(t *testing.T) {
	p := NewDocumentProcessor(0, -1)
	if p.ChunkSize != DefaultChunkSize {
		t.Errorf("expected chunk size %d, got %d", DefaultChunkSize, p.ChunkSize)
	}
	if p.ChunkOverlap != DefaultChunkOverlap {
		t.Errorf("expected overlap %d, got %d", DefaultChunkOverlap, p.ChunkOverlap)
	}

	p = NewDocumentProcessor(100, 500)
	if p.ChunkOverlap >= p.ChunkSize {
		t.Errorf("overlap %d must be smaller than chunk size %d", p.ChunkOverlap, p.ChunkSize)
	}
}

func TestSplitTextRespectsChunkSize(t *testing.T) {
	p := NewDocumentProcessor(200, 40)

	var paras []string
	for i := 0; i < 10; i++ {
		paras = append(paras, sentence(12))
	}
	chunks := p.splitText(strings.Join(paras, "\n\n"))

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 200 {
			t.Errorf("chunk %d has %d chars, want <= 200", i, n)
		}
	}
}

func TestSplitTextOverlap(t *testing.T) {
	p := NewDocumentProcessor(120, 30)
	text := "Alpha paragraph about morning sickness and nausea.\n\n" +
		"Beta paragraph about swelling of the feet and hands.\n\n" +
		"Gamma paragraph about headaches with blurred vision."

	chunks := p.splitText(text)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if !strings.Contains(chunks[1], "hands.") {
		t.Errorf("expected second chunk to carry overlap from the first, got %q", chunks[1])
	}
}

func TestSplitTextLongParagraph(t *testing.T) {
	p := NewDocumentProcessor(100, 0)
	chunks := p.splitText(sentence(80))

	if len(chunks) < 4 {
		t.Fatalf("expected long paragraph to be split, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if strings.HasPrefix(c, " ") || strings.Contains(c, "feve ") {
			t.Errorf("chunk split mid-word: %q", c)
		}
	}
}

func TestSplitTextDropsTinyFragments(t *testing.T) {
	p := NewDocumentProcessor(500, 50)
	if chunks := p.splitText("Too short."); len(chunks) != 0 {
		t.Errorf("expected no chunks, got %v", chunks)
	}
}

func TestRemoveHeadersFooters(t *testing.T) {
	p := NewDocumentProcessor(0, 0)
	text := "12\nDehydration in children is common.\nGive small sips often.\nPage 3 of 40"

	got := p.removeHeadersFooters(text)
	if strings.Contains(got, "12") || strings.Contains(got, "Page 3") {
		t.Errorf("page markers not removed: %q", got)
	}
	if !strings.Contains(got, "Give small sips often.") {
		t.Errorf("body text lost: %q", got)
	}
}

func TestNormalizeWhitespaceKeepsParagraphs(t *testing.T) {
	p := NewDocumentProcessor(0, 0)
	got := p.normalizeWhitespace("  Fever   and\tchills  \n\n\n\n  Rest well ")

	want := "Fever and chills\n\nRest well"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandAbbreviations(t *testing.T) {
	p := NewDocumentProcessor(0, 0)
	got := p.expandAbbreviations("Check the BP daily.")
	if !strings.Contains(got, "blood pressure (BP)") {
		t.Errorf("abbreviation not expanded: %q", got)
	}
}

func TestIsHeading(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"DANGER SIGNS IN PREGNANCY", true},
		{"Chapter 4 Newborn care", true},
		{"Section II", true},
		{"Drink plenty of fluids.", false},
		{"ORS", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := isHeading(tt.line); got != tt.want {
				t.Errorf("isHeading(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestProcessFileText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maternal_guide.txt")
	content := "BLEEDING IN PREGNANCY\n" +
		"Any vaginal bleeding during pregnancy needs prompt assessment by a midwife or doctor.\n\n" +
		"FEVER\n" +
		"A temperature above 38 degrees with chills may indicate infection and needs review."
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewDocumentProcessor(500, 50)
	chunks, err := p.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}

	first := chunks[0]
	if first.ID != 1 || chunks[1].ID != 2 {
		t.Errorf("unexpected ids %d, %d", first.ID, chunks[1].ID)
	}
	if first.Metadata.Source != "maternal_guide.txt" {
		t.Errorf("unexpected source %q", first.Metadata.Source)
	}
	if first.Metadata.Title != "maternal_guide" {
		t.Errorf("unexpected title %q", first.Metadata.Title)
	}
	if first.Metadata.PageNumber != 0 {
		t.Errorf("text files have no pages, got %d", first.Metadata.PageNumber)
	}
	if first.Metadata.Section != "BLEEDING IN PREGNANCY" {
		t.Errorf("unexpected section %q", first.Metadata.Section)
	}
	if chunks[1].Metadata.Section != "FEVER" {
		t.Errorf("unexpected section %q", chunks[1].Metadata.Section)
	}
}

func TestProcessFileUnsupported(t *testing.T) {
	p := NewDocumentProcessor(0, 0)
	if _, err := p.ProcessFile(context.Background(), "notes.docx"); err == nil {
		t.Fatal("expected error for unsupported file type")
	}
}

func TestProcessDir(t *testing.T) {
	dir := t.TempDir()
	body := "Keep the baby warm and start breastfeeding within the first hour of birth."
	for _, name := range []string{"b.md", "a.txt", "skip.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	p := NewDocumentProcessor(500, 50)
	chunks, err := p.ProcessDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Metadata.Source != "a.txt" || chunks[1].Metadata.Source != "b.md" {
		t.Errorf("unexpected order: %s, %s", chunks[0].Metadata.Source, chunks[1].Metadata.Source)
	}
	if chunks[0].ID != 1 || chunks[1].ID != 2 {
		t.Errorf("ids not unique across files: %d, %d", chunks[0].ID, chunks[1].ID)
	}
}

func TestProcessDirCancelled(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte(sentence(20)), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewDocumentProcessor(0, 0)
	if _, err := p.ProcessDir(ctx, dir); err == nil {
		t.Fatal("expected context error")
	}
}
