// Package processor turns medical reference documents into text chunks for
// the knowledge index.
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"symptom-triage/internal/models"

	"github.com/ledongthuc/pdf"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is carried from the end of one chunk into the next.
	DefaultChunkOverlap = 200
	// MinChunkSize drops fragments too small to be useful context.
	MinChunkSize = 50
)

var (
	spaceRe      = regexp.MustCompile(`[ \t\r\v]+`)
	paraSepRe    = regexp.MustCompile(`\n\s*\n+`)
	pageMarkerRe = regexp.MustCompile(`(?i)^(page\s+)?\d+(\s+of\s+\d+)?$`)
	headingRe    = regexp.MustCompile(`(?i)^(chapter|section|part)\s+[\dIVX]+\b`)
)

// medicalAbbreviations are expanded in place so queries written in plain
// language still match.
var medicalAbbreviations = map[string]string{
	" BP ":   " blood pressure (BP) ",
	" FHR ":  " fetal heart rate (FHR) ",
	" PPH ":  " postpartum haemorrhage (PPH) ",
	" PROM ": " premature rupture of membranes (PROM) ",
	" IUGR ": " intrauterine growth restriction (IUGR) ",
	" GDM ":  " gestational diabetes mellitus (GDM) ",
	" UTI ":  " urinary tract infection (UTI) ",
	" LBW ":  " low birth weight (LBW) ",
	" NICU ": " neonatal intensive care unit (NICU) ",
	" ORS ":  " oral rehydration solution (ORS) ",
}

// DocumentProcessor extracts and chunks PDF and plain-text documents.
type DocumentProcessor struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewDocumentProcessor creates a processor. Non-positive values use the defaults.
func NewDocumentProcessor(chunkSize, chunkOverlap int) *DocumentProcessor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = min(DefaultChunkOverlap, chunkSize/2)
	}
	return &DocumentProcessor{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
	}
}

// Supported reports whether path has an extension the processor can read.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

// ProcessDir processes every supported document under dir, in name order.
// Chunk IDs are unique across the whole directory.
func (p *DocumentProcessor) ProcessDir(ctx context.Context, dir string) ([]models.TextChunk, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && Supported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(files)

	var all []models.TextChunk
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks, err := p.ProcessFile(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			c.ID = len(all) + 1
			all = append(all, c)
		}
	}
	return all, nil
}

// ProcessFile extracts and chunks one document.
func (p *DocumentProcessor) ProcessFile(ctx context.Context, path string) ([]models.TextChunk, error) {
	var pages []string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err = p.ExtractPages(path)
	case ".txt", ".md":
		var data []byte
		data, err = os.ReadFile(path)
		pages = []string{string(data)}
	default:
		return nil, fmt.Errorf("unsupported document type: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", path, err)
	}

	source := filepath.Base(path)
	title := strings.TrimSuffix(source, filepath.Ext(source))
	paged := len(pages) > 1 || strings.EqualFold(filepath.Ext(path), ".pdf")

	var chunks []models.TextChunk
	section := ""
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageNumber := 0
		if paged {
			pageNumber = i + 1
		}

		for _, block := range p.sections(p.preprocessText(page), section) {
			section = block.heading
			for _, content := range p.splitText(block.text) {
				chunks = append(chunks, models.TextChunk{
					ID:      len(chunks) + 1,
					Content: content,
					Metadata: models.Metadata{
						Source:     source,
						PageNumber: pageNumber,
						Title:      title,
						Section:    section,
					},
				})
			}
		}
	}
	return chunks, nil
}

// ExtractPages extracts the plain text of every page of a PDF file
func (p *DocumentProcessor) ExtractPages(filePath string) ([]string, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// preprocessText cleans one page of extracted text
func (p *DocumentProcessor) preprocessText(text string) string {
	text = p.removeHeadersFooters(text)
	text = p.normalizeWhitespace(text)
	text = p.expandAbbreviations(text)
	return text
}

// removeHeadersFooters drops bare page numbers and copyright lines at the
// top and bottom of a page
func (p *DocumentProcessor) removeHeadersFooters(text string) string {
	lines := strings.Split(text, "\n")
	isNoise := func(line string) bool {
		line = strings.TrimSpace(line)
		return line == "" || pageMarkerRe.MatchString(line) ||
			(len(line) < 80 && strings.Contains(line, "©"))
	}

	start, end := 0, len(lines)
	for start < end && start < 2 && isNoise(lines[start]) {
		start++
	}
	for end > start && end > len(lines)-2 && isNoise(lines[end-1]) {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

// normalizeWhitespace collapses runs of spaces and blank lines while keeping
// paragraph breaks
func (p *DocumentProcessor) normalizeWhitespace(text string) string {
	text = spaceRe.ReplaceAllString(text, " ")
	text = paraSepRe.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (p *DocumentProcessor) expandAbbreviations(text string) string {
	for abbr, expanded := range medicalAbbreviations {
		text = strings.ReplaceAll(text, abbr, expanded)
	}
	return text
}

type block struct {
	heading string
	text    string
}

// sections splits text at heading lines. Text before the first heading
// keeps the heading carried over from the previous page.
func (p *DocumentProcessor) sections(text, current string) []block {
	var blocks []block
	var sb strings.Builder
	flush := func() {
		if strings.TrimSpace(sb.String()) != "" {
			blocks = append(blocks, block{heading: current, text: sb.String()})
		}
		sb.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		if isHeading(line) {
			flush()
			current = line
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	flush()

	if len(blocks) == 0 {
		return []block{{heading: current}}
	}
	return blocks
}

func isHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || utf8.RuneCountInString(line) > 80 {
		return false
	}
	if headingRe.MatchString(line) {
		return true
	}

	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 4
}

// splitText packs paragraphs into chunks of at most ChunkSize characters,
// carrying ChunkOverlap characters of context between neighbours.
func (p *DocumentProcessor) splitText(text string) []string {
	var pieces []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		pieces = append(pieces, p.splitLong(para)...)
	}

	var chunks []string
	var cur string
	emit := func() {
		if utf8.RuneCountInString(strings.TrimSpace(cur)) >= MinChunkSize {
			chunks = append(chunks, strings.TrimSpace(cur))
		}
	}

	for _, piece := range pieces {
		if cur == "" {
			cur = piece
			continue
		}
		if runeLen(cur)+2+runeLen(piece) <= p.ChunkSize {
			cur += "\n\n" + piece
			continue
		}

		emit()
		tail := overlapTail(cur, p.ChunkOverlap)
		if tail != "" && runeLen(tail)+1+runeLen(piece) <= p.ChunkSize {
			cur = tail + " " + piece
		} else {
			cur = piece
		}
	}
	if cur != "" {
		emit()
	}
	return chunks
}

// splitLong breaks a paragraph longer than ChunkSize at word boundaries.
func (p *DocumentProcessor) splitLong(para string) []string {
	if runeLen(para) <= p.ChunkSize {
		return []string{para}
	}

	var out []string
	var cur strings.Builder
	for _, word := range strings.Fields(para) {
		if cur.Len() > 0 && runeLen(cur.String())+1+runeLen(word) > p.ChunkSize {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// overlapTail returns roughly the last n characters of s, starting at a word.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return strings.TrimSpace(s)
	}
	tail := string(r[len(r)-n:])
	if i := strings.IndexAny(tail, " \n"); i >= 0 {
		tail = tail[i+1:]
	}
	return strings.TrimSpace(tail)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
