package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tieubaoca/docqa-be/config"
	"github.com/tieubaoca/docqa-be/types"
)

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

var DefaultChunkingConfig = config.ChunkingConfig{
	TargetSize:  1200,
	OverlapSize: 180,
}

// Chunker turns per-page text into overlapping, citeable chunks. Chunks never
// cross a page boundary, so every chunk id maps to exactly one page. Output
// is deterministic for identical input.
type Chunker struct {
	targetSize  int // preferred chunk size in characters
	overlapSize int // trailing characters carried into the next chunk
}

func NewChunker(cfg config.ChunkingConfig) *Chunker {
	if cfg.TargetSize <= 0 {
		cfg.TargetSize = DefaultChunkingConfig.TargetSize
	}
	if cfg.OverlapSize < 0 || cfg.OverlapSize >= cfg.TargetSize {
		cfg.OverlapSize = DefaultChunkingConfig.OverlapSize
	}
	return &Chunker{
		targetSize:  cfg.TargetSize,
		overlapSize: cfg.OverlapSize,
	}
}

// ChunkPages chunks every page of a document independently. The per-page
// ordinal in the chunk id restarts on each page; ChunkNumber keeps increasing
// across the whole document in page order.
func (c *Chunker) ChunkPages(documentID, tenantID string, pages []types.Page) []types.Chunk {
	var chunks []types.Chunk
	chunkNumber := 0

	for _, page := range pages {
		for i, text := range c.chunkPage(page.Text) {
			chunkNumber++
			chunks = append(chunks, types.Chunk{
				ChunkID:     fmt.Sprintf("%s#p%dc%d", documentID, page.Number, i+1),
				DocumentID:  documentID,
				TenantID:    tenantID,
				PageNumber:  page.Number,
				ChunkNumber: chunkNumber,
				Text:        text,
			})
		}
	}
	return chunks
}

// chunkPage splits one page into chunk texts. Paragraphs are accumulated
// greedily; when the buffer would overflow the target size it is flushed and
// the next buffer is seeded with the trailing overlap of the flushed text so
// entities spanning a boundary survive in both chunks. A single oversized
// paragraph is hard-split at the target size.
func (c *Chunker) chunkPage(text string) []string {
	var out []string
	buffer := ""

	for _, paragraph := range splitParagraphs(text) {
		if buffer != "" && len(buffer)+len(paragraph) > c.targetSize {
			out = append(out, buffer)
			buffer = overlapTail(buffer, c.overlapSize) + " " + paragraph
		} else if buffer == "" {
			buffer = paragraph
		} else {
			buffer = buffer + " " + paragraph
		}

		// one oversized paragraph can blow past the target; hard-split
		for len(buffer) > c.targetSize*3/2 {
			cut := runeStart(buffer, c.targetSize)
			out = append(out, buffer[:cut])
			buffer = buffer[runeStart(buffer, cut-c.overlapSize):]
		}
	}

	if strings.TrimSpace(buffer) != "" {
		out = append(out, buffer)
	}
	return out
}

// splitParagraphs breaks text on blank-line boundaries and collapses internal
// whitespace inside each paragraph.
func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, block := range blankLineRe.Split(text, -1) {
		p := strings.Join(strings.Fields(block), " ")
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

func overlapTail(s string, overlap int) string {
	if len(s) <= overlap {
		return s
	}
	return s[runeStart(s, len(s)-overlap):]
}

// runeStart backs a byte offset off to the nearest rune boundary at or before
// it, so cuts never land inside a multibyte character.
func runeStart(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
