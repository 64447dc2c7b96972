package service

import (
	"path/filepath"
	"strings"

	"github.com/tieubaoca/docqa-be/types"
)

// DocumentParser converts raw file bytes into ordered page texts. Parsing is
// a collaborator of the core pipeline: whatever produced the pages, chunking
// and indexing treat them the same.
type DocumentParser interface {
	Parse(content []byte, fileName string) ([]types.Page, error)
}

// ParserFor picks a parser by file extension, or nil for unsupported types.
func ParserFor(fileName string) DocumentParser {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".txt", ".md", ".text":
		return &PlainTextParser{}
	case ".pdf":
		return NewPDFParser()
	}
	return nil
}

// PlainTextParser treats form feeds as page breaks; without any, the whole
// file is a single page.
type PlainTextParser struct{}

func (p *PlainTextParser) Parse(content []byte, fileName string) ([]types.Page, error) {
	var pages []types.Page
	for i, text := range strings.Split(string(content), "\f") {
		pages = append(pages, types.Page{
			Number: i + 1,
			Text:   text,
		})
	}
	return pages, nil
}
