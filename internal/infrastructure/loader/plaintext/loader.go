// Package plaintext loads UTF-8 text files as page sequences. Pages are
// separated by form feeds when present, otherwise long content is paged by a
// fixed character budget so downstream stages always see bounded pages.
package plaintext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kirillkom/docpipe/internal/core/domain"
)

const defaultPageChars = 4000

type Loader struct {
	PageChars int
}

func New(pageChars int) *Loader {
	if pageChars <= 0 {
		pageChars = defaultPageChars
	}
	return &Loader{PageChars: pageChars}
}

func (l *Loader) Load(_ context.Context, path string) (*domain.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source file: %w", err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("unsupported binary content: %s", filepath.Base(path))
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load plaintext", fmt.Errorf("empty file %s", path))
	}

	var chunks []string
	if strings.Contains(text, "\f") {
		for _, part := range strings.Split(text, "\f") {
			part = strings.TrimSpace(part)
			if part != "" {
				chunks = append(chunks, part)
			}
		}
	} else {
		chunks = pageBySize(text, l.PageChars)
	}

	pages := make([]domain.Page, 0, len(chunks))
	for i, chunk := range chunks {
		pages = append(pages, domain.Page{Index: i, Text: chunk})
	}
	doc, err := domain.NewDocument(uuid.New().String(), path, pages)
	if err != nil {
		return nil, err
	}
	doc.MimeType = "text/plain"
	return doc, nil
}

func pageBySize(text string, pageChars int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/pageChars+1)
	for start := 0; start < len(runes); start += pageChars {
		end := start + pageChars
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}
