package domain

import (
	"fmt"
	"time"
)

type DocumentStatus string

const (
	StatusLoaded     DocumentStatus = "loaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Page is one ordered unit of a loaded document. Pages are immutable after
// loading; every downstream stage receives them read-only.
type Page struct {
	Index    int               `json:"index"`
	Text     string            `json:"text"`
	Image    []byte            `json:"image,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Document is an index-contiguous page sequence starting at 0.
type Document struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	MimeType  string         `json:"mime_type,omitempty"`
	Pages     []Page         `json:"pages"`
	Status    DocumentStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewDocument checks page index contiguity once at construction so the
// splitter and extraction engines can rely on it.
func NewDocument(id, source string, pages []Page) (*Document, error) {
	if len(pages) == 0 {
		return nil, WrapError(ErrInvalidInput, "new document", fmt.Errorf("document %q has no pages", source))
	}
	for i, p := range pages {
		if p.Index != i {
			return nil, WrapError(ErrInvalidInput, "new document",
				fmt.Errorf("page at position %d carries index %d", i, p.Index))
		}
	}
	return &Document{
		ID:        id,
		Source:    source,
		Pages:     pages,
		Status:    StatusLoaded,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// SplitGroup identifies a contiguous run of pages, inclusive on both ends,
// forming one logical sub-document.
type SplitGroup struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (g SplitGroup) Len() int { return g.End - g.Start + 1 }

// PagesOf returns the group's slice of the document's pages.
func (g SplitGroup) PagesOf(doc *Document) []Page {
	return doc.Pages[g.Start : g.End+1]
}

// ValidateSplitCover checks that groups are ordered, non-overlapping and
// cover [0, pageCount-1] exactly. Every splitter must hold this invariant:
// a split that drops or duplicates a page is rejected here.
func ValidateSplitCover(groups []SplitGroup, pageCount int) error {
	if len(groups) == 0 {
		return fmt.Errorf("no split groups for %d pages", pageCount)
	}
	next := 0
	for i, g := range groups {
		if g.Start > g.End {
			return fmt.Errorf("group %d has inverted range [%d,%d]", i, g.Start, g.End)
		}
		if g.Start != next {
			return fmt.Errorf("group %d starts at %d, expected %d", i, g.Start, next)
		}
		next = g.End + 1
	}
	if next != pageCount {
		return fmt.Errorf("groups cover pages up to %d, document has %d", next-1, pageCount)
	}
	return nil
}
