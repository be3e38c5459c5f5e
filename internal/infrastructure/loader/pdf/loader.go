// Package pdf loads PDF files one page per document page using the native
// text layer. Scanned PDFs without a text layer yield empty page text; OCR
// is a separate collaborator's concern.
package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/docpipe/internal/core/domain"
)

type Loader struct{}

func New() *Loader { return &Loader{} }

func (l *Loader) Load(_ context.Context, path string) (*domain.Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	if total == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load pdf", fmt.Errorf("no pages in %s", path))
	}

	pages := make([]domain.Page, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		text := ""
		if !page.V.IsNull() {
			if extracted, err := page.GetPlainText(nil); err == nil {
				text = strings.TrimSpace(extracted)
			}
		}
		pages = append(pages, domain.Page{
			Index:    i - 1,
			Text:     text,
			Metadata: map[string]string{"pdf_page": fmt.Sprintf("%d", i)},
		})
	}

	doc, err := domain.NewDocument(uuid.New().String(), path, pages)
	if err != nil {
		return nil, err
	}
	doc.MimeType = "application/pdf"
	return doc, nil
}
