// Package spreadsheet loads XLSX workbooks, one page per sheet, rendering
// rows as pipe-delimited lines.
package spreadsheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/docpipe/internal/core/domain"
)

type Loader struct{}

func New() *Loader { return &Loader{} }

func (l *Loader) Load(_ context.Context, path string) (*domain.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var pages []domain.Page
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		var content strings.Builder
		for _, row := range rows {
			content.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		pages = append(pages, domain.Page{
			Index: len(pages),
			Text:  content.String(),
			Metadata: map[string]string{
				"sheet_name": sheet,
				"row_count":  fmt.Sprintf("%d", len(rows)),
			},
		})
	}
	if len(pages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load spreadsheet", fmt.Errorf("no data in %s", path))
	}

	doc, err := domain.NewDocument(uuid.New().String(), path, pages)
	if err != nil {
		return nil, err
	}
	doc.MimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	return doc, nil
}
