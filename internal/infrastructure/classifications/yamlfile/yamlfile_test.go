package yamlfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/docpipe/internal/core/domain"
)

const definitions = `
classifications:
  - name: financial
    description: financial documents
    children:
      - name: invoice
        description: an invoice
        contract:
          name: Invoice
          fields:
            - name: total
              type: number
              required: true
            - name: items
              type: array
              items: string
              set: true
      - name: receipt
        description: a receipt
  - name: legal
    description: legal documents
`

func writeDefinitions(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "classifications.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadDefinitions(t *testing.T) {
	flat, tree, err := Load(writeDefinitions(t, definitions))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(flat) != 2 || flat[0].Name != "financial" || flat[1].Name != "legal" {
		t.Fatalf("unexpected flat candidates: %+v", flat)
	}
	if len(tree.Roots) != 2 || len(tree.Roots[0].Children) != 2 {
		t.Fatalf("unexpected tree shape")
	}

	invoice := tree.Roots[0].Children[0].Classification
	if invoice.Contract == nil || invoice.Contract.Name != "Invoice" {
		t.Fatalf("contract not loaded: %+v", invoice)
	}
	items, ok := invoice.Contract.Field("items")
	if !ok || !items.Set || items.Items != domain.FieldString {
		t.Fatalf("unexpected items field: %+v", items)
	}
}

func TestLoadRejectsInvalidContract(t *testing.T) {
	bad := `
classifications:
  - name: invoice
    contract:
      name: Invoice
      fields:
        - name: total
          type: decimal
`
	if _, _, err := Load(writeDefinitions(t, bad)); err == nil {
		t.Fatalf("expected an error for an unknown field type")
	}
}

func TestLoadRejectsDuplicateSiblings(t *testing.T) {
	bad := `
classifications:
  - name: invoice
    description: one
  - name: invoice
    description: two
`
	if _, _, err := Load(writeDefinitions(t, bad)); err == nil {
		t.Fatalf("expected an error for duplicate root names")
	}
}

func TestLoadRejectsEmptyFile(t *testing.T) {
	if _, _, err := Load(writeDefinitions(t, "classifications: []")); err == nil {
		t.Fatalf("expected an error for a file with no classifications")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
