package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/docpipe/internal/core/domain"
)

const extractionSystemPrompt = "You are a server API that receives document content " +
	"and returns the requested fields as a strict JSON object. " +
	"No markdown, no extra keys, no commentary."

const classificationSystemPrompt = "You are a document classifier. " +
	"You receive document content and a list of candidate classifications. " +
	"Return a strict JSON object: {\"name\": string, \"confidence\": integer from 1 to 10}."

const splitSystemPrompt = "You are a document analyst. " +
	"You receive the pages of a scanned batch and decide where one logical " +
	"document ends and the next begins. Return strict JSON only."

func buildExtractionPrompt(pages []domain.Page, contract *domain.Contract) string {
	var b strings.Builder
	b.WriteString("## Content\n\n")
	for _, p := range pages {
		fmt.Fprintf(&b, "### Page %d\n%s\n\n", p.Index, p.Text)
	}
	b.WriteString("## Fields\n\n")
	b.WriteString(contract.PromptDescription())
	b.WriteString("\nReturn ONLY a JSON object with exactly these fields.\n")
	return b.String()
}

const continuationPrompt = "## CONTINUE JSON\n" +
	"Continue the JSON output exactly from where it stopped. " +
	"Do not repeat anything already produced."

func buildClassificationPrompt(pages []domain.Page, candidates []domain.Classification) string {
	var b strings.Builder
	b.WriteString("## Content\n\n")
	for _, p := range pages {
		fmt.Fprintf(&b, "### Page %d\n%s\n\n", p.Index, p.Text)
	}
	b.WriteString("## Classifications\n\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "%s: %s\n", c.Name, c.Description)
		if c.Contract != nil {
			b.WriteString(c.Contract.PromptDescription())
		}
	}
	b.WriteString("\n## JSON Output\n")
	return b.String()
}

func buildEagerSplitPrompt(doc *domain.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The batch has %d pages, indexed 0 to %d.\n\n", len(doc.Pages), len(doc.Pages)-1)
	for _, p := range doc.Pages {
		fmt.Fprintf(&b, "## Page %d\n%s\n\n", p.Index, p.Text)
	}
	b.WriteString(`Group the pages into logical documents. Return JSON:
{"groups": [{"start": <first page index>, "end": <last page index>}, ...]}
Groups must be contiguous, ordered, non-overlapping, and cover every page index exactly once.
`)
	return b.String()
}

func buildContinuityPrompt(prev, curr domain.Page) string {
	return fmt.Sprintf(`Previous page:
%s

Current page:
%s

Does the current page continue the same logical document as the previous page?
Return JSON: {"continues": true|false}
`, prev.Text, curr.Text)
}
