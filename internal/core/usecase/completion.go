package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kirillkom/docpipe/internal/core/domain"
	"github.com/kirillkom/docpipe/internal/core/ports"
)

// defaultMaxContinuationRounds bounds the concatenation loop so a model that
// never reports stop cannot spin forever.
const defaultMaxContinuationRounds = 10

// defaultContextBudgetTokens is the combined input/output size assumed for
// the model when the caller does not configure one.
const defaultContextBudgetTokens = 8192

// tokenCharRatio is the chars-per-token heuristic used for the forbidden
// strategy's pre-flight estimate.
const tokenCharRatio = 4

type CompletionOptions struct {
	// ContextBudgetTokens is the model's combined input/output limit.
	ContextBudgetTokens int
	// MaxContinuationRounds bounds the concatenate loop.
	MaxContinuationRounds int
	// Strict fails a pagination job fast on the first page failure and
	// cancels in-flight siblings. Best-effort (the default) records gaps.
	Strict bool
	// Vision attaches page images to extraction requests when present.
	Vision bool
}

func (o CompletionOptions) normalize() CompletionOptions {
	if o.ContextBudgetTokens <= 0 {
		o.ContextBudgetTokens = defaultContextBudgetTokens
	}
	if o.MaxContinuationRounds <= 0 {
		o.MaxContinuationRounds = defaultMaxContinuationRounds
	}
	return o
}

// CompletionEngine executes one extraction under a completion strategy and
// merges fragments deterministically.
type CompletionEngine struct {
	model     ports.ModelClient
	validator ports.ContractValidator
	opts      CompletionOptions
	log       *slog.Logger
}

func NewCompletionEngine(model ports.ModelClient, validator ports.ContractValidator, opts CompletionOptions, log *slog.Logger) *CompletionEngine {
	return &CompletionEngine{
		model:     model,
		validator: validator,
		opts:      opts.normalize(),
		log:       log,
	}
}

func (e *CompletionEngine) Extract(ctx context.Context, pages []domain.Page, contract *domain.Contract, strategy domain.CompletionStrategy) (domain.Record, error) {
	if len(pages) == 0 {
		return domain.Record{}, domain.WrapError(domain.ErrInvalidInput, "extract", errors.New("no pages"))
	}
	if err := contract.Validate(); err != nil {
		return domain.Record{}, domain.WrapError(domain.ErrInvalidInput, "extract", err)
	}

	switch strategy {
	case domain.StrategyForbidden:
		return e.extractForbidden(ctx, pages, contract)
	case domain.StrategyConcatenate:
		return e.extractConcatenate(ctx, pages, contract)
	case domain.StrategyPaginate:
		return e.extractPaginate(ctx, pages, contract)
	default:
		return domain.Record{}, domain.WrapError(domain.ErrInvalidInput, "extract", fmt.Errorf("unknown completion strategy %q", strategy))
	}
}

// extractForbidden issues exactly one call, or none at all when the size
// estimate already exceeds the budget.
func (e *CompletionEngine) extractForbidden(ctx context.Context, pages []domain.Page, contract *domain.Contract) (domain.Record, error) {
	prompt := buildExtractionPrompt(pages, contract)
	if est := estimateTokens(prompt); est > e.opts.ContextBudgetTokens {
		return domain.Record{}, domain.WrapError(domain.ErrContentTooLarge, "forbidden extract",
			fmt.Errorf("estimated %d tokens, budget %d", est, e.opts.ContextBudgetTokens))
	}

	completion, err := e.model.Complete(ctx, e.request(pages, contract, prompt))
	if err != nil {
		return domain.Record{}, fmt.Errorf("forbidden extract: %w", err)
	}
	return e.decodeAndValidate(completion.Content, contract)
}

// extractConcatenate runs bounded sequential continuation rounds, replaying
// each truncated fragment as an assistant turn, and joins the fragments once
// the model reports stop.
func (e *CompletionEngine) extractConcatenate(ctx context.Context, pages []domain.Page, contract *domain.Contract) (domain.Record, error) {
	req := e.request(pages, contract, buildExtractionPrompt(pages, contract))
	fragments := make([]string, 0, 2)

	for round := 1; round <= e.opts.MaxContinuationRounds; round++ {
		completion, err := e.model.Complete(ctx, req)
		if err != nil {
			return domain.Record{}, fmt.Errorf("continuation round %d: %w", round, err)
		}
		fragments = append(fragments, completion.Content)

		switch completion.FinishReason {
		case domain.FinishStop:
			return e.joinAndValidate(fragments, contract)
		case domain.FinishLength:
			req.Messages = append(req.Messages,
				ports.ModelMessage{Role: ports.RoleAssistant, Content: completion.Content},
				ports.ModelMessage{Role: ports.RoleUser, Content: continuationPrompt},
			)
		default:
			return domain.Record{}, fmt.Errorf("continuation round %d: model finish reason %q", round, completion.FinishReason)
		}
	}

	return domain.Record{}, domain.WrapError(domain.ErrContinuationLimit, "concatenate extract",
		fmt.Errorf("no stop within %d rounds", e.opts.MaxContinuationRounds))
}

// joinAndValidate concatenates fragments in round order and parses them as
// one value. A parse failure here is terminal, never re-continued.
func (e *CompletionEngine) joinAndValidate(fragments []string, contract *domain.Contract) (domain.Record, error) {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(stripFences(f))
	}
	return e.decodeAndValidate(b.String(), contract)
}

type pageResult struct {
	partial domain.PartialResult
	err     error
}

// extractPaginate fans out one call per page, each with the full contract and
// the full context budget, joins at a barrier, then merges sequentially.
func (e *CompletionEngine) extractPaginate(ctx context.Context, pages []domain.Page, contract *domain.Contract) (domain.Record, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]pageResult, len(pages))
	var wg sync.WaitGroup
	for i := range pages {
		wg.Add(1)
		go func(slot int, page domain.Page) {
			defer wg.Done()
			results[slot] = e.extractPage(callCtx, page, contract)
			if results[slot].err != nil && e.opts.Strict {
				cancel()
			}
		}(i, pages[i])
	}
	wg.Wait()

	merged := make([]map[string]any, 0, len(pages))
	var firstErr error
	for i, res := range results {
		fields, err := res.fields()
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("page %d: %w", pages[i].Index, err)
			}
			e.log.Warn("page_extraction_gap", "page", pages[i].Index, "strict", e.opts.Strict, "error", err)
			continue
		}
		merged = append(merged, fields)
	}
	if e.opts.Strict && firstErr != nil {
		return domain.Record{}, fmt.Errorf("paginate extract: %w", firstErr)
	}
	if len(merged) == 0 {
		if firstErr != nil {
			return domain.Record{}, fmt.Errorf("paginate extract: all pages failed: %w", firstErr)
		}
		return domain.Record{}, fmt.Errorf("paginate extract: no page produced a result")
	}

	fields, conflicts := e.mergeFields(contract, merged)
	if err := e.validator.Validate(fields, contract); err != nil {
		if conflicts > 0 {
			return domain.Record{}, domain.WrapError(domain.ErrMergeConflict, "paginate extract", err)
		}
		return domain.Record{}, domain.WrapError(domain.ErrSchemaValidation, "paginate extract", err)
	}
	return domain.Record{Contract: contract.Name, Fields: fields}, nil
}

func (e *CompletionEngine) extractPage(ctx context.Context, page domain.Page, contract *domain.Contract) pageResult {
	completion, err := e.model.Complete(ctx, e.request([]domain.Page{page}, contract, buildExtractionPrompt([]domain.Page{page}, contract)))
	if err != nil {
		return pageResult{err: err}
	}
	return pageResult{partial: domain.PartialResult{
		PageIndex:    page.Index,
		Fragment:     completion.Content,
		FinishReason: completion.FinishReason,
	}}
}

// fields decodes the partial's fragment. A page whose call failed or whose
// fragment does not parse contributes nothing to the merge.
func (r pageResult) fields() (map[string]any, error) {
	if r.err != nil {
		return nil, r.err
	}
	return decodeObject(r.partial.Fragment)
}

// mergeFields combines per-page values field by field in contract order,
// pages in ascending page order. Scalars: first non-null wins, later
// conflicting values are logged and discarded. Arrays: order-preserving
// concatenation, deduplicated only for set fields. Returns the merged value
// and the number of scalar conflicts observed.
func (e *CompletionEngine) mergeFields(contract *domain.Contract, pages []map[string]any) (map[string]any, int) {
	out := make(map[string]any, len(contract.Fields))
	conflicts := 0
	for _, field := range contract.Fields {
		if field.Type == domain.FieldArray {
			out[field.Name] = mergeArrayField(field, pages)
			continue
		}
		for i, page := range pages {
			value, ok := page[field.Name]
			if !ok || value == nil {
				continue
			}
			current, taken := out[field.Name]
			if !taken {
				out[field.Name] = value
				continue
			}
			if fmt.Sprint(current) != fmt.Sprint(value) {
				conflicts++
				e.log.Warn("merge_conflict",
					"field", field.Name,
					"kept", current,
					"discarded", value,
					"page_position", i,
				)
			}
		}
	}
	return out, conflicts
}

func mergeArrayField(field domain.Field, pages []map[string]any) []any {
	combined := make([]any, 0)
	seen := make(map[string]bool)
	for _, page := range pages {
		value, ok := page[field.Name]
		if !ok || value == nil {
			continue
		}
		items, ok := value.([]any)
		if !ok {
			items = []any{value}
		}
		for _, item := range items {
			if field.Set {
				key := fmt.Sprint(item)
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			combined = append(combined, item)
		}
	}
	return combined
}

func (e *CompletionEngine) request(pages []domain.Page, contract *domain.Contract, prompt string) ports.ModelRequest {
	msg := ports.ModelMessage{Role: ports.RoleUser, Content: prompt}
	if e.opts.Vision {
		for _, p := range pages {
			if len(p.Image) > 0 {
				msg.Images = append(msg.Images, p.Image)
			}
		}
	}
	return ports.ModelRequest{
		System:   extractionSystemPrompt,
		Messages: []ports.ModelMessage{msg},
		Schema:   contract,
		Vision:   e.opts.Vision && len(msg.Images) > 0,
		JSONMode: true,
	}
}

func (e *CompletionEngine) decodeAndValidate(content string, contract *domain.Contract) (domain.Record, error) {
	fields, err := decodeObject(content)
	if err != nil {
		return domain.Record{}, domain.WrapError(domain.ErrSchemaValidation, "decode extraction", err)
	}
	if err := e.validator.Validate(fields, contract); err != nil {
		return domain.Record{}, domain.WrapError(domain.ErrSchemaValidation, "validate extraction", err)
	}
	return domain.Record{Contract: contract.Name, Fields: fields}, nil
}

func decodeObject(content string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(stripFences(content)), &fields); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	return fields, nil
}

// stripFences removes markdown code fences some models wrap JSON output in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func estimateTokens(s string) int {
	return len(s)/tokenCharRatio + 1
}
