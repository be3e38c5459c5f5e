package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kirillkom/docpipe/internal/core/domain"
	"github.com/kirillkom/docpipe/internal/core/ports"
)

// EagerSplitter decides every boundary in a single model call over the whole
// page sequence. O(1) decision calls, but only appropriate when the full
// content fits the context budget.
type EagerSplitter struct {
	model ports.ModelClient
	log   *slog.Logger

	// FallbackWholeDocument degrades an invalid boundary response to a
	// single group spanning the document instead of failing. Off by
	// default; pages are never silently dropped either way.
	FallbackWholeDocument bool
}

func NewEagerSplitter(model ports.ModelClient, log *slog.Logger) *EagerSplitter {
	return &EagerSplitter{model: model, log: log}
}

type splitResponse struct {
	Groups []struct {
		Start int `json:"start"`
		End   int `json:"end"`
	} `json:"groups"`
}

func (s *EagerSplitter) Split(ctx context.Context, doc *domain.Document) ([]domain.SplitGroup, error) {
	completion, err := s.model.Complete(ctx, ports.ModelRequest{
		System:   splitSystemPrompt,
		Messages: []ports.ModelMessage{{Role: ports.RoleUser, Content: buildEagerSplitPrompt(doc)}},
		JSONMode: true,
	})
	if err != nil {
		return s.fallback(doc, fmt.Errorf("boundary decision call: %w", err))
	}

	var resp splitResponse
	if err := json.Unmarshal([]byte(stripFences(completion.Content)), &resp); err != nil {
		return s.fallback(doc, fmt.Errorf("parse boundary response: %w", err))
	}

	groups := make([]domain.SplitGroup, 0, len(resp.Groups))
	for _, g := range resp.Groups {
		groups = append(groups, domain.SplitGroup{Start: g.Start, End: g.End})
	}
	if err := domain.ValidateSplitCover(groups, len(doc.Pages)); err != nil {
		return s.fallback(doc, err)
	}
	return groups, nil
}

func (s *EagerSplitter) fallback(doc *domain.Document, cause error) ([]domain.SplitGroup, error) {
	if !s.FallbackWholeDocument {
		return nil, domain.WrapError(domain.ErrSplitting, "eager split", cause)
	}
	s.log.Warn("split_fallback_whole_document", "document_id", doc.ID, "pages", len(doc.Pages), "error", cause)
	return []domain.SplitGroup{{Start: 0, End: len(doc.Pages) - 1}}, nil
}

// lazyWindowSize is the number of pages visible to one continuity decision.
const lazyWindowSize = 2

// LazySplitter processes pages incrementally with a two-page sliding window
// and one open group, asking a binary continuity question per transition.
// It never holds more than the window in a decision context, so it scales to
// arbitrarily long documents, trading global coherence for locality.
type LazySplitter struct {
	model ports.ModelClient
	log   *slog.Logger
}

func NewLazySplitter(model ports.ModelClient, log *slog.Logger) *LazySplitter {
	return &LazySplitter{model: model, log: log}
}

type continuityResponse struct {
	Continues bool `json:"continues"`
}

func (s *LazySplitter) Split(ctx context.Context, doc *domain.Document) ([]domain.SplitGroup, error) {
	groups := make([]domain.SplitGroup, 0, 1)
	open := domain.SplitGroup{Start: 0, End: 0}

	for i := 1; i < len(doc.Pages); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.continues(ctx, doc.Pages[i-1], doc.Pages[i]) {
			open.End = i
			continue
		}
		groups = append(groups, open)
		open = domain.SplitGroup{Start: i, End: i}
	}
	groups = append(groups, open)

	if err := domain.ValidateSplitCover(groups, len(doc.Pages)); err != nil {
		return nil, domain.WrapError(domain.ErrSplitting, "lazy split", err)
	}
	return groups, nil
}

// continues answers the window's continuity question. Any failure to decide
// counts as "does not continue": the page opens a new group rather than
// being dropped.
func (s *LazySplitter) continues(ctx context.Context, prev, curr domain.Page) bool {
	completion, err := s.model.Complete(ctx, ports.ModelRequest{
		System:   splitSystemPrompt,
		Messages: []ports.ModelMessage{{Role: ports.RoleUser, Content: buildContinuityPrompt(prev, curr)}},
		JSONMode: true,
	})
	if err != nil {
		s.log.Warn("continuity_call_failed", "page", curr.Index, "error", err)
		return false
	}
	var resp continuityResponse
	if err := json.Unmarshal([]byte(stripFences(completion.Content)), &resp); err != nil {
		s.log.Warn("continuity_response_invalid", "page", curr.Index, "error", err)
		return false
	}
	return resp.Continues
}
