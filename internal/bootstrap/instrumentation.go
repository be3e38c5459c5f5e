package bootstrap

import (
	"context"
	"time"

	"github.com/kirillkom/docpipe/internal/core/domain"
	"github.com/kirillkom/docpipe/internal/core/ports"
	"github.com/kirillkom/docpipe/internal/observability/metrics"
)

// instrumentedModel counts every generative model call by outcome.
type instrumentedModel struct {
	next    ports.ModelClient
	metrics *metrics.WorkerMetrics
	service string
}

func (m *instrumentedModel) Complete(ctx context.Context, req ports.ModelRequest) (domain.Completion, error) {
	completion, err := m.next.Complete(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.metrics.ModelCall(m.service, outcome)
	return completion, err
}

// instrumentedSplitter times the split stage.
type instrumentedSplitter struct {
	next    ports.DocumentSplitter
	metrics *metrics.WorkerMetrics
	service string
}

func (s *instrumentedSplitter) Split(ctx context.Context, doc *domain.Document) ([]domain.SplitGroup, error) {
	started := time.Now()
	defer s.metrics.ObserveStage(s.service, "split", started)
	return s.next.Split(ctx, doc)
}

// instrumentedClassifier times classification decisions.
type instrumentedClassifier struct {
	next    ports.Classifier
	metrics *metrics.WorkerMetrics
	service string
}

func (c *instrumentedClassifier) Classify(ctx context.Context, pages []domain.Page, candidates []domain.Classification, strategy domain.ConsensusStrategy, threshold int) (*domain.Decision, error) {
	started := time.Now()
	defer c.metrics.ObserveStage(c.service, "classify", started)
	return c.next.Classify(ctx, pages, candidates, strategy, threshold)
}

func (c *instrumentedClassifier) ClassifyTree(ctx context.Context, pages []domain.Page, tree *domain.ClassificationTree, threshold int) (*domain.Decision, error) {
	started := time.Now()
	defer c.metrics.ObserveStage(c.service, "classify", started)
	return c.next.ClassifyTree(ctx, pages, tree, threshold)
}

// instrumentedExtractor times the extract stage.
type instrumentedExtractor struct {
	next    ports.Extractor
	metrics *metrics.WorkerMetrics
	service string
}

func (e *instrumentedExtractor) Extract(ctx context.Context, pages []domain.Page, contract *domain.Contract, strategy domain.CompletionStrategy) (domain.Record, error) {
	started := time.Now()
	defer e.metrics.ObserveStage(e.service, "extract", started)
	return e.next.Extract(ctx, pages, contract, strategy)
}
