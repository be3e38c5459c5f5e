package ports

import (
	"context"

	"github.com/kirillkom/docpipe/internal/core/domain"
)

// SplitAlgorithm selects the boundary-decision algorithm.
type SplitAlgorithm string

const (
	SplitEager SplitAlgorithm = "eager"
	SplitLazy  SplitAlgorithm = "lazy"
)

// DocumentSplitter partitions a document into contiguous logical
// sub-documents.
type DocumentSplitter interface {
	Split(ctx context.Context, doc *domain.Document) ([]domain.SplitGroup, error)
}

// Classifier decides one winning classification for a sub-document from a
// flat candidate set, or from a hierarchy when the tree form is used.
type Classifier interface {
	Classify(ctx context.Context, pages []domain.Page, candidates []domain.Classification, strategy domain.ConsensusStrategy, threshold int) (*domain.Decision, error)
	ClassifyTree(ctx context.Context, pages []domain.Page, tree *domain.ClassificationTree, threshold int) (*domain.Decision, error)
}

// Extractor produces a validated record from sub-document pages under a
// completion strategy.
type Extractor interface {
	Extract(ctx context.Context, pages []domain.Page, contract *domain.Contract, strategy domain.CompletionStrategy) (domain.Record, error)
}

// DocumentProcessor is the inbound contract for the whole pipeline:
// load -> split -> classify -> extract -> persist.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
