package ports

import (
	"context"

	"github.com/kirillkom/docpipe/internal/core/domain"
)

// ModelRequest is one generative-model call. Messages carry the full turn
// history so continuation rounds can replay prior fragments verbatim.
type ModelRequest struct {
	System   string
	Messages []ModelMessage
	Schema   *domain.Contract
	Vision   bool
	JSONMode bool
}

type ModelMessage struct {
	Role    string
	Content string
	Images  [][]byte
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ModelClient issues a single request to the generative model. Transport
// concerns such as timeouts, retries and rate limiting belong behind this
// interface; the core only distinguishes the finish reason and call failure.
type ModelClient interface {
	Complete(ctx context.Context, req ModelRequest) (domain.Completion, error)
}

// ContractValidator validates a candidate value against a contract
// descriptor. A nil error means the value conforms.
type ContractValidator interface {
	Validate(value map[string]any, contract *domain.Contract) error
}

// DocumentLoader produces an ordered page sequence from a source path.
type DocumentLoader interface {
	Load(ctx context.Context, path string) (*domain.Document, error)
}

// RecordStore persists extraction jobs and their validated records. GetJob
// returns job metadata only; pages are re-loaded from the source by a
// DocumentLoader.
type RecordStore interface {
	CreateJob(ctx context.Context, doc *domain.Document) error
	GetJob(ctx context.Context, documentID string) (*domain.Document, error)
	UpdateJobStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error
	SaveRecord(ctx context.Context, documentID string, group domain.SplitGroup, classification string, confidence int, record domain.Record) error
}

// JobQueue publishes/consumes document processing events.
type JobQueue interface {
	PublishDocumentLoaded(ctx context.Context, documentID string) error
	SubscribeDocumentLoaded(ctx context.Context, handler func(context.Context, string) error) error
}
