package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/docpipe/internal/core/domain"
)

type fakeStore struct {
	jobs     map[string]*domain.Document
	statuses []domain.DocumentStatus
	errMsgs  []string
	saved    []savedRecord

	getErr    error
	updateErr error
	saveErr   error
}

type savedRecord struct {
	documentID     string
	group          domain.SplitGroup
	classification string
	confidence     int
	record         domain.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]*domain.Document)}
}

func (s *fakeStore) CreateJob(_ context.Context, doc *domain.Document) error {
	s.jobs[doc.ID] = doc
	return nil
}

func (s *fakeStore) GetJob(_ context.Context, documentID string) (*domain.Document, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	job, ok := s.jobs[documentID]
	if !ok {
		return nil, errors.New("job not found")
	}
	return job, nil
}

func (s *fakeStore) UpdateJobStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.statuses = append(s.statuses, status)
	s.errMsgs = append(s.errMsgs, errMessage)
	return nil
}

func (s *fakeStore) SaveRecord(_ context.Context, documentID string, group domain.SplitGroup, classification string, confidence int, record domain.Record) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, savedRecord{
		documentID:     documentID,
		group:          group,
		classification: classification,
		confidence:     confidence,
		record:         record,
	})
	return nil
}

type fakeLoader struct {
	doc *domain.Document
	err error
}

func (l *fakeLoader) Load(context.Context, string) (*domain.Document, error) {
	return l.doc, l.err
}

type fakeSplitter struct {
	groups []domain.SplitGroup
	err    error
}

func (s *fakeSplitter) Split(context.Context, *domain.Document) ([]domain.SplitGroup, error) {
	return s.groups, s.err
}

type fakeClassifier struct {
	decisions []*domain.Decision
	errs      []error
	calls     int
}

func (c *fakeClassifier) Classify(context.Context, []domain.Page, []domain.Classification, domain.ConsensusStrategy, int) (*domain.Decision, error) {
	idx := c.calls
	c.calls++
	if idx < len(c.errs) && c.errs[idx] != nil {
		return nil, c.errs[idx]
	}
	if idx < len(c.decisions) {
		return c.decisions[idx], nil
	}
	return nil, errors.New("fake classifier exhausted")
}

func (c *fakeClassifier) ClassifyTree(ctx context.Context, pages []domain.Page, _ *domain.ClassificationTree, _ int) (*domain.Decision, error) {
	return c.Classify(ctx, pages, nil, "", 0)
}

type fakeExtractor struct {
	record domain.Record
	err    error
	calls  int
}

func (e *fakeExtractor) Extract(context.Context, []domain.Page, *domain.Contract, domain.CompletionStrategy) (domain.Record, error) {
	e.calls++
	return e.record, e.err
}

func decisionNamed(name string, confidence int) *domain.Decision {
	return &domain.Decision{
		Classification: domain.Classification{
			Name:     name,
			Contract: &domain.Contract{Name: name, Fields: []domain.Field{{Name: "total", Type: domain.FieldNumber}}},
		},
		Confidence: confidence,
	}
}

func processFixture(t *testing.T) (*fakeStore, *ProcessDocumentUseCase, *fakeClassifier, *fakeExtractor) {
	t.Helper()
	doc := testDocument(t, "page a", "page b")
	store := newFakeStore()
	store.jobs[doc.ID] = doc

	classifier := &fakeClassifier{decisions: []*domain.Decision{decisionNamed("invoice", 9)}}
	extractor := &fakeExtractor{record: domain.Record{Contract: "invoice", Fields: map[string]any{"total": 10.0}}}

	uc := NewProcessDocumentUseCase(
		store,
		&fakeLoader{doc: doc},
		&fakeSplitter{groups: []domain.SplitGroup{{Start: 0, End: 1}}},
		classifier,
		extractor,
		PipelineConfig{CompletionStrategy: domain.StrategyForbidden},
		testLogger(),
	)
	return store, uc, classifier, extractor
}

func TestProcessByIDHappyPath(t *testing.T) {
	store, uc, _, extractor := processFixture(t)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	if len(store.statuses) != 2 || store.statuses[0] != domain.StatusProcessing || store.statuses[1] != domain.StatusReady {
		t.Fatalf("unexpected status sequence: %v", store.statuses)
	}
	if extractor.calls != 1 {
		t.Fatalf("expected one extraction, got %d", extractor.calls)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one saved record, got %d", len(store.saved))
	}
	saved := store.saved[0]
	if saved.classification != "invoice" || saved.confidence != 9 || saved.group != (domain.SplitGroup{Start: 0, End: 1}) {
		t.Fatalf("unexpected saved record: %+v", saved)
	}
}

func TestProcessByIDFailureMarksFailed(t *testing.T) {
	store, uc, classifier, _ := processFixture(t)
	classifier.errs = []error{errors.New("model unreachable")}

	if err := uc.ProcessByID(context.Background(), "doc-1"); err == nil {
		t.Fatalf("expected pipeline error")
	}

	if len(store.statuses) != 2 || store.statuses[1] != domain.StatusFailed {
		t.Fatalf("unexpected status sequence: %v", store.statuses)
	}
	if store.errMsgs[1] == "" {
		t.Fatalf("failed status must carry the error message")
	}
}

func TestProcessByIDUndecidedGroupSkipped(t *testing.T) {
	doc := testDocument(t, "page a", "page b")
	store := newFakeStore()
	store.jobs[doc.ID] = doc

	classifier := &fakeClassifier{
		decisions: []*domain.Decision{nil, decisionNamed("receipt", 8)},
		errs:      []error{domain.WrapError(domain.ErrNoDecision, "consensus", errors.New("split votes")), nil},
	}
	extractor := &fakeExtractor{record: domain.Record{Contract: "receipt", Fields: map[string]any{"total": 1.0}}}

	uc := NewProcessDocumentUseCase(
		store,
		&fakeLoader{doc: doc},
		&fakeSplitter{groups: []domain.SplitGroup{{Start: 0, End: 0}, {Start: 1, End: 1}}},
		classifier,
		extractor,
		PipelineConfig{CompletionStrategy: domain.StrategyForbidden, ContinueOnNoDecision: true},
		testLogger(),
	)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(store.saved) != 1 || store.saved[0].classification != "receipt" {
		t.Fatalf("only the decided group should persist, got %+v", store.saved)
	}
	if store.statuses[len(store.statuses)-1] != domain.StatusReady {
		t.Fatalf("job must still finish ready, got %v", store.statuses)
	}
}

func TestProcessByIDUndecidedGroupFailsWithoutFlag(t *testing.T) {
	store, uc, classifier, _ := processFixture(t)
	classifier.errs = []error{domain.WrapError(domain.ErrNoDecision, "consensus", errors.New("split votes"))}

	err := uc.ProcessByID(context.Background(), "doc-1")
	if !domain.IsKind(err, domain.ErrNoDecision) {
		t.Fatalf("expected ErrNoDecision, got %v", err)
	}
	if store.statuses[len(store.statuses)-1] != domain.StatusFailed {
		t.Fatalf("unexpected status sequence: %v", store.statuses)
	}
}

func TestProcessByIDMissingContractRejected(t *testing.T) {
	store, uc, classifier, _ := processFixture(t)
	classifier.decisions = []*domain.Decision{{
		Classification: domain.Classification{Name: "unknown"},
		Confidence:     9,
	}}

	err := uc.ProcessByID(context.Background(), "doc-1")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Fatalf("nothing should be saved, got %+v", store.saved)
	}
}

func TestProcessByIDLoaderFailure(t *testing.T) {
	doc := testDocument(t, "page a")
	store := newFakeStore()
	store.jobs[doc.ID] = doc

	uc := NewProcessDocumentUseCase(
		store,
		&fakeLoader{err: errors.New("file vanished")},
		&fakeSplitter{},
		&fakeClassifier{},
		&fakeExtractor{},
		PipelineConfig{},
		testLogger(),
	)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err == nil {
		t.Fatalf("expected loader failure to surface")
	}
	if store.statuses[len(store.statuses)-1] != domain.StatusFailed {
		t.Fatalf("unexpected status sequence: %v", store.statuses)
	}
}
