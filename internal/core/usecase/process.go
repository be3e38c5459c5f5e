package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/docpipe/internal/core/domain"
	"github.com/kirillkom/docpipe/internal/core/ports"
)

// PipelineConfig carries the per-deployment choices of the processing
// pipeline: which algorithms run and how undecided groups are treated.
type PipelineConfig struct {
	Candidates []domain.Classification
	Tree       *domain.ClassificationTree

	ConsensusStrategy  domain.ConsensusStrategy
	Threshold          int
	CompletionStrategy domain.CompletionStrategy

	// ContinueOnNoDecision records a gap for an undecided group instead of
	// failing the job.
	ContinueOnNoDecision bool
}

// ProcessDocumentUseCase chains split, classify and extract for one loaded
// document and persists the validated records.
type ProcessDocumentUseCase struct {
	store      ports.RecordStore
	loader     ports.DocumentLoader
	splitter   ports.DocumentSplitter
	classifier ports.Classifier
	extractor  ports.Extractor
	cfg        PipelineConfig
	log        *slog.Logger
}

func NewProcessDocumentUseCase(
	store ports.RecordStore,
	loader ports.DocumentLoader,
	splitter ports.DocumentSplitter,
	classifier ports.Classifier,
	extractor ports.Extractor,
	cfg PipelineConfig,
	log *slog.Logger,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		store:      store,
		loader:     loader,
		splitter:   splitter,
		classifier: classifier,
		extractor:  extractor,
		cfg:        cfg,
		log:        log,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, documentID); err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) error {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}

	groups, err := uc.split(ctx, doc)
	if err != nil {
		return err
	}

	for _, group := range groups {
		if err := uc.processGroup(ctx, doc, group); err != nil {
			return err
		}
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processGroup(ctx context.Context, doc *domain.Document, group domain.SplitGroup) error {
	pages := group.PagesOf(doc)

	decision, err := uc.classify(ctx, pages)
	if err != nil {
		if uc.cfg.ContinueOnNoDecision && domain.IsKind(err, domain.ErrNoDecision) {
			uc.log.Warn("group_undecided", "document_id", doc.ID, "start", group.Start, "end", group.End)
			return nil
		}
		return err
	}

	if decision.Classification.Contract == nil {
		return domain.WrapError(domain.ErrInvalidInput, "process group",
			fmt.Errorf("classification %q has no contract", decision.Classification.Name))
	}

	record, err := uc.extractor.Extract(ctx, pages, decision.Classification.Contract, uc.cfg.CompletionStrategy)
	if err != nil {
		return fmt.Errorf("extract group [%d,%d]: %w", group.Start, group.End, err)
	}

	if err := uc.store.SaveRecord(ctx, doc.ID, group, decision.Classification.Name, decision.Confidence, record); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	job, err := uc.store.GetJob(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch job by id: %w", err)
	}

	doc, err := uc.loader.Load(ctx, job.Source)
	if err != nil {
		return nil, fmt.Errorf("load document pages: %w", err)
	}
	doc.ID = job.ID
	if len(doc.Pages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load document", errors.New("loader produced zero pages"))
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) split(ctx context.Context, doc *domain.Document) ([]domain.SplitGroup, error) {
	groups, err := uc.splitter.Split(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("split document: %w", err)
	}
	return groups, nil
}

func (uc *ProcessDocumentUseCase) classify(ctx context.Context, pages []domain.Page) (*domain.Decision, error) {
	if uc.cfg.Tree != nil {
		return uc.classifier.ClassifyTree(ctx, pages, uc.cfg.Tree, uc.cfg.Threshold)
	}
	return uc.classifier.Classify(ctx, pages, uc.cfg.Candidates, uc.cfg.ConsensusStrategy, uc.cfg.Threshold)
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.store.UpdateJobStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
