package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/docpipe/internal/core/domain"
)

// ClassifierService exposes flat and tree classification over one consensus
// engine. Tree descent narrows the candidate set (and so the schema size) at
// every decision.
type ClassifierService struct {
	engine       *ConsensusEngine
	treeStrategy domain.ConsensusStrategy
	log          *slog.Logger
}

func NewClassifierService(engine *ConsensusEngine, treeStrategy domain.ConsensusStrategy, log *slog.Logger) *ClassifierService {
	return &ClassifierService{engine: engine, treeStrategy: treeStrategy, log: log}
}

func (s *ClassifierService) Classify(ctx context.Context, pages []domain.Page, candidates []domain.Classification, strategy domain.ConsensusStrategy, threshold int) (*domain.Decision, error) {
	return s.engine.Decide(ctx, pages, candidates, strategy, threshold)
}

// ClassifyTree descends the hierarchy from the roots. At each node only its
// direct children compete. A confident decision recurses into the matched
// node's children; a decision below threshold stops the descent and keeps
// the node already reached, favoring a coarse classification over a wrong
// fine-grained one. A leaf decision is final.
func (s *ClassifierService) ClassifyTree(ctx context.Context, pages []domain.Page, tree *domain.ClassificationTree, threshold int) (*domain.Decision, error) {
	if tree == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "tree classify", errors.New("nil classification tree"))
	}
	if err := tree.Validate(); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "tree classify", err)
	}

	level := tree.Roots
	var reached *domain.Decision

	for len(level) > 0 {
		candidates := make([]domain.Classification, 0, len(level))
		for _, n := range level {
			candidates = append(candidates, n.Classification)
		}

		decision, err := s.engine.Decide(ctx, pages, candidates, s.treeStrategy, threshold)
		if err != nil {
			if reached != nil && domain.IsKind(err, domain.ErrNoDecision) {
				s.log.Info("tree_descent_stopped", "at", reached.Classification.Name, "reason", "no_decision")
				return reached, nil
			}
			return nil, err
		}

		matched := nodeNamed(level, decision.Classification.Name)
		if matched == nil {
			return nil, domain.WrapError(domain.ErrNoDecision, "tree classify",
				fmt.Errorf("decision %q matches no node at this level", decision.Classification.Name))
		}

		if decision.Confidence < threshold {
			if reached != nil {
				s.log.Info("tree_descent_stopped", "at", reached.Classification.Name, "below", decision.Classification.Name, "confidence", decision.Confidence)
				return reached, nil
			}
			return nil, domain.WrapError(domain.ErrNoDecision, "tree classify",
				fmt.Errorf("root decision %q confidence %d below threshold %d", decision.Classification.Name, decision.Confidence, threshold))
		}

		reached = decision
		level = matched.Children
	}

	return reached, nil
}

func nodeNamed(nodes []*domain.ClassificationNode, name string) *domain.ClassificationNode {
	for _, n := range nodes {
		if n.Classification.Name == name {
			return n
		}
	}
	return nil
}
