package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/docpipe/internal/core/domain"
)

// fixedVoter returns one canned vote or error.
type fixedVoter struct {
	vote domain.ConsensusVote
	err  error
}

func (v fixedVoter) Vote(context.Context, []domain.Page, []domain.Classification) (domain.ConsensusVote, error) {
	return v.vote, v.err
}

func vote(name string, confidence int) domain.ConsensusVote {
	return domain.ConsensusVote{SourceID: "test", Name: name, Confidence: confidence}
}

func layer(votes ...domain.ConsensusVote) []Voter {
	voters := make([]Voter, len(votes))
	for i, v := range votes {
		voters[i] = fixedVoter{vote: v}
	}
	return voters
}

func twoCandidates() []domain.Classification {
	return []domain.Classification{
		{Name: "invoice", Description: "an invoice"},
		{Name: "receipt", Description: "a receipt"},
	}
}

func TestConsensusUnanimousAgreement(t *testing.T) {
	engine := NewConsensusEngine([][]Voter{
		layer(vote("invoice", 9), vote("invoice", 7), vote("invoice", 10)),
	}, testLogger())

	decision, err := engine.Decide(context.Background(), onePage("x"), twoCandidates(), domain.StrategyConsensus, 0)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Classification.Name != "invoice" {
		t.Fatalf("unexpected winner: %s", decision.Classification.Name)
	}
	if decision.Confidence != 7 {
		t.Fatalf("aggregate confidence should be the minimum, got %d", decision.Confidence)
	}
}

func TestConsensusDisagreementEscalates(t *testing.T) {
	engine := NewConsensusEngine([][]Voter{
		layer(vote("invoice", 9), vote("receipt", 9)),
		layer(vote("receipt", 8), vote("receipt", 8)),
	}, testLogger())

	decision, err := engine.Decide(context.Background(), onePage("x"), twoCandidates(), domain.StrategyConsensus, 0)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Classification.Name != "receipt" || decision.Confidence != 8 {
		t.Fatalf("expected the second layer to decide, got %+v", decision)
	}
}

func TestConsensusExhaustedLayersNoDecision(t *testing.T) {
	engine := NewConsensusEngine([][]Voter{
		layer(vote("invoice", 9), vote("receipt", 9)),
	}, testLogger())

	_, err := engine.Decide(context.Background(), onePage("x"), twoCandidates(), domain.StrategyConsensus, 0)
	if !domain.IsKind(err, domain.ErrNoDecision) {
		t.Fatalf("expected ErrNoDecision, got %v", err)
	}
}

func TestConsensusWithThreshold(t *testing.T) {
	candidates := twoCandidates()

	engine := NewConsensusEngine([][]Voter{
		layer(vote("invoice", 9), vote("invoice", 9), vote("invoice", 10)),
	}, testLogger())
	decision, err := engine.Decide(context.Background(), onePage("x"), candidates, domain.StrategyConsensusWithThreshold, 9)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Confidence != 9 {
		t.Fatalf("expected aggregate confidence 9, got %d", decision.Confidence)
	}

	// Same agreement, but one vote below the threshold fails the layer.
	engine = NewConsensusEngine([][]Voter{
		layer(vote("invoice", 9), vote("invoice", 8), vote("invoice", 10)),
	}, testLogger())
	if _, err := engine.Decide(context.Background(), onePage("x"), candidates, domain.StrategyConsensusWithThreshold, 9); !domain.IsKind(err, domain.ErrNoDecision) {
		t.Fatalf("expected ErrNoDecision below threshold, got %v", err)
	}
}

func TestHigherOrderPicksMaxConfidence(t *testing.T) {
	engine := NewConsensusEngine([][]Voter{
		layer(vote("invoice", 6), vote("receipt", 9), vote("invoice", 7)),
	}, testLogger())

	decision, err := engine.Decide(context.Background(), onePage("x"), twoCandidates(), domain.StrategyHigherOrder, 0)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Classification.Name != "receipt" || decision.Confidence != 9 {
		t.Fatalf("expected the max-confidence vote, got %+v", decision)
	}
}

func TestHigherOrderTieBreaksByVoterOrder(t *testing.T) {
	engine := NewConsensusEngine([][]Voter{
		layer(vote("receipt", 8), vote("invoice", 8)),
	}, testLogger())

	decision, err := engine.Decide(context.Background(), onePage("x"), twoCandidates(), domain.StrategyHigherOrder, 0)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Classification.Name != "receipt" {
		t.Fatalf("tie must break by first occurrence, got %s", decision.Classification.Name)
	}
}

func TestConsensusFailedVoterIsSkipped(t *testing.T) {
	engine := NewConsensusEngine([][]Voter{
		{
			fixedVoter{err: errors.New("voter down")},
			fixedVoter{vote: vote("invoice", 9)},
			fixedVoter{vote: vote("invoice", 9)},
		},
	}, testLogger())

	decision, err := engine.Decide(context.Background(), onePage("x"), twoCandidates(), domain.StrategyConsensus, 0)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Classification.Name != "invoice" {
		t.Fatalf("unexpected winner: %s", decision.Classification.Name)
	}
}

func TestConsensusAllVotersFailedLayerContinues(t *testing.T) {
	engine := NewConsensusEngine([][]Voter{
		{fixedVoter{err: errors.New("voter down")}},
		layer(vote("receipt", 9), vote("receipt", 9)),
	}, testLogger())

	decision, err := engine.Decide(context.Background(), onePage("x"), twoCandidates(), domain.StrategyConsensus, 0)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Classification.Name != "receipt" {
		t.Fatalf("unexpected winner: %s", decision.Classification.Name)
	}
}

func TestConsensusFallbackBestVote(t *testing.T) {
	engine := NewConsensusEngine([][]Voter{
		layer(vote("invoice", 6), vote("receipt", 9)),
		layer(vote("invoice", 7), vote("receipt", 5)),
	}, testLogger())
	engine.FallbackBestVote = true

	decision, err := engine.Decide(context.Background(), onePage("x"), twoCandidates(), domain.StrategyConsensus, 0)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Classification.Name != "receipt" || decision.Confidence != 9 {
		t.Fatalf("expected the best vote across layers, got %+v", decision)
	}
}

func TestConsensusNoCandidatesRejected(t *testing.T) {
	engine := NewConsensusEngine([][]Voter{layer(vote("invoice", 9))}, testLogger())

	_, err := engine.Decide(context.Background(), onePage("x"), nil, domain.StrategyConsensus, 0)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestModelVoterRejectsUnknownName(t *testing.T) {
	model := &scriptedModel{responses: []domain.Completion{stop(`{"name": "contract", "confidence": 9}`)}}
	voter := NewModelVoter("text-1", model, false)

	if _, err := voter.Vote(context.Background(), onePage("x"), twoCandidates()); err == nil {
		t.Fatalf("expected an error for an unknown classification name")
	}
}

func TestModelVoterClampsConfidence(t *testing.T) {
	model := &scriptedModel{responses: []domain.Completion{stop(`{"name": "invoice", "confidence": 42}`)}}
	voter := NewModelVoter("text-1", model, false)

	v, err := voter.Vote(context.Background(), onePage("x"), twoCandidates())
	if err != nil {
		t.Fatalf("Vote() error = %v", err)
	}
	if v.Confidence != 10 {
		t.Fatalf("confidence must clamp to 10, got %d", v.Confidence)
	}
}
