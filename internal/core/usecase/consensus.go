package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/docpipe/internal/core/domain"
	"github.com/kirillkom/docpipe/internal/core/ports"
)

// Voter produces one classification opinion for a sub-document.
type Voter interface {
	Vote(ctx context.Context, pages []domain.Page, candidates []domain.Classification) (domain.ConsensusVote, error)
}

// ModelVoter is a Voter backed by a generative model call.
type ModelVoter struct {
	sourceID string
	model    ports.ModelClient
	vision   bool
}

func NewModelVoter(sourceID string, model ports.ModelClient, vision bool) *ModelVoter {
	return &ModelVoter{sourceID: sourceID, model: model, vision: vision}
}

type voteResponse struct {
	Name       string `json:"name"`
	Confidence int    `json:"confidence"`
}

func (v *ModelVoter) Vote(ctx context.Context, pages []domain.Page, candidates []domain.Classification) (domain.ConsensusVote, error) {
	msg := ports.ModelMessage{Role: ports.RoleUser, Content: buildClassificationPrompt(pages, candidates)}
	if v.vision {
		for _, p := range pages {
			if len(p.Image) > 0 {
				msg.Images = append(msg.Images, p.Image)
			}
		}
		for _, c := range candidates {
			if len(c.Exemplar) > 0 {
				msg.Images = append(msg.Images, c.Exemplar)
			}
		}
	}

	completion, err := v.model.Complete(ctx, ports.ModelRequest{
		System:   classificationSystemPrompt,
		Messages: []ports.ModelMessage{msg},
		Vision:   v.vision && len(msg.Images) > 0,
		JSONMode: true,
	})
	if err != nil {
		return domain.ConsensusVote{}, fmt.Errorf("vote call: %w", err)
	}

	var resp voteResponse
	if err := json.Unmarshal([]byte(stripFences(completion.Content)), &resp); err != nil {
		return domain.ConsensusVote{}, fmt.Errorf("parse vote: %w", err)
	}
	if !candidateNamed(candidates, resp.Name) {
		return domain.ConsensusVote{}, fmt.Errorf("vote names unknown classification %q", resp.Name)
	}
	return domain.ConsensusVote{
		SourceID:   v.sourceID,
		Name:       resp.Name,
		Confidence: domain.ClampConfidence(resp.Confidence),
	}, nil
}

func candidateNamed(candidates []domain.Classification, name string) bool {
	for _, c := range candidates {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ConsensusEngine combines layered voter opinions into one decision. Each
// layer's voters run concurrently and are joined at a barrier; layers
// themselves are strictly sequential, a later layer starting only after the
// previous layer's test failed.
type ConsensusEngine struct {
	layers [][]Voter
	log    *slog.Logger

	// FallbackBestVote returns the highest-confidence vote seen across all
	// layers instead of a no-decision failure. Off by default.
	FallbackBestVote bool
}

func NewConsensusEngine(layers [][]Voter, log *slog.Logger) *ConsensusEngine {
	return &ConsensusEngine{layers: layers, log: log}
}

func (e *ConsensusEngine) Decide(ctx context.Context, pages []domain.Page, candidates []domain.Classification, strategy domain.ConsensusStrategy, threshold int) (*domain.Decision, error) {
	if len(e.layers) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "consensus", errors.New("no voter layers configured"))
	}
	if len(candidates) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "consensus", errors.New("no candidate classifications"))
	}

	var best *domain.ConsensusVote
	for layer, voters := range e.layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		votes := e.collectVotes(ctx, layer, voters, pages, candidates)
		if len(votes) == 0 {
			e.log.Warn("consensus_layer_no_votes", "layer", layer)
			continue
		}
		for i := range votes {
			if best == nil || votes[i].Confidence > best.Confidence {
				best = &votes[i]
			}
		}

		vote, ok := applyStrategy(votes, strategy, threshold)
		if !ok {
			e.log.Info("consensus_layer_failed", "layer", layer, "strategy", string(strategy), "votes", len(votes))
			continue
		}
		return decisionFor(candidates, vote)
	}

	if e.FallbackBestVote && best != nil {
		e.log.Warn("consensus_fallback_best_vote", "name", best.Name, "confidence", best.Confidence)
		return decisionFor(candidates, *best)
	}
	return nil, domain.WrapError(domain.ErrNoDecision, "consensus",
		fmt.Errorf("no layer passed strategy %q", strategy))
}

// collectVotes runs one layer's voters concurrently and returns the votes in
// voter order. A failed voter contributes no vote; the gap is logged, never
// silently swallowed into a default opinion.
func (e *ConsensusEngine) collectVotes(ctx context.Context, layer int, voters []Voter, pages []domain.Page, candidates []domain.Classification) []domain.ConsensusVote {
	type slot struct {
		vote domain.ConsensusVote
		err  error
	}
	slots := make([]slot, len(voters))

	var wg sync.WaitGroup
	for i, voter := range voters {
		wg.Add(1)
		go func(i int, voter Voter) {
			defer wg.Done()
			vote, err := voter.Vote(ctx, pages, candidates)
			slots[i] = slot{vote: vote, err: err}
		}(i, voter)
	}
	wg.Wait()

	votes := make([]domain.ConsensusVote, 0, len(voters))
	for i, s := range slots {
		if s.err != nil {
			e.log.Warn("voter_failed", "layer", layer, "voter", i, "error", s.err)
			continue
		}
		votes = append(votes, s.vote)
	}
	return votes
}

func applyStrategy(votes []domain.ConsensusVote, strategy domain.ConsensusStrategy, threshold int) (domain.ConsensusVote, bool) {
	switch strategy {
	case domain.StrategyConsensus:
		return unanimous(votes, 0)
	case domain.StrategyConsensusWithThreshold:
		return unanimous(votes, threshold)
	case domain.StrategyHigherOrder:
		// Ties break by first occurrence in voter order.
		top := votes[0]
		for _, v := range votes[1:] {
			if v.Confidence > top.Confidence {
				top = v
			}
		}
		return top, true
	default:
		return domain.ConsensusVote{}, false
	}
}

// unanimous accepts only full agreement; the aggregate confidence is the
// minimum among the agreeing votes, and must meet threshold when one is set.
func unanimous(votes []domain.ConsensusVote, threshold int) (domain.ConsensusVote, bool) {
	agreed := votes[0]
	for _, v := range votes[1:] {
		if v.Name != agreed.Name {
			return domain.ConsensusVote{}, false
		}
		if v.Confidence < agreed.Confidence {
			agreed.Confidence = v.Confidence
		}
	}
	if threshold > 0 && agreed.Confidence < threshold {
		return domain.ConsensusVote{}, false
	}
	return agreed, true
}

func decisionFor(candidates []domain.Classification, vote domain.ConsensusVote) (*domain.Decision, error) {
	for _, c := range candidates {
		if c.Name == vote.Name {
			return &domain.Decision{Classification: c, Confidence: vote.Confidence}, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNoDecision, "consensus",
		fmt.Errorf("winning vote %q is not a candidate", vote.Name))
}
