package domain

import "fmt"

// Classification is one candidate label a sub-document can be assigned.
// Name must be unique within its sibling set. Contract describes the fields
// an extraction for this classification must produce. Exemplar optionally
// carries a reference image for vision prompts, ExtractorRef optionally names
// a dedicated extractor profile.
type Classification struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Contract     *Contract `json:"contract,omitempty"`
	Exemplar     []byte    `json:"exemplar,omitempty"`
	ExtractorRef string    `json:"extractor_ref,omitempty"`
}

// ClassificationNode forms a classification hierarchy. Children narrow the
// parent's classification into finer-grained variants.
type ClassificationNode struct {
	Classification Classification        `json:"classification"`
	Children       []*ClassificationNode `json:"children,omitempty"`
}

// ClassificationTree is a forest of classification nodes.
type ClassificationTree struct {
	Roots []*ClassificationNode `json:"roots"`
}

// Validate walks the tree iteratively and rejects repeated nodes and
// duplicate sibling names.
func (t *ClassificationTree) Validate() error {
	if len(t.Roots) == 0 {
		return fmt.Errorf("classification tree has no roots")
	}
	seen := make(map[*ClassificationNode]bool)
	stack := make([]*ClassificationNode, 0, len(t.Roots))
	if err := checkSiblingNames(t.Roots); err != nil {
		return err
	}
	stack = append(stack, t.Roots...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			return fmt.Errorf("classification tree contains a nil node")
		}
		if seen[node] {
			return fmt.Errorf("classification %q appears more than once in the tree", node.Classification.Name)
		}
		seen[node] = true
		if err := checkSiblingNames(node.Children); err != nil {
			return err
		}
		stack = append(stack, node.Children...)
	}
	return nil
}

func checkSiblingNames(nodes []*ClassificationNode) error {
	names := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if names[n.Classification.Name] {
			return fmt.Errorf("duplicate sibling classification %q", n.Classification.Name)
		}
		names[n.Classification.Name] = true
	}
	return nil
}

// ConsensusVote is one model's opinion on a classification. Confidence is on
// a 1..10 scale.
type ConsensusVote struct {
	SourceID   string `json:"source_id"`
	Name       string `json:"name"`
	Confidence int    `json:"confidence"`
}

const (
	MinConfidence = 1
	MaxConfidence = 10
)

// ClampConfidence forces an out-of-range model confidence back into [1,10].
func ClampConfidence(c int) int {
	if c < MinConfidence {
		return MinConfidence
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}

// ConsensusStrategy selects how a layer's votes are combined.
type ConsensusStrategy string

const (
	// StrategyConsensus accepts only a unanimous layer; confidence is the
	// minimum among the agreeing votes.
	StrategyConsensus ConsensusStrategy = "consensus"
	// StrategyHigherOrder accepts the single highest-confidence vote,
	// agreement across voters is irrelevant.
	StrategyHigherOrder ConsensusStrategy = "higher_order"
	// StrategyConsensusWithThreshold requires unanimity and an aggregate
	// confidence at or above the caller threshold.
	StrategyConsensusWithThreshold ConsensusStrategy = "consensus_with_threshold"
)

// Decision is the winning classification with its aggregate confidence.
type Decision struct {
	Classification Classification `json:"classification"`
	Confidence     int            `json:"confidence"`
}
