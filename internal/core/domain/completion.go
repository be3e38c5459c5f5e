package domain

// CompletionStrategy governs how an extraction call is fragmented around the
// model's context budget. Selected per call, never persisted.
type CompletionStrategy string

const (
	// StrategyForbidden fails before any call when the size estimate
	// exceeds the budget, otherwise issues exactly one call.
	StrategyForbidden CompletionStrategy = "forbidden"
	// StrategyConcatenate continues truncated output in bounded sequential
	// rounds and joins the fragments.
	StrategyConcatenate CompletionStrategy = "concatenate"
	// StrategyPaginate fans out one call per page and merges the partial
	// results deterministically.
	StrategyPaginate CompletionStrategy = "paginate"
)

// FinishReason is the model's signal whether its output completed or was
// truncated by the output limit.
type FinishReason string

const (
	FinishStop   FinishReason = "stop"
	FinishLength FinishReason = "length"
	FinishError  FinishReason = "error"
)

// Completion is one raw model response.
type Completion struct {
	Content      string
	FinishReason FinishReason
}

// PartialResult is one fragment of a multi-call extraction: by round order
// for concatenation, by page index for pagination.
type PartialResult struct {
	PageIndex    int
	Fragment     string
	FinishReason FinishReason
}

// Record is the final structured value conforming to a contract.
type Record struct {
	Contract string         `json:"contract"`
	Fields   map[string]any `json:"fields"`
}
