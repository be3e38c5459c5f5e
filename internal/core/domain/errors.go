package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSplitting marks a boundary decision that is invalid or does not
	// cover every page. Callers may fall back to a whole-document group.
	ErrSplitting = errors.New("splitting failed")

	// ErrContentTooLarge is raised by the forbidden strategy before any
	// model call when the size estimate exceeds the context budget.
	ErrContentTooLarge = errors.New("content exceeds model context budget")

	// ErrContinuationLimit is raised when a continuation loop never reaches
	// a stop finish reason within the configured round bound.
	ErrContinuationLimit = errors.New("continuation round limit exceeded")

	// ErrMergeConflict marks an unresolvable page-merge combination.
	ErrMergeConflict = errors.New("merge conflict")

	// ErrSchemaValidation marks a parsed or merged value that fails its
	// contract.
	ErrSchemaValidation = errors.New("schema validation failed")

	// ErrNoDecision means no consensus layer passed its strategy test.
	ErrNoDecision = errors.New("no classification decision")

	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
