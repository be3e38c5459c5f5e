package ollama

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/kirillkom/docpipe/internal/core/domain"
)

func TestClassifyOllamaError(t *testing.T) {
	cases := []struct {
		name          string
		err           error
		retryable     bool
		recordFailure bool
	}{
		{"context canceled", context.Canceled, false, false},
		{"retryable status", &HTTPStatusError{StatusCode: http.StatusServiceUnavailable}, true, true},
		{"rate limited", &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, true, true},
		{"client error", &HTTPStatusError{StatusCode: http.StatusNotFound}, false, false},
		{"unknown error", errors.New("boom"), false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			class := classifyOllamaError(tc.err)
			if class.Retryable != tc.retryable || class.RecordFailure != tc.recordFailure {
				t.Fatalf("classifyOllamaError(%v) = %+v", tc.err, class)
			}
		})
	}
}

func TestWrapTemporaryOnlyForRetryable(t *testing.T) {
	retryable := wrapTemporaryIfNeeded("chat", &HTTPStatusError{StatusCode: http.StatusBadGateway})
	if !domain.IsKind(retryable, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", retryable)
	}

	terminal := &HTTPStatusError{StatusCode: http.StatusBadRequest}
	if got := wrapTemporaryIfNeeded("chat", terminal); got != error(terminal) {
		t.Fatalf("non-retryable errors must pass through unchanged, got %v", got)
	}
}
