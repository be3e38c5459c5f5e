package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kirillkom/docpipe/internal/core/domain"
	"github.com/kirillkom/docpipe/internal/core/ports"
)

// scriptedModel replays canned completions in call order and counts calls.
type scriptedModel struct {
	mu        sync.Mutex
	responses []domain.Completion
	errs      []error
	calls     int
	requests  []ports.ModelRequest
}

func (m *scriptedModel) Complete(_ context.Context, req ports.ModelRequest) (domain.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.calls
	m.calls++
	m.requests = append(m.requests, req)
	if idx < len(m.errs) && m.errs[idx] != nil {
		return domain.Completion{}, m.errs[idx]
	}
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return domain.Completion{}, errors.New("scripted model exhausted")
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func stop(content string) domain.Completion {
	return domain.Completion{Content: content, FinishReason: domain.FinishStop}
}

func length(content string) domain.Completion {
	return domain.Completion{Content: content, FinishReason: domain.FinishLength}
}

// keyedModel answers by matching a substring of the user prompt, which keeps
// concurrent page fan-out deterministic.
type keyedModel struct {
	mu       sync.Mutex
	byPrompt map[string]domain.Completion
	errByKey map[string]error
	calls    int
}

func (m *keyedModel) Complete(_ context.Context, req ports.ModelRequest) (domain.Completion, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[0].Content
	}
	for key, err := range m.errByKey {
		if err != nil && containsKey(prompt, key) {
			return domain.Completion{}, err
		}
	}
	for key, resp := range m.byPrompt {
		if containsKey(prompt, key) {
			return resp, nil
		}
	}
	return domain.Completion{}, errors.New("no scripted response for prompt")
}

func containsKey(prompt, key string) bool {
	return key != "" && len(prompt) >= len(key) && strings.Contains(prompt, key)
}

// acceptAllValidator approves every candidate value.
type acceptAllValidator struct{}

func (acceptAllValidator) Validate(map[string]any, *domain.Contract) error { return nil }

// rejectingValidator fails every candidate value.
type rejectingValidator struct{ err error }

func (v rejectingValidator) Validate(map[string]any, *domain.Contract) error { return v.err }
