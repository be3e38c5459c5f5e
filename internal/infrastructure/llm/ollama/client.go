package ollama

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/docpipe/internal/core/domain"
	"github.com/kirillkom/docpipe/internal/core/ports"
	"github.com/kirillkom/docpipe/internal/infrastructure/resilience"
)

// Client implements ports.ModelClient against the Ollama chat API. Retries,
// circuit breaking and rate limiting live here; the core above only sees one
// call with a finish reason.
type Client struct {
	baseURL     string
	model       string
	visionModel string
	numPredict  int
	httpClient  *http.Client
	limiter     *rate.Limiter
	executor    *resilience.Executor
}

type Options struct {
	// VisionModel handles requests carrying images; empty falls back to the
	// text model.
	VisionModel string
	// NumPredict caps output tokens per call; zero leaves the server default.
	NumPredict int
	// RequestsPerSecond throttles outbound calls; zero disables the limiter.
	RequestsPerSecond float64
	Timeout           time.Duration
	Executor          *resilience.Executor
}

func New(baseURL, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	var limiter *rate.Limiter
	if options.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		visionModel: options.VisionModel,
		numPredict:  options.NumPredict,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     limiter,
		executor:    options.Executor,
	}
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
}

func (c *Client) Complete(ctx context.Context, req ports.ModelRequest) (domain.Completion, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.Completion{}, err
		}
	}

	payload := c.buildPayload(req)

	var response chatResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/chat", payload, &response, "chat")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.chat", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.Completion{}, wrapTemporaryIfNeeded("ollama chat", err)
	}

	return domain.Completion{
		Content:      strings.TrimSpace(response.Message.Content),
		FinishReason: mapFinishReason(response.DoneReason),
	}, nil
}

func (c *Client) buildPayload(req ports.ModelRequest) map[string]any {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		msg := chatMessage{Role: m.Role, Content: m.Content}
		for _, img := range m.Images {
			msg.Images = append(msg.Images, base64.StdEncoding.EncodeToString(img))
		}
		messages = append(messages, msg)
	}

	model := c.model
	if req.Vision && c.visionModel != "" {
		model = c.visionModel
	}

	payload := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   false,
	}
	if req.JSONMode {
		payload["format"] = "json"
	}
	if c.numPredict > 0 {
		payload["options"] = map[string]any{"num_predict": c.numPredict}
	}
	return payload
}

// mapFinishReason folds Ollama done reasons into the three the core
// distinguishes. "length" means output truncation and drives continuation.
func mapFinishReason(doneReason string) domain.FinishReason {
	switch strings.ToLower(strings.TrimSpace(doneReason)) {
	case "stop", "":
		return domain.FinishStop
	case "length":
		return domain.FinishLength
	default:
		return domain.FinishError
	}
}
