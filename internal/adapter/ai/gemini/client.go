package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/seu-repo/alexa-skills/internal/observability/telemetry"
	"github.com/seu-repo/alexa-skills/internal/ports"
)

// DefaultModel is the lowest-latency Gemini model, which keeps the round
// trip well inside the platform deadline.
const DefaultModel = "gemini-1.5-flash"

var (
	ErrEmptyResponse = errors.New("gemini returned no candidates")
	ErrBlocked       = errors.New("gemini blocked the response")
)

type Options struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
}

// Client implements ports.TextGenerator over the Gemini API. One client is
// shared by all requests.
type Client struct {
	client  *genai.Client
	modelID string
	opts    Options
	logger  *zap.Logger
}

func NewClient(ctx context.Context, apiKey string, opts Options, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{
		client:  client,
		modelID: opts.Model,
		opts:    opts,
		logger:  logger,
	}, nil
}

// Generate sends one prompt and returns the concatenated text parts of the
// first candidate.
func (c *Client) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	model := c.model(req.SystemInstruction)

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	telemetry.GeneratorLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.GeneratorCallsTotal.WithLabelValues(c.modelID, "error").Inc()
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		telemetry.GeneratorCallsTotal.WithLabelValues(c.modelID, "empty").Inc()
		return "", err
	}

	telemetry.GeneratorCallsTotal.WithLabelValues(c.modelID, "ok").Inc()
	c.logger.Debug("Gemini response received",
		zap.String("model", c.modelID),
		zap.Duration("latency", time.Since(start)),
		zap.Int("chars", len(text)),
	)
	return text, nil
}

// model returns a fresh handle per call so concurrent requests never share
// mutable generation settings.
func (c *Client) model(systemInstruction string) *genai.GenerativeModel {
	model := c.client.GenerativeModel(c.modelID)
	if c.opts.Temperature > 0 {
		model.SetTemperature(c.opts.Temperature)
	}
	if c.opts.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(c.opts.MaxOutputTokens)
	}
	if systemInstruction != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(systemInstruction))
	}
	return model
}

func (c *Client) Close() error {
	return c.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("%w: prompt %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: %s", ErrBlocked, cand.FinishReason)
	}
	if cand.Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
