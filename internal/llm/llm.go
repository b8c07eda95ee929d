package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelanni/mockinterview/internal/llm/prompts"
	"github.com/pavelanni/mockinterview/internal/metrics"
	"github.com/pavelanni/mockinterview/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ErrUnparseable is returned when the model's reply holds no JSON object.
var ErrUnparseable = errors.New("model response is not a JSON object")

// Generator produces interview questions for a job description.
type Generator interface {
	Generate(ctx context.Context, req model.GenerateRequest) ([]model.GeneratedQuestion, error)
}

// Grader scores one free-text answer and returns the model's raw JSON fields.
type Grader interface {
	Grade(ctx context.Context, req model.GradeRequest) (map[string]any, error)
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api       *openai.Client
	model     string
	evalModel string
}

// New creates a new LLM client. evalModel is used for grading and defaults to modelName.
func New(baseURL, apiKey, modelName, evalModel string) (*Client, error) {
	if err := prompts.Load(prompts.FS); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if evalModel == "" {
		evalModel = modelName
	}
	return &Client{
		api:       openai.NewClientWithConfig(config),
		model:     modelName,
		evalModel: evalModel,
	}, nil
}

// Ping checks that the endpoint is reachable and accepts the key.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Generate asks the model for an {"items": [...]} object and keeps only the
// well-formed items, at most req.Count of them.
func (c *Client) Generate(ctx context.Context, req model.GenerateRequest) ([]model.GeneratedQuestion, error) {
	system, user, err := prompts.BuildGenerate(req)
	if err != nil {
		return nil, fmt.Errorf("build generation prompt: %w", err)
	}

	slog.Debug("generating questions", "prompt_version", prompts.Version, "model", c.model, "count", req.Count)
	raw, err := c.complete(ctx, "generate", c.model, 0.1, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, fmt.Errorf("parse generation response: %w", err)
	}

	items := ValidateItems(envelope.Items, req.Count)
	if len(items) == 0 {
		return nil, fmt.Errorf("model returned no valid items (got %d)", len(envelope.Items))
	}
	slog.Info("generated questions", "valid", len(items), "returned", len(envelope.Items),
		"requested", req.Count, "model", c.model, "prompt_version", prompts.Version)
	return items, nil
}

// Grade asks the evaluation model to score one answer.
func (c *Client) Grade(ctx context.Context, req model.GradeRequest) (map[string]any, error) {
	prompt, err := prompts.BuildGrade(req)
	if err != nil {
		return nil, fmt.Errorf("build grading prompt: %w", err)
	}

	raw, err := c.complete(ctx, "grade", c.evalModel, 0.2, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}
	return ParseObject(raw)
}

func (c *Client) complete(ctx context.Context, op, modelName string, temperature float32, msgs []openai.ChatCompletionMessage) (string, error) {
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    modelName,
		Messages: msgs,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.LLMDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("LLM %s call: %w", op, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices for %s", op)
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "operation", op, "raw", raw)
	return raw, nil
}

// ParseObject decodes a JSON object. When raw is not valid JSON, the span from
// the first '{' to the last '}' is tried instead.
func ParseObject(raw string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err == nil && out != nil {
		return out, nil
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, ErrUnparseable
	}
	out = nil
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil || out == nil {
		return nil, ErrUnparseable
	}
	return out, nil
}
