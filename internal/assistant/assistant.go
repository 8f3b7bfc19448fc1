// Package assistant answers analyst questions and drafts incident reports
// through an OpenAI-compatible chat API.
package assistant

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("assistant disabled: no API key configured")

const systemPrompt = `You are BlackForge AI Assistant, an expert cybersecurity analyst
specializing in adversarial machine learning attacks and defenses.

You help users understand:
- Dataset poisoning attacks (label flipping, backdoor, outlier injection, feature noise)
- Detection methods (spectral signatures, activation clustering, influence functions)
- Threat scores and what they mean
- How to interpret purification results
- Best practices for securing ML pipelines

Keep responses concise, technical but clear. Use bullet points when listing items.
When given analysis data, provide specific actionable insights.
Always relate your answers back to the user's ML security context.`

// historyWindow bounds how many prior turns are sent with each request.
const historyWindow = 10

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnalysisContext is the detection state injected into the system prompt so
// answers reference the user's actual run.
type AnalysisContext struct {
	DatasetName     string  `json:"dataset_name"`
	Confidence      float64 `json:"poison_confidence"`
	PoisonType      string  `json:"poison_type"`
	ThreatScore     float64 `json:"threat_score"`
	ThreatGrade     string  `json:"threat_grade"`
	SuspiciousCount int     `json:"suspicious_sample_count"`
	AccuracyImpact  float64 `json:"estimated_accuracy_impact"`
	Removed         int     `json:"poisoned_samples_removed,omitempty"`
	IntegrityScore  float64 `json:"data_integrity_score,omitempty"`
}

// Config holds the assistant settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Assistant wraps the chat model client. A nil Assistant is valid and means
// the feature is disabled.
type Assistant struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// New creates an Assistant, or nil when no API key is configured.
func New(cfg Config, logger *zap.Logger) *Assistant {
	if cfg.APIKey == "" {
		return nil
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}
}

// Enabled reports whether the assistant can serve requests.
func (a *Assistant) Enabled() bool { return a != nil }

// Chat answers one user message given prior history and optional analysis
// context.
func (a *Assistant) Chat(ctx context.Context, message string, history []Message, actx *AnalysisContext) (string, error) {
	if a == nil {
		return "", ErrDisabled
	}

	system := systemPrompt
	if actx != nil {
		system += contextBlock(*actx)
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	return a.complete(ctx, messages)
}

// Report drafts a markdown incident report from an analysis run.
func (a *Assistant) Report(ctx context.Context, actx AnalysisContext) (string, error) {
	if a == nil {
		return "", ErrDisabled
	}

	prompt := fmt.Sprintf(
		"Write a concise markdown incident report for the following dataset "+
			"poisoning analysis. Include an executive summary, findings, and "+
			"recommended next steps.%s", contextBlock(actx))

	return a.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
}

// Status verifies the upstream API is reachable.
func (a *Assistant) Status(ctx context.Context) error {
	if a == nil {
		return ErrDisabled
	}
	if _, err := a.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", parseAPIError(err))
	}
	return nil
}

func (a *Assistant) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: messages,
	})
	if err != nil {
		return "", parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

func contextBlock(actx AnalysisContext) string {
	return fmt.Sprintf(`

[CURRENT ANALYSIS CONTEXT]
Dataset: %s
Poison Confidence: %.1f%%
Poison Type: %s
Threat Score: %.1f/100
Threat Grade: %s
Suspicious Samples: %d
Accuracy Impact: -%.1f%%
`,
		actx.DatasetName, actx.Confidence, actx.PoisonType,
		actx.ThreatScore, actx.ThreatGrade, actx.SuspiciousCount,
		actx.AccuracyImpact)
}

// parseAPIError extracts a readable message from the API response.
func parseAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("assistant API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("assistant API error %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body))
	}
	return err
}
