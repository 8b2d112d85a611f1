package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/tandemhq/tandem-api/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	// MaxTasksInPrompt caps how many upcoming tasks the prompt includes
	MaxTasksInPrompt = 20

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIProvider implements the TipProvider interface using OpenAI's API
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return NewOpenAIProviderWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIProviderWithLogger creates a new OpenAI provider with logger support
func NewOpenAIProviderWithLogger(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// DailyTip generates a coordination tip from the couple's upcoming tasks.
func (p *OpenAIProvider) DailyTip(ctx context.Context, tasks []*models.HouseholdTask, timezone string) (*Tip, error) {
	prompt := buildTipPrompt(tasks, timezone)
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("You are a warm, practical assistant for couples coordinating household tasks. " +
			"Given their upcoming tasks, suggest one short, encouraging tip about how to share or schedule the work. " +
			"Respond with valid JSON only: {\"message\": string, \"focus_area\": string}."),
		openai.UserMessage(prompt),
	}
	req := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", "daily_tip"),
			zap.String("model", p.model),
			zap.Int("prompt_length", len(prompt)),
			zap.Int("task_count", len(tasks)),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("operation", "daily_tip"),
				zap.String("model", p.model),
				zap.Error(err),
				zap.Duration("latency", latency),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("failed to generate tip: %w", apiErr)
		}
		return nil, fmt.Errorf("failed to generate tip: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New(ErrNoChoicesInResponse)
	}

	content := resp.Choices[0].Message.Content
	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", "daily_tip"),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return parseTipResponse(content)
}

// buildTipPrompt renders the couple's upcoming tasks as prompt context.
func buildTipPrompt(tasks []*models.HouseholdTask, timezone string) string {
	var b strings.Builder
	if timezone != "" {
		fmt.Fprintf(&b, "The couple's timezone is %s.\n", timezone)
	}
	if len(tasks) == 0 {
		b.WriteString("The couple has no upcoming tasks. Suggest a light planning tip.\n")
		return b.String()
	}

	b.WriteString("Upcoming tasks:\n")
	for i, task := range tasks {
		if i >= MaxTasksInPrompt {
			fmt.Fprintf(&b, "... and %d more\n", len(tasks)-MaxTasksInPrompt)
			break
		}
		fmt.Fprintf(&b, "- %s", task.Title)
		if task.DueDate != nil {
			fmt.Fprintf(&b, " (due %s)", task.DueDate.Format("Mon Jan 2"))
		}
		if task.IsRecurring() {
			fmt.Fprintf(&b, " [repeats %s]", task.Recurrence.Pattern)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// parseTipResponse parses the model's JSON reply, tolerating prose wrapped
// around the JSON object.
func parseTipResponse(content string) (*Tip, error) {
	var tip Tip
	raw := content
	if err := json.Unmarshal([]byte(raw), &tip); err != nil {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start != -1 && end != -1 && end > start {
			raw = raw[start : end+1]
		}
		if err := json.Unmarshal([]byte(raw), &tip); err != nil {
			return nil, fmt.Errorf("failed to parse tip response: %w", err)
		}
	}
	tip.Message = strings.TrimSpace(tip.Message)
	if tip.Message == "" {
		return nil, fmt.Errorf("tip response has no message")
	}
	return &tip, nil
}
