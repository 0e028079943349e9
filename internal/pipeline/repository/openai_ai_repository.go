package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rivalwatch/internal/pipeline/config"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/ratelimit"
	"rivalwatch/pkg/resilience"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

type openaiAIRepository struct {
	client         *openai.Client
	cfg            *config.Config
	logger         *logger.Logger
	tokenLimiter   *ratelimit.TokenLimiter
	requestLimiter *rate.Limiter
}

// NewOpenAIRepository creates an AIRepository backed by the OpenAI chat
// completions API.
func NewOpenAIRepository(cfg *config.Config, log *logger.Logger) AIRepository {
	secondsPerRequest := time.Minute / time.Duration(cfg.OpenAI.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)

	tokenLimiter := ratelimit.NewTokenLimiter(cfg.OpenAI.MaxTokenPerMinute)

	return &openaiAIRepository{
		client:         openai.NewClient(cfg.OpenAI.APIKey),
		cfg:            cfg,
		logger:         log,
		requestLimiter: requestLimiter,
		tokenLimiter:   tokenLimiter,
	}
}

// ExtractImpact performs structured impact extraction using the OpenAI API.
func (r *openaiAIRepository) ExtractImpact(ctx context.Context, req *dto.ExtractionRequest) (*dto.ExtractionPayload, error) {
	prompt := BuildExtractImpactPrompt(req)

	content, err := r.sendRequest(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var payload dto.ExtractionPayload
	if err := parseJSONAnswer(content, &payload); err != nil {
		return nil, err
	}

	return &payload, nil
}

// GenerateResearch produces a deep-research report using the OpenAI API.
func (r *openaiAIRepository) GenerateResearch(ctx context.Context, req *dto.ResearchRequest) (*dto.DeepResearchResult, error) {
	prompt := BuildDeepResearchPrompt(req)

	content, err := r.sendRequest(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var result dto.DeepResearchResult
	if err := parseJSONAnswer(content, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *openaiAIRepository) sendRequest(ctx context.Context, prompt string) (string, error) {
	// The SDK has no token-count endpoint, so budget on a rough estimate of
	// four characters per token.
	estimatedTokens := len(prompt) / 4
	if err := r.tokenLimiter.Wait(ctx, estimatedTokens); err != nil {
		return "", fmt.Errorf("failed to wait for token limit: %w", err)
	}

	if err := r.requestLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("failed to wait for request limit: %w", err)
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.cfg.OpenAI.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a competitive intelligence analyst. Always answer with a single JSON document.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("openAI API returned 429: %w", resilience.ErrRateLimited)
		}
		r.logger.Error("Failed to send request to OpenAI API", logger.ErrorField(err))
		return "", fmt.Errorf("openAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response: %w", resilience.ErrSchemaValidation)
	}

	r.logger.Debug("OpenAI token usage",
		logger.IntField("total_tokens", resp.Usage.TotalTokens),
		logger.IntField("remaining", r.tokenLimiter.GetRemaining()),
	)

	return resp.Choices[0].Message.Content, nil
}

// parseJSONAnswer strips an optional markdown code fence and unmarshals the
// answer into out. Malformed answers surface as schema failures.
func parseJSONAnswer(content string, out interface{}) error {
	jsonString := strings.Trim(strings.TrimSpace(content), "`json\n`")
	if err := json.Unmarshal([]byte(jsonString), out); err != nil {
		return fmt.Errorf("failed to unmarshal model response: %v: %w", err, resilience.ErrSchemaValidation)
	}
	return nil
}
