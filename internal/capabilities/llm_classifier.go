package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/common"
	"github.com/ternarybob/inquiro/internal/models"
	"github.com/ternarybob/inquiro/internal/pipeline"
)

const classifierSystemPrompt = `You classify intellectual property records. For each record decide one category: Patent, Trademark, Copyright, Industrial Design or Other. Respond with a JSON array only, one object per input record, preserving input order, each object shaped as {"category": "...", "summary": "..."} where summary is a one sentence abstract of the record.`

// llmClassification is the shape Claude is instructed to return per record.
type llmClassification struct {
	Category string `json:"category"`
	Summary  string `json:"summary"`
}

// LLMClassifier classifies raw results with the Anthropic API. It is selected
// over the rule classifier when pipeline.classifier is set to "llm".
type LLMClassifier struct {
	config    *common.ClaudeConfig
	store     StructuredStore
	logger    arbor.ILogger
	client    anthropic.Client
	timeout   time.Duration
	maxTokens int
}

// NewLLMClassifier creates the Claude-backed classification capability.
func NewLLMClassifier(claudeConfig *common.ClaudeConfig, store StructuredStore, logger arbor.ILogger) (*LLMClassifier, error) {
	if claudeConfig.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for LLM classification (set via ANTHROPIC_API_KEY or claude.api_key in config)")
	}

	if claudeConfig.Model == "" {
		claudeConfig.Model = "claude-sonnet-4-20250514"
	}

	timeout, err := time.ParseDuration(claudeConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", claudeConfig.Timeout, err)
	}

	maxTokens := claudeConfig.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client := anthropic.NewClient(
		option.WithAPIKey(claudeConfig.APIKey),
	)

	classifier := &LLMClassifier{
		config:    claudeConfig,
		store:     store,
		logger:    logger,
		client:    client,
		timeout:   timeout,
		maxTokens: maxTokens,
	}

	logger.Debug().
		Str("model", claudeConfig.Model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("LLM classifier initialized")

	return classifier, nil
}

func (c *LLMClassifier) Kind() pipeline.Kind { return pipeline.KindClassification }
func (c *LLMClassifier) Name() string        { return "llm" }

// Execute sends the raw item list to Claude, decodes the per-record
// classifications and persists one structured result per item. When Claude
// returns fewer classifications than items, the remainder falls back to the
// keyword rules.
func (c *LLMClassifier) Execute(ctx context.Context, input string) (any, error) {
	var items []RawItem
	if input != "" {
		if err := json.Unmarshal([]byte(input), &items); err != nil {
			return nil, fmt.Errorf("invalid raw data for classification: %w", err)
		}
	}
	if len(items) == 0 {
		return []models.StructuredResult{}, nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	classifications, err := c.classify(timeoutCtx, items)
	if err != nil {
		return nil, err
	}

	classified := make([]models.StructuredResult, 0, len(items))
	for i, item := range items {
		result := models.StructuredResult{
			RawResultID: item.DBRawID,
			Title:       item.Title,
			DateFound:   item.FilingDate,
			Applicant:   item.Applicant,
			Summary:     item.Abstract,
		}
		if i < len(classifications) && classifications[i].Category != "" {
			result.Category = classifications[i].Category
			if classifications[i].Summary != "" {
				result.Summary = classifications[i].Summary
			}
		} else {
			result.Category = Categorize(item)
		}

		payload, err := json.Marshal(item)
		if err == nil {
			result.Payload = string(payload)
		}

		id, err := c.store.InsertStructured(ctx, &result)
		if err != nil {
			return nil, fmt.Errorf("failed to persist classification: %w", err)
		}
		result.ID = id

		classified = append(classified, result)
	}

	c.logger.Debug().
		Int("items", len(items)).
		Int("classified", len(classified)).
		Msg("LLM classification finished")

	return classified, nil
}

// classify performs the Claude call and decodes the JSON array response.
func (c *LLMClassifier) classify(ctx context.Context, items []RawItem) ([]llmClassification, error) {
	records, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode records for classification: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: classifierSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(string(records))),
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}
	if response.Len() == 0 {
		return nil, fmt.Errorf("no response generated from Claude API")
	}

	text := extractJSONArray(response.String())
	var classifications []llmClassification
	if err := json.Unmarshal([]byte(text), &classifications); err != nil {
		return nil, fmt.Errorf("failed to decode classification response: %w", err)
	}

	return classifications, nil
}

// extractJSONArray trims surrounding prose or markdown fences from a model
// response, keeping the outermost JSON array.
func extractJSONArray(text string) string {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
