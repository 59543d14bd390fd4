package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/models"
	"github.com/ternarybob/inquiro/internal/pipeline"
)

// RuleClassifier assigns an intellectual-property category to raw results by
// keyword rules, without any model calls. Rules are evaluated in priority
// order; the first match wins and unmatched items fall through to "Other".
type RuleClassifier struct {
	store  StructuredStore
	logger arbor.ILogger
}

// classificationRule defines a single classification rule
type classificationRule struct {
	category string
	keywords []string
}

// classificationRules defines all rules in priority order (first match wins)
var classificationRules = []classificationRule{
	{
		category: "Patent",
		keywords: []string{"patent", "patente", "uspto", "epo", "inpi", "invention", "application number"},
	},
	{
		category: "Trademark",
		keywords: []string{"trademark", "marca", "brand registration", "wordmark", "trade mark"},
	},
	{
		category: "Copyright",
		keywords: []string{"copyright", "direito autoral", "authorship", "literary work"},
	},
	{
		category: "Industrial Design",
		keywords: []string{"industrial design", "desenho industrial", "design registration"},
	},
}

// keywordPatterns compiles every keyword with word boundaries, so short
// keywords like "epo" never match inside longer words like "deposit".
var keywordPatterns = func() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, 32)
	for _, rule := range classificationRules {
		for _, kw := range rule.keywords {
			patterns[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
		}
	}
	return patterns
}()

// NewRuleClassifier creates the rule-based classification capability.
func NewRuleClassifier(store StructuredStore, logger arbor.ILogger) *RuleClassifier {
	return &RuleClassifier{store: store, logger: logger}
}

func (c *RuleClassifier) Kind() pipeline.Kind { return pipeline.KindClassification }
func (c *RuleClassifier) Name() string        { return "rules" }

// Execute classifies the encoded raw item list and persists one structured
// result per item, returning the encoded classified list.
func (c *RuleClassifier) Execute(ctx context.Context, input string) (any, error) {
	var items []RawItem
	if input != "" {
		if err := json.Unmarshal([]byte(input), &items); err != nil {
			return nil, fmt.Errorf("invalid raw data for classification: %w", err)
		}
	}

	classified := make([]models.StructuredResult, 0, len(items))
	for _, item := range items {
		result := models.StructuredResult{
			RawResultID: item.DBRawID,
			Category:    Categorize(item),
			Title:       item.Title,
			DateFound:   item.FilingDate,
			Applicant:   item.Applicant,
			Summary:     item.Abstract,
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

	c.logger.Debug().Int("classified", len(classified)).Msg("Rule classification finished")
	return classified, nil
}

// Categorize returns the category for one raw item, first matching rule wins.
func Categorize(item RawItem) string {
	text := strings.ToLower(item.Title + " " + item.Abstract + " " + item.Source)
	for _, rule := range classificationRules {
		for _, kw := range rule.keywords {
			if keywordPatterns[kw].MatchString(text) {
				return rule.category
			}
		}
	}
	return "Other"
}
