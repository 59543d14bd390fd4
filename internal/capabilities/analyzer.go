package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/models"
	"github.com/ternarybob/inquiro/internal/pipeline"
)

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Analyzer aggregates classified results into category and year counts and
// writes a short insights narrative describing the dominant category and the
// filing trend over time.
type Analyzer struct {
	logger arbor.ILogger
}

// NewAnalyzer creates the data analysis capability.
func NewAnalyzer(logger arbor.ILogger) *Analyzer {
	return &Analyzer{logger: logger}
}

func (a *Analyzer) Kind() pipeline.Kind { return pipeline.KindAnalysis }
func (a *Analyzer) Name() string        { return "aggregate" }

// Execute decodes the classified list and returns the aggregated analysis.
func (a *Analyzer) Execute(ctx context.Context, input string) (any, error) {
	var items []models.StructuredResult
	if input != "" {
		if err := json.Unmarshal([]byte(input), &items); err != nil {
			return nil, fmt.Errorf("invalid classified data for analysis: %w", err)
		}
	}

	results := models.AnalysisResults{
		CountByCategory: make(map[string]int),
		CountByYear:     make(map[string]int),
		TotalRecords:    len(items),
	}

	for _, item := range items {
		category := item.Category
		if category == "" {
			category = "Other"
		}
		results.CountByCategory[category]++

		if year := extractYear(item.DateFound); year != "" {
			results.CountByYear[year]++
		}
	}

	results.Insights = buildInsights(&results)

	a.logger.Debug().
		Int("total_records", results.TotalRecords).
		Int("categories", len(results.CountByCategory)).
		Int("years", len(results.CountByYear)).
		Msg("Analysis finished")

	return results, nil
}

// extractYear pulls a four digit year out of a free-form date string.
func extractYear(date string) string {
	return yearPattern.FindString(date)
}

// buildInsights writes the narrative summary used in the final report.
func buildInsights(results *models.AnalysisResults) string {
	if results.TotalRecords == 0 {
		return "No records were collected for this search, so no trends can be reported."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The search returned %d records across %d categories.",
		results.TotalRecords, len(results.CountByCategory))

	if category, count := dominantEntry(results.CountByCategory); category != "" {
		share := float64(count) / float64(results.TotalRecords) * 100
		fmt.Fprintf(&b, " The dominant category is **%s** with %d records (%.0f%% of the total).",
			category, count, share)
	}

	years := sortedKeys(results.CountByYear)
	if len(years) >= 2 {
		first, last := years[0], years[len(years)-1]
		switch {
		case results.CountByYear[last] > results.CountByYear[first]:
			fmt.Fprintf(&b, " Filing activity grew between %s and %s, from %d to %d records per year.",
				first, last, results.CountByYear[first], results.CountByYear[last])
		case results.CountByYear[last] < results.CountByYear[first]:
			fmt.Fprintf(&b, " Filing activity declined between %s and %s, from %d to %d records per year.",
				first, last, results.CountByYear[first], results.CountByYear[last])
		default:
			fmt.Fprintf(&b, " Filing activity held steady between %s and %s at %d records per year.",
				first, last, results.CountByYear[first])
		}
	} else if len(years) == 1 {
		fmt.Fprintf(&b, " All dated records fall in %s.", years[0])
	}

	return b.String()
}

// dominantEntry returns the key with the highest count, breaking ties by the
// lexically smaller key so the narrative is deterministic.
func dominantEntry(counts map[string]int) (string, int) {
	var best string
	bestCount := -1
	for key, count := range counts {
		if count > bestCount || (count == bestCount && key < best) {
			best, bestCount = key, count
		}
	}
	if bestCount < 0 {
		return "", 0
	}
	return best, bestCount
}

func sortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
