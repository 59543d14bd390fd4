package capabilities

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/models"
	"github.com/ternarybob/inquiro/internal/pipeline"
)

// Visualizer builds chart specifications from the aggregated analysis. The
// produced map deliberately mixes value shapes (a spec object, a pre-encoded
// JSON string and a bare series list) because downstream renderers accept all
// three and normalize them at render time.
type Visualizer struct {
	logger arbor.ILogger
}

// NewVisualizer creates the chart generation capability.
func NewVisualizer(logger arbor.ILogger) *Visualizer {
	return &Visualizer{logger: logger}
}

func (v *Visualizer) Kind() pipeline.Kind { return pipeline.KindVisualization }
func (v *Visualizer) Name() string        { return "charts" }

// Execute decodes the analysis output and returns the visualization map.
func (v *Visualizer) Execute(ctx context.Context, input string) (any, error) {
	var analysis models.AnalysisResults
	if input != "" {
		if err := json.Unmarshal([]byte(input), &analysis); err != nil {
			return nil, fmt.Errorf("invalid analysis data for visualization: %w", err)
		}
	}

	charts := make(map[string]any)

	if len(analysis.CountByCategory) > 0 {
		labels, values := countsToSeries(analysis.CountByCategory)

		charts["by_category"] = &models.ChartSpec{
			Kind:   models.ChartKindBar,
			Title:  "Records by Category",
			XLabel: "Category",
			YLabel: "Records",
			Series: []models.ChartSeries{
				{Name: "Records", Labels: labels, Values: values},
			},
		}

		pie := models.ChartSpec{
			Kind:  models.ChartKindPie,
			Title: "Category Share",
			Series: []models.ChartSeries{
				{Name: "Share", Labels: labels, Values: values},
			},
		}
		encoded, err := json.Marshal(pie)
		if err != nil {
			return nil, fmt.Errorf("failed to encode pie chart: %w", err)
		}
		charts["category_share"] = string(encoded)
	}

	if len(analysis.CountByYear) > 0 {
		labels, values := countsToSeries(analysis.CountByYear)
		charts["by_year"] = []models.ChartSeries{
			{Name: "Filings per Year", Labels: labels, Values: values},
		}
	}

	v.logger.Debug().Int("charts", len(charts)).Msg("Visualization finished")
	return charts, nil
}

// countsToSeries flattens a count map into parallel label and value slices,
// ordered by key for stable chart output.
func countsToSeries(counts map[string]int) ([]string, []float64) {
	keys := sortedKeys(counts)
	values := make([]float64, len(keys))
	for i, key := range keys {
		values[i] = float64(counts[key])
	}
	return keys, values
}
