package capabilities

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/models"
)

func TestVisualizer_EmitsAllThreeShapes(t *testing.T) {
	analysis := models.AnalysisResults{
		CountByCategory: map[string]int{"Patent": 3, "Trademark": 1},
		CountByYear:     map[string]int{"2022": 1, "2023": 3},
		TotalRecords:    4,
	}
	input, err := json.Marshal(analysis)
	require.NoError(t, err)

	out, err := NewVisualizer(arbor.NewLogger()).Execute(context.Background(), string(input))
	require.NoError(t, err)

	charts, ok := out.(map[string]any)
	require.True(t, ok)
	require.Len(t, charts, 3)

	// Spec object
	bar, ok := charts["by_category"].(*models.ChartSpec)
	require.True(t, ok)
	assert.Equal(t, models.ChartKindBar, bar.Kind)
	assert.Equal(t, []string{"Patent", "Trademark"}, bar.Series[0].Labels)
	assert.Equal(t, []float64{3, 1}, bar.Series[0].Values)

	// Pre-encoded JSON string
	encoded, ok := charts["category_share"].(string)
	require.True(t, ok)
	var pie models.ChartSpec
	require.NoError(t, json.Unmarshal([]byte(encoded), &pie))
	assert.Equal(t, models.ChartKindPie, pie.Kind)

	// Bare series list
	line, ok := charts["by_year"].([]models.ChartSeries)
	require.True(t, ok)
	require.Len(t, line, 1)
	assert.Equal(t, []string{"2022", "2023"}, line[0].Labels)
}

func TestVisualizer_EmptyAnalysis(t *testing.T) {
	out, err := NewVisualizer(arbor.NewLogger()).Execute(context.Background(), `{"total_records":0}`)
	require.NoError(t, err)

	charts, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Empty(t, charts)
}

func TestVisualizer_InvalidInput(t *testing.T) {
	_, err := NewVisualizer(arbor.NewLogger()).Execute(context.Background(), "[not an object]")
	assert.Error(t, err)
}
