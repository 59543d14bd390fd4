package reports

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/inquiro/internal/models"
)

func barSpec() *models.ChartSpec {
	return &models.ChartSpec{
		Kind:  models.ChartKindBar,
		Title: "Records by Category",
		Series: []models.ChartSeries{
			{Name: "Records", Labels: []string{"Patent", "Trademark"}, Values: []float64{3, 1}},
		},
	}
}

func TestNormalizeChart_SpecObject(t *testing.T) {
	spec, err := NormalizeChart("by_category", barSpec())
	require.NoError(t, err)
	assert.Equal(t, models.ChartKindBar, spec.Kind)
	assert.Equal(t, []float64{3, 1}, spec.Series[0].Values)
}

func TestNormalizeChart_EncodedString(t *testing.T) {
	encoded, err := json.Marshal(barSpec())
	require.NoError(t, err)

	spec, err := NormalizeChart("category_share", string(encoded))
	require.NoError(t, err)
	assert.Equal(t, "Records by Category", spec.Title)
	require.Len(t, spec.Series, 1)
}

func TestNormalizeChart_BareSeriesList(t *testing.T) {
	series := []models.ChartSeries{
		{Name: "Filings per Year", Labels: []string{"2021", "2022"}, Values: []float64{2, 5}},
	}

	spec, err := NormalizeChart("by_year", series)
	require.NoError(t, err)
	assert.Equal(t, models.ChartKindLine, spec.Kind)
	assert.Equal(t, "by_year", spec.Title)
	assert.Equal(t, []float64{2, 5}, spec.Series[0].Values)
}

// Values that crossed a JSON boundary arrive as generic maps and slices.
func TestNormalizeChart_GenericShapes(t *testing.T) {
	roundTrip := func(v any) any {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		var out any
		require.NoError(t, json.Unmarshal(data, &out))
		return out
	}

	spec, err := NormalizeChart("by_category", roundTrip(barSpec()))
	require.NoError(t, err)
	assert.Equal(t, models.ChartKindBar, spec.Kind)

	spec, err = NormalizeChart("by_year", roundTrip([]models.ChartSeries{
		{Name: "s", Labels: []string{"2020"}, Values: []float64{1}},
	}))
	require.NoError(t, err)
	assert.Equal(t, models.ChartKindLine, spec.Kind)
}

func TestNormalizeChart_Malformed(t *testing.T) {
	for name, value := range map[string]any{
		"nil":           nil,
		"not json":      "{{{",
		"empty string":  "",
		"wrong type":    42,
		"empty object":  map[string]any{},
		"no series":     &models.ChartSpec{Kind: models.ChartKindBar},
		"string number": "17",
		"label value mismatch object": &models.ChartSpec{
			Kind:  models.ChartKindBar,
			Title: "Mismatch",
			Series: []models.ChartSeries{
				{Name: "s", Labels: []string{"only-one"}, Values: []float64{1, 2, 3}},
			},
		},
		"label value mismatch string": `{"kind":"bar","series":[{"name":"s","labels":["only-one"],"values":[1,2,3]}]}`,
		"more labels than values": []models.ChartSeries{
			{Name: "s", Labels: []string{"a", "b", "c"}, Values: []float64{1}},
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NormalizeChart("bad", value)
			assert.Error(t, err)
		})
	}
}
