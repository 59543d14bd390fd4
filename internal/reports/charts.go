package reports

import (
	"encoding/json"
	"fmt"

	"github.com/ternarybob/inquiro/internal/models"
)

// NormalizeChart converts any of the accepted visualization shapes into a
// chart spec. Three shapes are accepted: a spec object (or the generic map a
// JSON round trip turns it into), a pre-encoded JSON string of a spec, and a
// bare series list without chart framing.
func NormalizeChart(name string, value any) (*models.ChartSpec, error) {
	spec, err := decodeChart(name, value)
	if err != nil {
		return nil, err
	}
	if len(spec.Series) == 0 {
		return nil, fmt.Errorf("chart %q has no series", name)
	}
	for _, series := range spec.Series {
		if len(series.Labels) != len(series.Values) {
			return nil, fmt.Errorf("chart %q series %q has %d labels for %d values",
				name, series.Name, len(series.Labels), len(series.Values))
		}
	}
	return spec, nil
}

func decodeChart(name string, value any) (*models.ChartSpec, error) {
	switch v := value.(type) {
	case nil:
		return nil, fmt.Errorf("chart %q is empty", name)

	case *models.ChartSpec:
		return v, nil

	case models.ChartSpec:
		return &v, nil

	case string:
		var spec models.ChartSpec
		if err := json.Unmarshal([]byte(v), &spec); err != nil {
			return nil, fmt.Errorf("chart %q is not valid chart JSON: %w", name, err)
		}
		return &spec, nil

	case []models.ChartSeries:
		return seriesToSpec(name, v), nil

	default:
		// Anything else went through a JSON round trip and comes back as
		// generic maps and slices. Re-encode and try both framed shapes.
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("chart %q cannot be encoded: %w", name, err)
		}

		var spec models.ChartSpec
		if err := json.Unmarshal(data, &spec); err == nil && len(spec.Series) > 0 {
			return &spec, nil
		}

		var series []models.ChartSeries
		if err := json.Unmarshal(data, &series); err == nil && len(series) > 0 {
			return seriesToSpec(name, series), nil
		}

		return nil, fmt.Errorf("chart %q has unrecognized shape %T", name, value)
	}
}

// seriesToSpec wraps a bare series list in a line chart titled after the map
// key it was stored under.
func seriesToSpec(name string, series []models.ChartSeries) *models.ChartSpec {
	return &models.ChartSpec{
		Kind:   models.ChartKindLine,
		Title:  name,
		Series: series,
	}
}
