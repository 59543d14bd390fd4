package models

import (
	"encoding/json"
)

// AnalysisResults is the output of the analysis stage: aggregate counts plus
// an insights narrative interpreting them.
type AnalysisResults struct {
	CountByCategory map[string]int `json:"count_by_category,omitempty"`
	CountByYear     map[string]int `json:"count_by_year,omitempty"`
	TotalRecords    int            `json:"total_records"`
	Insights        string         `json:"insights,omitempty"`
}

// ChartKind identifies the chart types the visualization stage can request.
type ChartKind string

const (
	ChartKindBar  ChartKind = "bar"
	ChartKindPie  ChartKind = "pie"
	ChartKindLine ChartKind = "line"
)

// ChartSeries is one plotted series: parallel label/value slices.
type ChartSeries struct {
	Name   string    `json:"name"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// ChartSpec is the structured chart representation produced by the
// visualization stage. Render workers also accept it pre-serialized as a JSON
// string, or as a bare list of series (see reports.NormalizeChart).
type ChartSpec struct {
	Kind   ChartKind     `json:"kind"`
	Title  string        `json:"title"`
	XLabel string        `json:"x_label,omitempty"`
	YLabel string        `json:"y_label,omitempty"`
	Series []ChartSeries `json:"series"`
}

// Report is the final report assembled by the reporting stage. It is always
// produced, even for runs that failed partway; ErrorMessage carries the
// partial-failure signal.
type Report struct {
	SearchQueryID  int64              `json:"search_query_id"`
	SearchCriteria string             `json:"search_criteria"`
	DataCollected  int                `json:"data_collected"`
	ClassifiedData []StructuredResult `json:"classified_data"`
	Analysis       AnalysisResults    `json:"analysis_results"`
	Visualizations map[string]any     `json:"visualizations"`
	Insights       string             `json:"insights"`
	ErrorMessage   string             `json:"error_message,omitempty"`

	// RenderJob references the asynchronously submitted PDF render job, when
	// enqueueing succeeded.
	RenderJob *ReportJobRef `json:"render_job,omitempty"`
}

// ReportJobRef is the caller-facing reference to a submitted render job.
type ReportJobRef struct {
	JobID      string          `json:"job_id"`
	Status     ReportJobStatus `json:"status"`
	OutputPath string          `json:"output_path"`
}

// Succeeded reports whether the run completed without a recorded stage error.
func (r *Report) Succeeded() bool {
	return r.ErrorMessage == ""
}

// ToJSON serializes the report for persistence and for render-job payloads.
func (r *Report) ToJSON() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
