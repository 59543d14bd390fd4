package pipeline

import (
	"encoding/json"

	"github.com/ternarybob/inquiro/internal/models"
)

// Field identifies one stage-payload slot on the run state.
type Field string

const (
	FieldCriteria        Field = "search_criteria"
	FieldCollectionInput Field = "collection_input"
	FieldRawData         Field = "raw_data"
	FieldClassifiedData  Field = "classified_data"
	FieldAnalysisResults Field = "analysis_results"
	FieldVisualizations  Field = "visualizations"
)

// CollectionInput is the envelope handed to collection capabilities: the
// query text plus the run identity the capability tags persisted rows with.
type CollectionInput struct {
	Query         string `json:"query"`
	SearchQueryID int64  `json:"search_query_id"`
}

// State carries one analysis run through the pipeline. It is owned
// exclusively by the orchestrator for the run's lifetime. All inter-stage
// payloads are serialized strings. Once an error is recorded, stage payload
// fields are frozen: a failed stage's output must not poison downstream data.
type State struct {
	SearchQueryID  int64
	SearchCriteria string

	rawData         string
	classifiedData  string
	analysisResults string
	visualizations  string

	FinalReport  *models.Report
	ErrorMessage string
}

// NewState creates run state with the identity fields populated.
func NewState(queryID int64, criteria string) *State {
	return &State{
		SearchQueryID:  queryID,
		SearchCriteria: criteria,
	}
}

// Output returns the serialized payload stored in a field.
func (s *State) Output(field Field) string {
	switch field {
	case FieldCriteria:
		return s.SearchCriteria
	case FieldCollectionInput:
		data, err := json.Marshal(CollectionInput{
			Query:         s.SearchCriteria,
			SearchQueryID: s.SearchQueryID,
		})
		if err != nil {
			return ""
		}
		return string(data)
	case FieldRawData:
		return s.rawData
	case FieldClassifiedData:
		return s.classifiedData
	case FieldAnalysisResults:
		return s.analysisResults
	case FieldVisualizations:
		return s.visualizations
	}
	return ""
}

// SetOutput stores a stage's serialized output. It refuses the write when an
// error has already been recorded, so short-circuited stages cannot mutate
// payload fields set before the failure.
func (s *State) SetOutput(field Field, value string) bool {
	if s.ErrorMessage != "" {
		return false
	}

	switch field {
	case FieldRawData:
		s.rawData = value
	case FieldClassifiedData:
		s.classifiedData = value
	case FieldAnalysisResults:
		s.analysisResults = value
	case FieldVisualizations:
		s.visualizations = value
	default:
		return false
	}
	return true
}

// SetError records a stage failure. Only the first error is kept.
func (s *State) SetError(message string) {
	if s.ErrorMessage == "" {
		s.ErrorMessage = message
	}
}

// Failed reports whether an error has been recorded for the run.
func (s *State) Failed() bool {
	return s.ErrorMessage != ""
}

// DecodeList decodes a serialized list payload. Malformed input yields an
// empty list; decode failures never propagate past a stage boundary.
func DecodeList(encoded string) []map[string]any {
	if encoded == "" {
		return nil
	}
	var items []map[string]any
	if err := json.Unmarshal([]byte(encoded), &items); err != nil {
		return nil
	}
	return items
}

// DecodeObject decodes a serialized object payload into out. Malformed input
// leaves out at its zero value and reports false.
func DecodeObject(encoded string, out any) bool {
	if encoded == "" {
		return false
	}
	return json.Unmarshal([]byte(encoded), out) == nil
}
