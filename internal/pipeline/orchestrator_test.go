package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/models"
)

type fakeQueryStore struct {
	statuses []models.QueryStatus
}

func (f *fakeQueryStore) UpdateQueryStatus(_ context.Context, _ int64, status models.QueryStatus) error {
	f.statuses = append(f.statuses, status)
	return nil
}

type fakeLogAppender struct {
	entries []string
}

func (f *fakeLogAppender) AppendLog(_ context.Context, _ int64, message string) error {
	f.entries = append(f.entries, message)
	return nil
}

type fakeQueue struct {
	submitted []*models.Report
	err       error
}

func (f *fakeQueue) Submit(_ context.Context, report *models.Report) (*models.ReportJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.submitted = append(f.submitted, report)
	return &models.ReportJob{JobID: "job_test", Status: models.ReportJobStatusPending}, nil
}

// testStages builds a full pipeline out of fake capabilities.
func testStages(collect, classify, analyze, visualize Capability) []StageDescriptor {
	return Stages(
		Set{collect},
		Set{classify},
		Set{analyze},
		Set{visualize},
		"", 0,
	)
}

func runOrchestrator(t *testing.T, stages []StageDescriptor, queue RenderSubmitter) (*models.Report, *fakeQueryStore, *fakeLogAppender) {
	t.Helper()

	queries := &fakeQueryStore{}
	appender := &fakeLogAppender{}
	logger := arbor.NewLogger()
	audit := NewAuditLog(appender, logger)

	o := NewOrchestrator(stages, NewStageExecutor(0), queries, audit, queue, logger)
	state := NewState(7, "ai patents")
	report := o.Run(context.Background(), state)
	require.NotNil(t, report)
	assert.Same(t, report, state.FinalReport)
	return report, queries, appender
}

func TestOrchestrator_HappyPath(t *testing.T) {
	collect := succeeding(KindCollection, "websearch",
		[]map[string]any{{"title": "a"}, {"title": "b"}, {"title": "c"}})
	classify := succeeding(KindClassification, "rules",
		[]models.StructuredResult{{Category: "Patent", Title: "a"}})
	analyze := succeeding(KindAnalysis, "aggregate",
		models.AnalysisResults{TotalRecords: 3, Insights: "mostly patents"})
	visualize := succeeding(KindVisualization, "charts",
		map[string]any{"by_category": map[string]any{"kind": "bar"}})

	queue := &fakeQueue{}
	report, queries, appender := runOrchestrator(t, testStages(collect, classify, analyze, visualize), queue)

	assert.True(t, report.Succeeded())
	assert.Equal(t, 3, report.DataCollected)
	assert.Equal(t, 3, report.Analysis.TotalRecords)
	assert.Equal(t, "mostly patents", report.Insights)
	assert.Len(t, report.ClassifiedData, 1)
	assert.Contains(t, report.Visualizations, "by_category")

	require.NotNil(t, report.RenderJob)
	assert.Equal(t, "job_test", report.RenderJob.JobID)
	require.Len(t, queue.submitted, 1)

	assert.Equal(t, []models.QueryStatus{models.QueryStatusCompleted}, queries.statuses)
	assert.Contains(t, appender.entries, "collection finished: 3 raw results obtained")
	assert.Contains(t, appender.entries, "classification finished: 1 results classified")
	assert.Contains(t, appender.entries, "render job queued: job_test")
}

func TestOrchestrator_StageFailureShortCircuits(t *testing.T) {
	collect := succeeding(KindCollection, "websearch",
		[]map[string]any{{"title": "a"}, {"title": "b"}})
	classify := failing(KindClassification, "rules", errors.New("model unavailable"))
	analyze := succeeding(KindAnalysis, "aggregate", models.AnalysisResults{})
	visualize := succeeding(KindVisualization, "charts", map[string]any{})

	queue := &fakeQueue{}
	report, queries, _ := runOrchestrator(t, testStages(collect, classify, analyze, visualize), queue)

	assert.False(t, report.Succeeded())
	assert.Contains(t, report.ErrorMessage, "classify_data")
	assert.Contains(t, report.ErrorMessage, "model unavailable")

	// Collected data survives the failure; downstream stages never ran
	assert.Equal(t, 2, report.DataCollected)
	assert.Empty(t, report.ClassifiedData)
	assert.Equal(t, 0, analyze.calls)
	assert.Equal(t, 0, visualize.calls)

	// Reporting still runs: query marked completed, render job still queued
	assert.Equal(t, []models.QueryStatus{models.QueryStatusCompleted}, queries.statuses)
	require.NotNil(t, report.RenderJob)
	assert.Equal(t, "No insights generated.", report.Insights)
}

func TestOrchestrator_InvalidInit(t *testing.T) {
	collect := succeeding(KindCollection, "websearch", nil)
	stages := testStages(collect,
		succeeding(KindClassification, "rules", nil),
		succeeding(KindAnalysis, "aggregate", nil),
		succeeding(KindVisualization, "charts", nil))

	queries := &fakeQueryStore{}
	logger := arbor.NewLogger()
	o := NewOrchestrator(stages, NewStageExecutor(0), queries, NewAuditLog(nil, logger), &fakeQueue{}, logger)

	report := o.Run(context.Background(), NewState(0, ""))
	require.NotNil(t, report)
	assert.False(t, report.Succeeded())
	assert.Contains(t, report.ErrorMessage, "init")
	assert.Equal(t, 0, collect.calls)
}

func TestOrchestrator_EnqueueFailureIsNotFatal(t *testing.T) {
	stages := testStages(
		succeeding(KindCollection, "websearch", []map[string]any{{"title": "a"}}),
		succeeding(KindClassification, "rules", []models.StructuredResult{}),
		succeeding(KindAnalysis, "aggregate", models.AnalysisResults{TotalRecords: 1}),
		succeeding(KindVisualization, "charts", map[string]any{}),
	)

	report, _, appender := runOrchestrator(t, stages, &fakeQueue{err: errors.New("queue full")})

	assert.True(t, report.Succeeded())
	assert.Nil(t, report.RenderJob)
	assert.Contains(t, appender.entries, "render job enqueue failed: queue full")
}

func TestOrchestrator_NilQueue(t *testing.T) {
	stages := testStages(
		succeeding(KindCollection, "websearch", []map[string]any{{"title": "a"}}),
		succeeding(KindClassification, "rules", []models.StructuredResult{}),
		succeeding(KindAnalysis, "aggregate", models.AnalysisResults{TotalRecords: 1}),
		succeeding(KindVisualization, "charts", map[string]any{}),
	)

	report, _, _ := runOrchestrator(t, stages, nil)
	assert.True(t, report.Succeeded())
	assert.Nil(t, report.RenderJob)
}
