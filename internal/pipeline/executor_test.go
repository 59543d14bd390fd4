package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCapability is a scriptable capability for executor tests.
type fakeCapability struct {
	kind    Kind
	name    string
	execute func(ctx context.Context, input string) (any, error)
	calls   int
}

func (f *fakeCapability) Kind() Kind   { return f.kind }
func (f *fakeCapability) Name() string { return f.name }
func (f *fakeCapability) Execute(ctx context.Context, input string) (any, error) {
	f.calls++
	return f.execute(ctx, input)
}

func succeeding(kind Kind, name string, out any) *fakeCapability {
	return &fakeCapability{
		kind: kind,
		name: name,
		execute: func(context.Context, string) (any, error) {
			return out, nil
		},
	}
}

func failing(kind Kind, name string, err error) *fakeCapability {
	return &fakeCapability{
		kind: kind,
		name: name,
		execute: func(context.Context, string) (any, error) {
			return nil, err
		},
	}
}

func TestSelect_EmptySet(t *testing.T) {
	_, err := Set{}.Select(Selector{Kind: KindAnalysis})
	assert.ErrorIs(t, err, ErrNoCapability)
}

func TestSelect_NameBeatsKind(t *testing.T) {
	rules := succeeding(KindClassification, "rules", nil)
	llm := succeeding(KindClassification, "llm", nil)
	set := Set{rules, llm}

	selected, err := set.Select(Selector{Kind: KindClassification, Name: "LLM"})
	require.NoError(t, err)
	assert.Equal(t, "llm", selected.Name())
}

func TestSelect_KindMatch(t *testing.T) {
	collector := succeeding(KindCollection, "websearch", nil)
	analyzer := succeeding(KindAnalysis, "aggregate", nil)
	set := Set{collector, analyzer}

	selected, err := set.Select(Selector{Kind: KindAnalysis})
	require.NoError(t, err)
	assert.Equal(t, "aggregate", selected.Name())
}

func TestSelect_FallsBackToFirst(t *testing.T) {
	first := succeeding(KindCollection, "websearch", nil)
	set := Set{first, succeeding(KindAnalysis, "aggregate", nil)}

	selected, err := set.Select(Selector{Kind: KindVisualization, Name: "missing"})
	require.NoError(t, err)
	assert.Equal(t, "websearch", selected.Name())
}

func TestExecute_SucceedsFirstAttempt(t *testing.T) {
	executor := NewStageExecutor(time.Millisecond)
	cap := succeeding(KindAnalysis, "aggregate", "already a string")

	out, err := executor.Execute(context.Background(), Set{cap}, "input", Selector{}, 3)
	require.NoError(t, err)
	assert.Equal(t, "already a string", out)
	assert.Equal(t, 1, cap.calls)
}

func TestExecute_RetriesThenSucceeds(t *testing.T) {
	executor := NewStageExecutor(time.Millisecond)

	attempts := 0
	cap := &fakeCapability{
		kind: KindCollection,
		name: "flaky",
		execute: func(context.Context, string) (any, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("transient")
			}
			return []string{"ok"}, nil
		},
	}

	out, err := executor.Execute(context.Background(), Set{cap}, "", Selector{}, 2)
	require.NoError(t, err)
	assert.Equal(t, `["ok"]`, out)
	assert.Equal(t, 3, attempts)
}

func TestExecute_ExhaustsRetries(t *testing.T) {
	executor := NewStageExecutor(time.Millisecond)
	cap := failing(KindCollection, "broken", errors.New("upstream down"))

	_, err := executor.Execute(context.Background(), Set{cap}, "", Selector{}, 2)
	require.Error(t, err)

	var stageErr *StageExecutionError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "broken", stageErr.Capability)
	assert.Equal(t, 3, stageErr.Attempts)
	assert.ErrorContains(t, err, "upstream down")
	assert.Equal(t, 3, cap.calls)
}

func TestExecute_ZeroRetriesMeansOneAttempt(t *testing.T) {
	executor := NewStageExecutor(time.Millisecond)
	cap := failing(KindCollection, "broken", errors.New("nope"))

	_, err := executor.Execute(context.Background(), Set{cap}, "", Selector{}, 0)
	require.Error(t, err)
	assert.Equal(t, 1, cap.calls)
}

func TestExecute_ContextCancelledBetweenAttempts(t *testing.T) {
	executor := NewStageExecutor(time.Second)
	cap := failing(KindCollection, "slow", errors.New("transient"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := executor.Execute(ctx, Set{cap}, "", Selector{}, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, cap.calls)
}

func TestNormalize_Shapes(t *testing.T) {
	executor := NewStageExecutor(0)
	ctx := context.Background()

	for name, tc := range map[string]struct {
		out  any
		want string
	}{
		"nil":    {out: nil, want: ""},
		"string": {out: "pass through", want: "pass through"},
		"bytes":  {out: []byte("raw"), want: "raw"},
		"map":    {out: map[string]int{"a": 1}, want: `{"a":1}`},
		"slice":  {out: []int{1, 2}, want: "[1,2]"},
	} {
		t.Run(name, func(t *testing.T) {
			cap := succeeding(KindAnalysis, "shape", tc.out)
			got, err := executor.Execute(ctx, Set{cap}, "", Selector{}, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalize_Unserializable(t *testing.T) {
	executor := NewStageExecutor(0)
	cap := succeeding(KindAnalysis, "channel", make(chan int))

	out, err := executor.Execute(context.Background(), Set{cap}, "", Selector{}, 0)
	require.NoError(t, err)
	// Falls back to the formatted representation
	assert.Contains(t, out, "0x")
}
