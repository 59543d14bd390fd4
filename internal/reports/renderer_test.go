package reports

import (
	"os"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestRenderer_OutputPathIsDeterministic(t *testing.T) {
	renderer, err := NewRenderer(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)

	first := renderer.OutputPath("job_abc")
	assert.Equal(t, first, renderer.OutputPath("job_abc"))
	assert.Contains(t, first, "report_job_abc.pdf")
	assert.NotEqual(t, first, renderer.OutputPath("job_def"))
}

func TestRenderer_SkipsChartWithMismatchedSeries(t *testing.T) {
	renderer, err := NewRenderer(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)

	report := testReport("solar patents")
	report.Visualizations["broken"] = `{"kind":"bar","series":[{"name":"s","labels":["only-one"],"values":[1,2,3]}]}`

	path, err := renderer.Render(report, "job_mismatch")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 14))
	assert.Equal(t, "exactly-14-chs", truncate("exactly-14-chs", 14))
	assert.Equal(t, "a much long...", truncate("a much longer label", 14))
	assert.Equal(t, "abc", truncate("abcdef", 3))

	// Multi-byte text is cut on rune boundaries, never mid-character
	for _, s := range []string{
		"Concessão de patente para célula solar",
		"Depósito de desenho industrial",
		"日本特許庁による特許付与の発表",
	} {
		for max := 1; max <= 20; max++ {
			out := truncate(s, max)
			assert.True(t, utf8.ValidString(out), "truncate(%q, %d) = %q", s, max, out)
		}
	}
}
