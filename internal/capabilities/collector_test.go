package capabilities

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/common"
	"github.com/ternarybob/inquiro/internal/pipeline"
)

// fakeRawStore dedupes by content like the real storage layer does.
type fakeRawStore struct {
	byContent map[string]int64
	inserts   int
}

func newFakeRawStore() *fakeRawStore {
	return &fakeRawStore{byContent: make(map[string]int64)}
}

func (f *fakeRawStore) InsertRaw(_ context.Context, _ int64, _, content string) (int64, error) {
	if id, ok := f.byContent[content]; ok {
		return id, nil
	}
	f.inserts++
	id := int64(f.inserts)
	f.byContent[content] = id
	return id, nil
}

func collectorConfig(endpoint string) *common.CollectorConfig {
	return &common.CollectorConfig{
		Sources:        []string{"websearch"},
		SearchEndpoint: endpoint,
		SearchAPIKey:   "test-key",
		RequestTimeout: "5s",
		RatePerSecond:  100,
		Burst:          10,
		MaxResults:     20,
	}
}

func collectionInput(t *testing.T, queryID int64, query string) string {
	t.Helper()
	data, err := json.Marshal(pipeline.CollectionInput{Query: query, SearchQueryID: queryID})
	require.NoError(t, err)
	return string(data)
}

func TestWebSearchCollector_DeduplicatesResults(t *testing.T) {
	// Five hits, one an exact duplicate
	hits := []map[string]string{
		{"title": "Patent A", "link": "https://a", "snippet": "first", "date": "2023-01-01"},
		{"title": "Patent B", "link": "https://b", "snippet": "second", "date": "2023-02-01"},
		{"title": "Patent C", "link": "https://c", "snippet": "third", "date": "2023-03-01"},
		{"title": "Patent A", "link": "https://a", "snippet": "first", "date": "2023-01-01"},
		{"title": "Patent D", "link": "https://d", "snippet": "fourth", "date": "2023-04-01"},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "solar panels", body["q"])

		json.NewEncoder(w).Encode(map[string]any{"organic": hits})
	}))
	defer server.Close()

	store := newFakeRawStore()
	collector := NewWebSearchCollector(collectorConfig(server.URL), store, arbor.NewLogger())

	out, err := collector.Execute(context.Background(), collectionInput(t, 3, "solar panels"))
	require.NoError(t, err)

	items, ok := out.([]RawItem)
	require.True(t, ok)
	require.Len(t, items, 4)
	assert.Equal(t, 4, store.inserts)

	// Each emitted item carries its persisted row id
	seen := make(map[int64]bool)
	for _, item := range items {
		assert.Greater(t, item.DBRawID, int64(0))
		assert.False(t, seen[item.DBRawID])
		seen[item.DBRawID] = true
	}
}

func TestWebSearchCollector_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	collector := NewWebSearchCollector(collectorConfig(server.URL), newFakeRawStore(), arbor.NewLogger())

	_, err := collector.Execute(context.Background(), collectionInput(t, 1, "anything"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "status 502")
}

func TestWebSearchCollector_MissingConfig(t *testing.T) {
	cfg := collectorConfig("")
	collector := NewWebSearchCollector(cfg, newFakeRawStore(), arbor.NewLogger())

	_, err := collector.Execute(context.Background(), collectionInput(t, 1, "anything"))
	assert.ErrorContains(t, err, "endpoint is not configured")
}

func TestRegisterCollector_ParsesResultTable(t *testing.T) {
	page := `<html><body><table class="results">
		<tr><th>header row</th></tr>
		<tr>
			<td class="title">Widget patent <a href="/record/1">view</a></td>
			<td class="applicant">Acme Corp</td>
			<td class="date">2022-07-15</td>
			<td class="abstract">A widget with improved grip.</td>
		</tr>
		<tr>
			<td class="title">Gadget design</td>
			<td class="applicant">Widgets Ltd</td>
			<td class="date">2023-02-02</td>
			<td class="abstract">Ornamental gadget design.</td>
		</tr>
	</table></body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "widgets", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer server.Close()

	cfg := collectorConfig("")
	cfg.RegisterURL = server.URL
	store := newFakeRawStore()
	collector := NewRegisterCollector(cfg, store, arbor.NewLogger())

	out, err := collector.Execute(context.Background(), collectionInput(t, 9, "widgets"))
	require.NoError(t, err)

	items, ok := out.([]RawItem)
	require.True(t, ok)
	require.Len(t, items, 2)

	assert.Equal(t, "Acme Corp", items[0].Applicant)
	assert.Equal(t, "2022-07-15", items[0].FilingDate)
	assert.Equal(t, "/record/1", items[0].URL)
	assert.Equal(t, "register", items[0].Source)
	assert.Equal(t, "Gadget design", items[1].Title)
}

func TestCanonicalJSON_Deterministic(t *testing.T) {
	a := RawItem{Title: "T", Applicant: "A", Source: "websearch"}
	b := RawItem{Source: "websearch", Applicant: "A", Title: "T"}

	first, err := canonicalJSON(a)
	require.NoError(t, err)
	second, err := canonicalJSON(b)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
