package capabilities

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/common"
	"github.com/ternarybob/inquiro/internal/pipeline"
	"golang.org/x/time/rate"
)

// WebSearchCollector retrieves intellectual-property records from a
// Serper-style web-search API. Each hit is persisted idempotently and emitted
// as a RawItem tagged with its database id.
type WebSearchCollector struct {
	endpoint   string
	apiKey     string
	maxResults int
	client     *http.Client
	limiter    *rate.Limiter
	store      RawStore
	logger     arbor.ILogger
}

// searchResponse is the subset of the search API response the collector uses.
type searchResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic"`
}

// NewWebSearchCollector creates a web-search collection capability.
func NewWebSearchCollector(cfg *common.CollectorConfig, store RawStore, logger arbor.ILogger) *WebSearchCollector {
	return &WebSearchCollector{
		endpoint:   cfg.SearchEndpoint,
		apiKey:     cfg.SearchAPIKey,
		maxResults: cfg.MaxResults,
		client:     &http.Client{Timeout: common.ParseDuration(cfg.RequestTimeout, 0)},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		store:      store,
		logger:     logger,
	}
}

func (c *WebSearchCollector) Kind() pipeline.Kind { return pipeline.KindCollection }
func (c *WebSearchCollector) Name() string        { return "websearch" }

// Execute queries the search API and returns the encoded raw item list.
func (c *WebSearchCollector) Execute(ctx context.Context, input string) (any, error) {
	var in pipeline.CollectionInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return nil, fmt.Errorf("invalid collection input: %w", err)
	}

	if c.endpoint == "" {
		return nil, fmt.Errorf("web search endpoint is not configured")
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("web search API key is not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{"q": in.Query, "num": c.maxResults})
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed: status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	items := make([]RawItem, 0, len(parsed.Organic))
	seen := make(map[int64]bool)
	for _, hit := range parsed.Organic {
		item := RawItem{
			Source:     "websearch",
			Title:      hit.Title,
			Abstract:   hit.Snippet,
			FilingDate: hit.Date,
			URL:        hit.Link,
		}

		id, err := PersistRaw(ctx, c.store, in.SearchQueryID, item)
		if err != nil {
			c.logger.Warn().Err(err).Str("title", item.Title).Msg("Failed to persist raw result, skipping")
			continue
		}
		// Idempotent ingestion maps duplicate content to the same row;
		// the emitted list carries each record once.
		if seen[id] {
			continue
		}
		seen[id] = true

		item.DBRawID = id
		items = append(items, item)
	}

	c.logger.Debug().Int("items", len(items)).Str("query", in.Query).Msg("Web search collection finished")
	return items, nil
}

// PersistRaw stores one collected item and returns its row id. The content
// hash is computed over a canonical encoding (sorted keys, id field zeroed)
// so identical content from repeated collection dedupes to one row.
func PersistRaw(ctx context.Context, store RawStore, queryID int64, item RawItem) (int64, error) {
	canonical := item
	canonical.DBRawID = 0

	content, err := canonicalJSON(canonical)
	if err != nil {
		return 0, fmt.Errorf("failed to encode raw item: %w", err)
	}

	return store.InsertRaw(ctx, queryID, item.Source, content)
}

// canonicalJSON produces a deterministic encoding: marshal, decode to a map,
// re-marshal (encoding/json writes map keys in sorted order).
func canonicalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return "", err
	}

	out, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
