package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/common"
	"github.com/ternarybob/inquiro/internal/pipeline"
	"golang.org/x/time/rate"
)

// RegisterCollector scrapes an HTML patent-register search page. It covers
// offices that expose no JSON API: the result table is parsed row by row and
// each entry is persisted like any other collected item.
type RegisterCollector struct {
	baseURL    string
	maxResults int
	client     *http.Client
	limiter    *rate.Limiter
	store      RawStore
	logger     arbor.ILogger
}

// NewRegisterCollector creates an HTML register collection capability.
func NewRegisterCollector(cfg *common.CollectorConfig, store RawStore, logger arbor.ILogger) *RegisterCollector {
	return &RegisterCollector{
		baseURL:    cfg.RegisterURL,
		maxResults: cfg.MaxResults,
		client:     &http.Client{Timeout: common.ParseDuration(cfg.RequestTimeout, 0)},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		store:      store,
		logger:     logger,
	}
}

func (c *RegisterCollector) Kind() pipeline.Kind { return pipeline.KindCollection }
func (c *RegisterCollector) Name() string        { return "register" }

// Execute fetches the register search page for the query and returns the
// encoded raw item list.
func (c *RegisterCollector) Execute(ctx context.Context, input string) (any, error) {
	var in pipeline.CollectionInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return nil, fmt.Errorf("invalid collection input: %w", err)
	}

	if c.baseURL == "" {
		return nil, fmt.Errorf("register URL is not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	searchURL := fmt.Sprintf("%s?q=%s", strings.TrimRight(c.baseURL, "/"), url.QueryEscape(in.Query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build register request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("register request failed: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse register page: %w", err)
	}

	var items []RawItem
	seen := make(map[int64]bool)
	doc.Find("table.results tr, .result-item").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Find(".title, td.title").First().Text())
		if title == "" {
			return true // header rows and separators
		}

		item := RawItem{
			Source:     "register",
			Title:      title,
			Applicant:  strings.TrimSpace(sel.Find(".applicant, td.applicant").First().Text()),
			FilingDate: strings.TrimSpace(sel.Find(".date, td.date").First().Text()),
			Abstract:   strings.TrimSpace(sel.Find(".abstract, td.abstract").First().Text()),
		}
		if href, ok := sel.Find("a").First().Attr("href"); ok {
			item.URL = href
		}

		id, err := PersistRaw(ctx, c.store, in.SearchQueryID, item)
		if err != nil {
			c.logger.Warn().Err(err).Str("title", item.Title).Msg("Failed to persist raw result, skipping")
			return true
		}
		if seen[id] {
			return true
		}
		seen[id] = true
		item.DBRawID = id

		items = append(items, item)
		return len(items) < c.maxResults
	})

	c.logger.Debug().Int("items", len(items)).Str("query", in.Query).Msg("Register collection finished")
	return items, nil
}
