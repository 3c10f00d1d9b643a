package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/unclebandit/directmail-scheduler/internal/config"
	appErrors "github.com/unclebandit/directmail-scheduler/internal/errors"
)

const propertiesPath = "/v1/properties"

// RadarClient is a rate-limited client for the property data provider.
type RadarClient struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

type radarResponse struct {
	Results          []Record `json:"results"`
	ResultCount      int      `json:"resultCount"`
	TotalResultCount int      `json:"totalResultCount"`
}

// NewRadarClient builds a client from the source config. Timeout bounds every page request.
func NewRadarClient(cfg config.SourceConfig) *RadarClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 2
	}

	return &RadarClient{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(limit), 1),
	}
}

// FetchPage purchases one page of records matching filtersJSON.
func (c *RadarClient) FetchPage(ctx context.Context, filtersJSON string, start, limit int) (*Page, error) {
	return c.query(ctx, filtersJSON, start, limit, true)
}

// CountRecords asks for the total match count without purchasing records.
func (c *RadarClient) CountRecords(ctx context.Context, filtersJSON string) (int, error) {
	page, err := c.query(ctx, filtersJSON, 0, 1, false)
	if err != nil {
		return 0, err
	}
	if !page.Success {
		return 0, appErrors.New(appErrors.KindSourceUnavailable, "radar.count", "status "+strconv.Itoa(page.StatusCode))
	}
	return page.Total, nil
}

func (c *RadarClient) query(ctx context.Context, filtersJSON string, start, limit int, purchase bool) (*Page, error) {
	const op = "radar.fetch"

	if c.apiKey == "" {
		return nil, appErrors.New(appErrors.KindConfigMissing, op, "api key not configured")
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, appErrors.Wrap(appErrors.KindSourceUnavailable, op, fmt.Errorf("rate limiter: %w", err))
	}

	q := url.Values{}
	q.Set("Start", strconv.Itoa(start))
	q.Set("Limit", strconv.Itoa(limit))
	if purchase {
		q.Set("Purchase", "1")
	} else {
		q.Set("Purchase", "0")
	}

	body := strings.TrimSpace(filtersJSON)
	if body == "" {
		body = "{}"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+propertiesPath+"?"+q.Encode(), bytes.NewBufferString(body))
	if err != nil {
		return nil, appErrors.Wrap(appErrors.KindSourceUnavailable, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(appErrors.KindSourceUnavailable, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &Page{Success: false, StatusCode: resp.StatusCode}, nil
	}

	var parsed radarResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, appErrors.Wrap(appErrors.KindSourceUnavailable, op, fmt.Errorf("decode response: %w", err))
	}

	return &Page{
		Records:    parsed.Results,
		Total:      parsed.TotalResultCount,
		Success:    true,
		StatusCode: resp.StatusCode,
	}, nil
}

var (
	_ RecordSource = (*RadarClient)(nil)
	_ Counter      = (*RadarClient)(nil)
)
