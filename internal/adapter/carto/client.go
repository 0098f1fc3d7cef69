package carto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/water-globe-etl/internal/domain"
	"github.com/couchcryptid/water-globe-etl/internal/observability"
)

// Config describes the SQL API endpoint and the tables the query reads.
type Config struct {
	BaseURL         string
	APIKey          string
	CountiesTable   string
	PopulationTable string
	Timeout         time.Duration
	RowLimit        int // 0 means no LIMIT clause
}

// Client fetches county water-use rows from a CARTO SQL API endpoint.
// It implements pipeline.Fetcher.
type Client struct {
	cfg        Config
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a SQL API client.
func NewClient(cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Query returns the SQL sent to the API.
func (c *Client) Query() string {
	return BuildQuery(c.cfg.CountiesTable, c.cfg.PopulationTable, c.cfg.RowLimit)
}

// FetchRows runs the query once and returns the decoded rows. There is no retry.
func (c *Client) FetchRows(ctx context.Context) ([]domain.RawRow, error) {
	params := url.Values{"q": {c.Query()}}
	if c.cfg.APIKey != "" {
		params.Set("api_key", c.cfg.APIKey)
	}

	start := time.Now()
	rows, err := c.doRequest(ctx, c.cfg.BaseURL+"?"+params.Encode())
	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	c.metrics.FetchRequests.WithLabelValues("success").Inc()
	c.metrics.RowsFetched.Add(float64(len(rows)))
	c.logger.Debug("sql api rows fetched", "rows", len(rows), "duration", time.Since(start))
	return rows, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.RawRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sql api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("sql api error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return DecodeResponse(resp.Body)
}

// DecodeResponse decodes a SQL API JSON body, as returned by the API or saved
// to disk, into raw rows.
func DecodeResponse(r io.Reader) ([]domain.RawRow, error) {
	var sqlResp response
	if err := json.NewDecoder(r).Decode(&sqlResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(sqlResp.Error) > 0 {
		return nil, fmt.Errorf("sql api error: %s", strings.Join(sqlResp.Error, "; "))
	}
	if sqlResp.Rows == nil {
		return []domain.RawRow{}, nil
	}
	return sqlResp.Rows, nil
}

// SQL API response types.

type response struct {
	Rows      []domain.RawRow `json:"rows"`
	TotalRows int             `json:"total_rows"`
	Error     []string        `json:"error"`
}
