package inies

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aeginies/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultSearchPath is the INIES product search endpoint
const DefaultSearchPath = "/api/SearchProduits"

// searchPayload is the "no filter" query: every dimension set to "any", archives excluded
type searchPayload struct {
	TypeDeclaration int  `json:"typeDeclaration"`
	Cov             int  `json:"cov"`
	OnlineDate      int  `json:"onlineDate"`
	LieuProduction  int  `json:"lieuProduction"`
	PerfUF          int  `json:"perfUF"`
	Norme           int  `json:"norme"`
	OnlyArchive     bool `json:"onlyArchive"`
}

// ClientConfig holds INIES client settings
type ClientConfig struct {
	BaseURL    string
	SearchPath string
	UserAgent  string
	Timeout    time.Duration
	// RequestsPerSecond bounds calls to the search endpoint; 0 disables pacing
	RequestsPerSecond float64
}

// Client handles communication with the INIES search API
type Client struct {
	httpClient  *http.Client
	baseURL     string
	searchPath  string
	userAgent   string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
	debug       bool
}

// NewClient creates a new INIES API client
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	searchPath := cfg.SearchPath
	if searchPath == "" {
		searchPath = DefaultSearchPath
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "inies-catalogue/1.0"
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		searchPath:  searchPath,
		userAgent:   userAgent,
		rateLimiter: limiter,
		logger:      logger.Named("inies"),
	}
}

// SetDebug enables or disables verbose response logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// FetchAllIdentifiers returns every published product identifier.
// A single request is made; failures are not retried.
func (c *Client) FetchAllIdentifiers(ctx context.Context) ([]string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	body, err := json.Marshal(searchPayload{})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search payload: %w", err)
	}

	endpoint := c.baseURL + c.searchPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("search request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrRemoteUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("search returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(raw), 200)))
		return nil, fmt.Errorf("%w: status %d %s", domain.ErrRemoteUnavailable, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if c.debug {
		c.logger.Debug("search response", zap.Int("bytes", len(raw)), zap.String("head", truncate(string(raw), 200)))
	}

	ids, err := decodeIdentifiers(raw)
	if err != nil {
		return nil, err
	}

	c.logger.Info("identifiers discovered", zap.Int("count", len(ids)))
	return ids, nil
}

// decodeIdentifiers parses a flat JSON array of numbers or strings.
// Numbers keep their literal text so that "12345" and 12345 compare equal.
func decodeIdentifiers(raw []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var items []interface{}
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array: %v", domain.ErrMalformedResponse, err)
	}
	if items == nil {
		return nil, fmt.Errorf("%w: expected a JSON array, got null", domain.ErrMalformedResponse)
	}

	ids := make([]string, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case json.Number:
			ids = append(ids, v.String())
		case string:
			ids = append(ids, v)
		default:
			return nil, fmt.Errorf("%w: element %d is %T, want number or string", domain.ErrMalformedResponse, i, item)
		}
	}
	return ids, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
