package openfoodfacts

import (
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

	"github.com/chococrunch/pipeline/internal/domain"
	"github.com/chococrunch/pipeline/pkg/logger"
)

// searchFields limits the payload to the fields the mapper reads
var searchFields = []string{
	"code",
	"product_name",
	"brands",
	"nutriments",
	"nova_group",
	"nutriscore_score",
	"nutrition_grades",
}

// Config holds catalog client settings
type Config struct {
	BaseURL      string
	SearchTerm   string
	PageSize     int
	Timeout      time.Duration
	RequestDelay time.Duration
	UserAgent    string
}

// Client pages through the Open Food Facts search API
type Client struct {
	httpClient  *http.Client
	baseURL     string
	searchTerm  string
	pageSize    int
	userAgent   string
	rateLimiter *rate.Limiter
	log         *logger.Logger
}

// NewClient creates a new Open Food Facts client.
// Consecutive requests are spaced by at least cfg.RequestDelay.
func NewClient(cfg Config, log *logger.Logger) *Client {
	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "ChocoCrunch/1.0"
	}

	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		searchTerm:  cfg.SearchTerm,
		pageSize:    cfg.PageSize,
		userAgent:   userAgent,
		rateLimiter: rate.NewLimiter(limit, 1),
		log:         log.WithField("component", "openfoodfacts"),
	}
}

// PageSize returns the number of products requested per page
func (c *Client) PageSize() int {
	return c.pageSize
}

// searchURL builds the search request URL for a page
func (c *Client) searchURL(page int) string {
	params := url.Values{}
	params.Add("search_terms", c.searchTerm)
	params.Add("search_simple", "1")
	params.Add("action", "process")
	params.Add("json", "1")
	params.Add("page_size", strconv.Itoa(c.pageSize))
	params.Add("page", strconv.Itoa(page))
	params.Add("fields", strings.Join(searchFields, ","))

	return fmt.Sprintf("%s/cgi/search.pl?%s", c.baseURL, params.Encode())
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogFailure, err)
	}

	return resp, nil
}

// FetchPage retrieves one page of search results.
// A page with no products is returned as an empty CatalogPage, not an error.
func (c *Client) FetchPage(ctx context.Context, page int) (*domain.CatalogPage, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	resp, err := c.doRequest(ctx, c.searchURL(page))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrCatalogFailure, resp.StatusCode, string(body))
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()

	var searchResp searchResponse
	if err := decoder.Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode page %d: %v", domain.ErrCatalogFailure, page, err)
	}

	products := make([]domain.ProductRecord, 0, len(searchResp.Products))
	for _, p := range searchResp.Products {
		products = append(products, MapToProductRecord(p))
	}

	c.log.WithFields(map[string]interface{}{
		"page":     page,
		"products": len(products),
	}).Debug("fetched catalog page")

	return &domain.CatalogPage{Page: page, Products: products}, nil
}
