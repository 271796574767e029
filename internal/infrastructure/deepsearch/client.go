package deepsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"NewsRAG/internal/domain"
	"NewsRAG/internal/ports"
)

const (
	// DefaultBaseURL is the DeepSearch global articles endpoint.
	DefaultBaseURL = "https://api-v2.deepsearch.com/v1/global-articles"
	// DefaultPageSize is the number of items requested per page.
	DefaultPageSize = 50
	// DefaultPageTimeout bounds a single page request.
	DefaultPageTimeout = 10 * time.Second
)

// ErrUnexpectedStatus is returned when the API answers with a non-200 status.
var ErrUnexpectedStatus = errors.New("deepsearch returned unexpected status")

// Client pages through the DeepSearch article search API.
type Client struct {
	baseURL     string
	apiKey      string
	pageSize    int
	pageTimeout time.Duration
	client      *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
}

var _ ports.NewsSource = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithPageSize overrides the page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithPageTimeout overrides the per-page timeout.
func WithPageTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pageTimeout = d
		}
	}
}

// WithRateLimit caps requests per second; zero or less disables throttling.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// NewClient builds a DeepSearch client.
func NewClient(apiKey string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		apiKey:      apiKey,
		pageSize:    DefaultPageSize,
		pageTimeout: DefaultPageTimeout,
		client:      &http.Client{},
		limiter:     rate.NewLimiter(rate.Limit(5), 1),
		logger:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchArticles requests pages 1..PageLimit until a short page is returned.
// When a page fails, the articles gathered so far are returned along with the error.
func (c *Client) FetchArticles(ctx context.Context, req ports.FetchRequest) ([]domain.Article, error) {
	pageLimit := req.PageLimit
	if pageLimit < 1 {
		pageLimit = 1
	}

	var all []domain.Article
	for page := 1; page <= pageLimit; page++ {
		pageURL, err := buildPageURL(c.baseURL, req, page, c.pageSize, c.apiKey)
		if err != nil {
			return all, err
		}

		c.debug("request page", "keyword", req.Keyword, "page", page)
		items, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			return all, fmt.Errorf("keyword %s page %d: %w", req.Keyword, page, err)
		}
		all = append(all, items...)
		c.debug("page fetched", "keyword", req.Keyword, "page", page, "items", len(items))

		if len(items) < c.pageSize {
			c.debug("last page reached", "keyword", req.Keyword, "page", page)
			break
		}
	}

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) ([]domain.Article, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.pageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsRAG/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	var payload pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}

	return payload.items(), nil
}

type pageResponse struct {
	Data     []rawArticle `json:"data"`
	Articles []rawArticle `json:"articles"`
}

func (p pageResponse) items() []domain.Article {
	raw := p.Data
	if len(raw) == 0 {
		raw = p.Articles
	}
	out := make([]domain.Article, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.toDomain())
	}
	return out
}

// rawArticle mirrors the API item; the id may arrive as a string or a number.
type rawArticle struct {
	ID          json.RawMessage `json:"id"`
	Title       *string         `json:"title"`
	TitleKO     *string         `json:"title_ko"`
	Summary     *string         `json:"summary"`
	SummaryKO   *string         `json:"summary_ko"`
	Reason      *string         `json:"reason"`
	Publisher   *string         `json:"publisher"`
	PublishedAt *string         `json:"published_at"`
	Importance  *string         `json:"importance"`
}

func (r rawArticle) toDomain() domain.Article {
	return domain.Article{
		ID:               rawID(r.ID),
		Title:            deref(r.Title),
		TitleLocalized:   deref(r.TitleKO),
		Summary:          deref(r.Summary),
		SummaryLocalized: deref(r.SummaryKO),
		Reason:           deref(r.Reason),
		Publisher:        deref(r.Publisher),
		PublishedAt:      deref(r.PublishedAt),
		Importance:       deref(r.Importance),
	}
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func buildPageURL(base string, req ports.FetchRequest, page, pageSize int, apiKey string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("keyword", req.Keyword)
	query.Set("date_from", req.DateFrom)
	query.Set("date_to", req.DateTo)
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))
	if apiKey != "" {
		query.Set("api_key", apiKey)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
