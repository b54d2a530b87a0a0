package quranapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/escalopa/quran-navigator/internal/domain"
	"github.com/escalopa/quran-navigator/internal/observe"
)

const (
	defaultBaseURL      = "https://api.quran.com/api/v4"
	defaultAudioBaseURL = "https://verses.quran.com/"
	defaultTranslation  = 131
	maxErrorBody        = 512
)

// Option configures a [Client].
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIKey sends key in the x-api-key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithAudioBaseURL resolves relative clip paths against base.
func WithAudioBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.audioBase = strings.TrimRight(base, "/") + "/"
		}
	}
}

// WithBackupAudioURL sets the mirror template used for backup clip URLs. It
// takes the reciter id and the six digit verse code.
func WithBackupAudioURL(tmpl string) Option {
	return func(c *Client) { c.backupTmpl = tmpl }
}

// WithTranslation sets the translation resource attached to verses.
func WithTranslation(id int) Option {
	return func(c *Client) {
		if id > 0 {
			c.translation = id
		}
	}
}

func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Client talks to the Quran.com v4 API. It implements domain.SearchEndpoint,
// domain.ClipSource, domain.VerseLoader and domain.Fetcher.
type Client struct {
	baseURL     string
	apiKey      string
	audioBase   string
	backupTmpl  string
	translation int
	httpClient  *http.Client
	metrics     *observe.Metrics
	log         *slog.Logger

	chapters singleflight.Group
	mu       sync.RWMutex
	clips    map[chapterKey]map[domain.VerseRef]string
}

type chapterKey struct {
	reciter int
	surah   int
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		audioBase:   defaultAudioBaseURL,
		translation: defaultTranslation,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		metrics: observe.DefaultMetrics(),
		log:     slog.Default(),
		clips:   make(map[chapterKey]map[domain.VerseRef]string),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("component", "quranapi")
	return c
}

// statusError is a non-200 response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.code, e.body)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

// get performs a GET and returns the body of a 200 response. Server errors
// and transport failures are retried once.
func (c *Client) get(ctx context.Context, endpoint, rawURL string, apiKey bool) ([]byte, error) {
	var lastErr error
	for attempt := range 2 {
		body, err := c.getOnce(ctx, rawURL, apiKey)
		if err == nil {
			c.metrics.RecordProviderRequest(ctx, endpoint, "ok")
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			break
		}
		c.log.Debug("retrying request", "endpoint", endpoint, "attempt", attempt+1, "error", err)
	}
	c.metrics.RecordProviderRequest(ctx, endpoint, "error")
	return nil, lastErr
}

func (c *Client) getOnce(ctx context.Context, rawURL string, apiKey bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if apiKey && c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	body, err := c.get(ctx, endpoint, u, true)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
