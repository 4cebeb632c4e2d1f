// Package lookup queries the knowledge-base instance endpoint.
package lookup

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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"instancesearch/internal/domain"
)

// Header names understood by Okapi
const (
	TenantHeader    = "X-Okapi-Tenant"
	RequestIDHeader = "X-Okapi-Request-Id"
)

// InstancePath is the lookup endpoint relative to the base URL
const InstancePath = "/knowledge-base/instance"

const maxErrorBody = 512

// DefaultMaxResponseSize caps how much of a lookup response is read
const DefaultMaxResponseSize = 32 << 20

// StatusError is returned when the lookup answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("lookup returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("lookup returned status %d: %s", e.StatusCode, e.Body)
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxResponseSize caps the response body. Non-positive values keep the default.
func WithMaxResponseSize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithTimeout bounds each request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client issues instance lookups for a single tenant
type Client struct {
	baseURL string
	tenant  string
	http    *http.Client
	logger  *zap.Logger
	timeout time.Duration
	maxBody int64
}

// NewClient creates a lookup client
func NewClient(baseURL, tenant string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", baseURL)
	}
	if tenant == "" {
		return nil, fmt.Errorf("tenant is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tenant:  tenant,
		http:    http.DefaultClient,
		logger:  zap.NewNop(),
		maxBody: DefaultMaxResponseSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SearchURL returns the lookup URL for filter
func (c *Client) SearchURL(filter string) string {
	q := url.Values{}
	q.Set("partialTitle", filter)
	return c.baseURL + InstancePath + "?" + q.Encode()
}

// Search issues one GET for filter and returns the decoded instances
func (c *Client) Search(ctx context.Context, filter string) ([]domain.Instance, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	requestID := uuid.NewString()
	target := c.SearchURL(filter)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(TenantHeader, c.tenant)
	req.Header.Set(RequestIDHeader, requestID)

	logger := c.logger.With(zap.String("request_id", requestID), zap.String("filter", filter))
	logger.Debug("Lookup request", zap.String("url", target))
	started := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup response: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("lookup response exceeds %d bytes", c.maxBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := strings.TrimSpace(string(body))
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: excerpt}
	}

	instances, unparsed, err := decodeInstances(body)
	if err != nil {
		return nil, err
	}
	if unparsed > 0 {
		logger.Debug("Instance ids are not numeric and are shown blank", zap.Int("count", unparsed))
	}

	logger.Debug("Lookup response",
		zap.Int("status", resp.StatusCode),
		zap.Int("instances", len(instances)),
		zap.Duration("elapsed", time.Since(started)))
	return instances, nil
}

// wireInstance is an instance-like record as it arrives from the server
type wireInstance struct {
	ID    any    `json:"id"`
	Title string `json:"title"`
}

// envelope is the collection wrapper used by the storage module
type envelope struct {
	Instances    []wireInstance `json:"instances"`
	TotalRecords int            `json:"totalRecords"`
}

// DecodeInstances parses either a bare JSON array of records or an
// {"instances": [...]} envelope. Ids that are not numeric, such as the UUIDs
// of storage records, decode as 0.
func DecodeInstances(body []byte) ([]domain.Instance, error) {
	instances, _, err := decodeInstances(body)
	return instances, err
}

// decodeInstances also reports how many present ids could not be parsed
func decodeInstances(body []byte) ([]domain.Instance, int, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, 0, fmt.Errorf("failed to parse lookup response: empty body")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var records []wireInstance
	if trimmed[0] == '{' {
		var env envelope
		if err := dec.Decode(&env); err != nil {
			return nil, 0, fmt.Errorf("failed to parse lookup response: %w", err)
		}
		records = env.Instances
	} else {
		if err := dec.Decode(&records); err != nil {
			return nil, 0, fmt.Errorf("failed to parse lookup response: %w", err)
		}
	}

	instances := make([]domain.Instance, 0, len(records))
	unparsed := 0
	for _, r := range records {
		id, ok := parseID(r.ID)
		if !ok && r.ID != nil {
			unparsed++
		}
		instances = append(instances, domain.Instance{ID: id, Title: r.Title})
	}
	return instances, unparsed, nil
}

// parseID accepts numeric ids and numeric strings; anything else is 0
func parseID(v any) (int, bool) {
	switch id := v.(type) {
	case json.Number:
		if n, err := id.Int64(); err == nil {
			return int(n), true
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(id)); err == nil {
			return n, true
		}
	}
	return 0, false
}
