package presidio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"resty.dev/v3"
)

var (
	// ErrUnavailable means the analyzer service could not be reached or
	// reported itself unhealthy.
	ErrUnavailable = errors.New("presidio analyzer unavailable")
	// ErrMalformedResponse means the analyzer answered with something that
	// is not a valid list of entity spans.
	ErrMalformedResponse = errors.New("malformed presidio response")
)

// Entity is one recognizer result. Start and End are code-point offsets
// into the analyzed text, End exclusive.
type Entity struct {
	Type  string  `json:"entity_type"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

// Recognizer is the named-entity engine behind the PII layer.
type Recognizer interface {
	Analyze(ctx context.Context, text, language string) ([]Entity, error)
	// ConcurrentSafe reports whether Analyze may be called from several
	// goroutines at once. Callers serialize recognizers that return false.
	ConcurrentSafe() bool
}

// ClientOptions configures the HTTP analyzer client.
type ClientOptions struct {
	Endpoint string
	Timeout  time.Duration
}

// Client talks to a Presidio Analyzer service.
type Client struct {
	http *resty.Client
}

// NewClient builds a client and checks GET /health. A service that is down
// is reported as ErrUnavailable so the caller can drop the layer.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	endpoint := strings.TrimRight(opts.Endpoint, "/")
	if endpoint == "" {
		return nil, fmt.Errorf("%w: no endpoint configured", ErrUnavailable)
	}
	hc := resty.New().
		SetBaseURL(endpoint).
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		hc.SetTimeout(opts.Timeout)
	}

	c := &Client{http: hc}
	if err := c.health(ctx); err != nil {
		_ = hc.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) health(ctx context.Context) error {
	res, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res.IsError() {
		return fmt.Errorf("%w: health check returned %d", ErrUnavailable, res.StatusCode())
	}
	return nil
}

type analyzeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Analyze posts text to /analyze.
func (c *Client) Analyze(ctx context.Context, text, language string) ([]Entity, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(analyzeRequest{Text: text, Language: language}).
		Post("/analyze")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: analyze returned %d: %s", ErrUnavailable, res.StatusCode(), strings.TrimSpace(res.String()))
	}

	var out []Entity
	if err := json.Unmarshal([]byte(res.String()), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return out, nil
}

// ConcurrentSafe is true: the analyzer service holds no per-request state.
func (c *Client) ConcurrentSafe() bool { return true }

// Close releases idle connections.
func (c *Client) Close() error { return c.http.Close() }
