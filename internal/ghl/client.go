package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/leadbridge/ghl-adapter/internal/metrics"
	"github.com/leadbridge/ghl-adapter/internal/rate"
)

// rateKey scopes the limiter: all calls share the one upstream host budget.
const rateKey = "ghl"

// Client wraps low-level HTTP communication with the GoHighLevel API.
// Authentication is supplied per-request: callers hand in an already
// resolved bearer token, the client never touches session state. Responses
// are normalized into Envelopes; there are no automatic retries, a failed
// call is reported immediately.
type Client struct {
	logger  *zap.Logger
	http    *http.Client
	baseURL string
	rate    *rate.Manager
}

// NewClient constructs a new upstream API client.
func NewClient(logger *zap.Logger, baseURL string, rateMgr *rate.Manager, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		logger:  logger,
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		rate:    rateMgr,
	}
}

// Get performs an authenticated GET against path with the given query
// parameters. op labels the operation in metrics and error envelopes;
// version is the endpoint's API version header (empty to omit).
func (c *Client) Get(ctx context.Context, op, token, version, path string, query url.Values) *Envelope {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return transportFailure(op, err)
	}
	setHeaders(req, token, version)

	return c.do(ctx, op, req)
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, op, token, version, path string, body any) *Envelope {
	data, err := json.Marshal(body)
	if err != nil {
		return transportFailure(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return transportFailure(op, err)
	}
	setHeaders(req, token, version)
	req.Header.Set("Content-Type", "application/json")

	return c.do(ctx, op, req)
}

// do executes the request and classifies the outcome into an Envelope.
func (c *Client) do(ctx context.Context, op string, req *http.Request) *Envelope {
	if c.rate != nil {
		if err := c.rate.Wait(ctx, rateKey); err != nil {
			return transportFailure(op, err)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("ghl.http_failed",
			zap.String("op", op),
			zap.String("url", req.URL.String()),
			zap.Error(err))
		metrics.IncError("ghl_client", "transport")
		metrics.IncUpstreamRequest(op, req.Method, "transport_error")
		return transportFailure(op, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, _ := io.ReadAll(resp.Body)
	elapsed := time.Since(start)

	metrics.IncUpstreamRequest(op, req.Method, strconv.Itoa(resp.StatusCode))
	metrics.ObserveDuration(metrics.UpstreamRequestDuration, start, op, req.Method)

	if resp.StatusCode >= 300 {
		c.logger.Warn("ghl.upstream_error",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("url", req.URL.String()),
			zap.Duration("latency", elapsed))
		return &Envelope{
			Status: resp.StatusCode,
			Body: ErrorBody{
				Error:      fmt.Sprintf("ghl %s returned %d", op, resp.StatusCode),
				Detail:     string(body),
				StatusCode: resp.StatusCode,
			},
		}
	}

	if len(body) == 0 {
		return &Envelope{Status: resp.StatusCode, Body: map[string]any{}}
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Warn("ghl.decode_failed",
			zap.String("op", op),
			zap.String("url", req.URL.String()),
			zap.String("body", string(body)))
		return &Envelope{
			Status: http.StatusInternalServerError,
			Body: ErrorBody{
				Error: fmt.Sprintf("ghl %s returned a non-JSON response", op),
				Raw:   string(body),
			},
		}
	}

	c.logger.Debug("ghl.http_success",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))

	return &Envelope{Status: resp.StatusCode, Body: data}
}

// setHeaders sets the required headers for GoHighLevel API requests.
func setHeaders(req *http.Request, token, version string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if version != "" {
		req.Header.Set("Version", version)
	}
}

func transportFailure(op string, err error) *Envelope {
	return &Envelope{
		Status: http.StatusBadGateway,
		Body: ErrorBody{
			Error: fmt.Sprintf("ghl %s unreachable: %v", op, err),
		},
	}
}
