package remote

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

	"github.com/roach88/fieldcheck/internal/asset"
	"github.com/roach88/fieldcheck/internal/failure"
)

// DefaultTimeout bounds each remote call.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Client talks to the asset service over HTTP.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	token   string
}

var _ Service = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a Client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// envelope is the service's standard response body.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type searchData struct {
	Items []asset.ResolvedAsset `json:"items"`
}

// GetAsset implements Service via GET /assets/{id}.
func (c *Client) GetAsset(ctx context.Context, id string) (asset.ResolvedAsset, bool, error) {
	const op = "remote.get_asset"

	resp, err := c.do(ctx, op, http.MethodGet, "/assets/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return asset.ResolvedAsset{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return asset.ResolvedAsset{}, false, nil
	}
	env, err := decodeEnvelope(op, resp)
	if err != nil {
		return asset.ResolvedAsset{}, false, err
	}
	if !env.Success || len(env.Data) == 0 || string(env.Data) == "null" {
		return asset.ResolvedAsset{}, false, nil
	}

	var a asset.ResolvedAsset
	if err := json.Unmarshal(env.Data, &a); err != nil {
		return asset.ResolvedAsset{}, false, failure.Transient(op, resp.StatusCode, fmt.Errorf("decode asset: %w", err))
	}
	if !a.Valid() {
		return asset.ResolvedAsset{}, false, nil
	}
	return a.Normalized(), true, nil
}

// SearchAssets implements Service via GET /assets?search=&limit=.
func (c *Client) SearchAssets(ctx context.Context, query string, limit int) ([]asset.ResolvedAsset, error) {
	const op = "remote.search_assets"

	q := url.Values{}
	q.Set("search", query)
	q.Set("limit", strconv.Itoa(limit))

	resp, err := c.do(ctx, op, http.MethodGet, "/assets", q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(op, resp)
	if err != nil {
		return nil, err
	}
	if !env.Success || len(env.Data) == 0 {
		return []asset.ResolvedAsset{}, nil
	}

	var data searchData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, failure.Transient(op, resp.StatusCode, fmt.Errorf("decode search: %w", err))
	}

	out := make([]asset.ResolvedAsset, 0, len(data.Items))
	for _, a := range data.Items {
		if a.Valid() {
			out = append(out, a.Normalized())
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SubmitCheck implements Service via POST /checks.
func (c *Client) SubmitCheck(ctx context.Context, req asset.CheckRequest) error {
	const op = "remote.submit_check"

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.do(ctx, op, http.MethodPost, "/checks", nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(op, resp)
	if err != nil {
		return err
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "check rejected by server"
		}
		return failure.ValidationRejected(op, resp.StatusCode, msg)
	}
	return nil
}

// do sends one request. Transport errors come back as TRANSIENT_FAILURE.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body []byte) (*http.Response, error) {
	// path arrives escaped
	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + path
	unescaped, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u.Path = unescaped
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, failure.Transient(op, 0, err)
	}
	return resp, nil
}

// retryableClientStatus lists the 4xx codes that say "try later" rather than
// "this request is wrong".
var retryableClientStatus = map[int]bool{
	http.StatusRequestTimeout:  true,
	http.StatusTooEarly:        true,
	http.StatusTooManyRequests: true,
}

// decodeEnvelope classifies the status code and decodes a 2xx body.
// 4xx becomes VALIDATION_REJECTED with the server's message, except the
// retryable ones; anything else outside 2xx becomes TRANSIENT_FAILURE.
func decodeEnvelope(op string, resp *http.Response) (envelope, error) {
	var env envelope

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
			return env, failure.Transient(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
		}
		return env, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500 && !retryableClientStatus[resp.StatusCode]:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(data, &env)
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return env, failure.ValidationRejected(op, resp.StatusCode, msg)

	default:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return env, failure.Transient(op, resp.StatusCode, nil)
	}
}
