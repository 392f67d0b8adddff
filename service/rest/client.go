// Package rest implements service.RestClient on the Kratos HTTP transport.
package rest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	khttp "github.com/go-kratos/kratos/v2/transport/http"

	"github.com/go-lynx/vectorium/service"
)

// Version is the advertised service version.
const Version = "1.0.0"

// DefaultTimeout applies until SetTimeout is called.
const DefaultTimeout = 10 * time.Second

// Client is a small REST client shared by plugins through the service
// container. Non-2xx responses are returned as responses, not errors; an
// error means no response was obtained.
type Client struct {
	cc *khttp.Client

	mu      sync.RWMutex
	baseURL string
	headers map[string]string
	bearer  string
	timeout time.Duration
}

// New builds a Client. opts are passed to the Kratos transport.
func New(ctx context.Context, opts ...khttp.ClientOption) (*Client, error) {
	base := []khttp.ClientOption{
		khttp.WithTimeout(0),
		khttp.WithUserAgent("vectorium/" + Version),
		khttp.WithErrorDecoder(func(context.Context, *http.Response) error { return nil }),
	}
	cc, err := khttp.NewClient(ctx, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, headers: map[string]string{}, timeout: DefaultTimeout}, nil
}

// Close releases the underlying transport.
func (c *Client) Close() error { return c.cc.Close() }

func (c *Client) SetDefaultHeaders(headers map[string]string) {
	c.mu.Lock()
	c.headers = make(map[string]string, len(headers))
	for k, v := range headers {
		c.headers[k] = v
	}
	c.mu.Unlock()
}

func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

func (c *Client) SetBearerToken(token string) {
	c.mu.Lock()
	c.bearer = token
	c.mu.Unlock()
}

func (c *Client) SetBaseURL(u string) {
	c.mu.Lock()
	c.baseURL = strings.TrimRight(u, "/")
	c.mu.Unlock()
}

// ServiceVersion implements service.Versioned.
func (c *Client) ServiceVersion() string { return Version }

func (c *Client) Get(ctx context.Context, path string, params map[string]string) (*service.RestResponse, error) {
	return c.do(ctx, http.MethodGet, path, params, nil, "")
}

func (c *Client) Post(ctx context.Context, path string, body []byte, contentType string) (*service.RestResponse, error) {
	return c.do(ctx, http.MethodPost, path, nil, body, contentType)
}

func (c *Client) do(ctx context.Context, method, path string, params map[string]string, body []byte, contentType string) (*service.RestResponse, error) {
	c.mu.RLock()
	base, bearer, timeout := c.baseURL, c.bearer, c.timeout
	headers := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		headers[k] = v
	}
	c.mu.RUnlock()

	target, err := resolve(base, path, params)
	if err != nil {
		return nil, &service.RestError{Message: "invalid url", Err: err}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &service.RestError{Message: "build request", Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.cc.Do(req)
	if err != nil {
		return nil, &service.RestError{Message: method + " " + target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &service.RestError{Message: "read body", Err: err}
	}
	return &service.RestResponse{Status: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

func resolve(base, path string, params map[string]string) (string, error) {
	raw := path
	if !strings.Contains(path, "://") {
		if base == "" {
			return "", &url.Error{Op: "resolve", URL: path, Err: errNoBaseURL}
		}
		raw = base + "/" + strings.TrimLeft(path, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

var errNoBaseURL = &service.RestError{Message: "relative path without base url"}
