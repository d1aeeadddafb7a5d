package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/polyrabbit/cross-ticker/config"
	"github.com/sirupsen/logrus"
)

type Client struct {
	StdClient *http.Client
	hasProxy  bool
}

func New(cfg *config.Config) *Client {
	// Thread safe
	stdClient := &http.Client{}
	if cfg.Timeout != 0 {
		logrus.Debugf("HTTP request timeout is set to %d seconds", cfg.Timeout)
		stdClient.Timeout = time.Duration(cfg.Timeout) * time.Second
	}

	client := &Client{StdClient: stdClient}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			logrus.Warnf("Failed to parse proxy URL: %s, error: %v, using system proxy", cfg.Proxy, err)
		} else {
			transport := http.DefaultTransport.(*http.Transport).Clone()
			transport.Proxy = http.ProxyURL(proxyURL)
			logrus.Debugf("Using proxy %s", cfg.Proxy)
			stdClient.Transport = transport
			client.hasProxy = true
		}
	}
	return client
}

// HasProxy tells whether requests go through a user configured proxy
func (c *Client) HasProxy() bool {
	return c.hasProxy
}

type requestOptions struct {
	query map[string]string
}

type RequestOption func(*requestOptions)

func WithQuery(query map[string]string) RequestOption {
	return func(opts *requestOptions) {
		opts.query = query
	}
}

// Get performs a single GET and returns the response body, a non-2xx reply is a *ResponseError
func (c *Client) Get(ctx context.Context, rawURL string, options ...RequestOption) ([]byte, error) {
	var opts requestOptions
	for _, o := range options {
		o(&opts)
	}
	if opts.query != nil {
		parsedURL, err := url.Parse(rawURL)
		if err != nil {
			return nil, errors.Wrapf(err, "parse url %s", rawURL)
		}
		query := parsedURL.Query()
		for k, v := range opts.query {
			query.Set(k, v)
		}
		parsedURL.RawQuery = query.Encode()
		rawURL = parsedURL.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "new request %s", rawURL)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; cross-ticker; +https://github.com/polyrabbit/cross-ticker)")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Add("Cache-Control", "no-store")
	req.Header.Add("Cache-Control", "must-revalidate")

	resp, err := c.StdClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", rawURL)
	}
	defer resp.Body.Close()
	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read body of %s", rawURL)
	}
	if !(resp.StatusCode >= 200 && resp.StatusCode < 300) {
		// Most non-200 responses have valid json body
		return respBytes, &ResponseError{resp.Status, respBytes}
	}
	return respBytes, nil
}

type ResponseError struct {
	Status string
	Body   []byte
}

func (e *ResponseError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return "HTTP " + e.Status + ", body " + string(body)
}

// IsTimeout reports whether err comes from a request or dial timeout
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
