package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/common"
)

const maxResponseSize = 16 << 20

// Client is the HTTP client shared by every fetcher.
type Client struct {
	http      *http.Client
	userAgent string
	logger    zerolog.Logger
}

// NewClient returns a client sending userAgent. A zero timeout never
// times out.
func NewClient(logger zerolog.Logger, userAgent string, timeout time.Duration) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger,
	}
}

// WithHTTPClient replaces the underlying transport client.
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.http = client
	return c
}

// envelope is the JSON shape every gacha API answers with.
type envelope[T any] struct {
	Retcode *int   `json:"retcode"`
	Message string `json:"message"`
	Data    *T     `json:"data"`
}

// getJSON issues a GET and decodes the envelope data into out.
func getJSON[T any](ctx context.Context, c *Client, url string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, common.IllegalURL("%v", err)
	}
	return doJSON[T](c, req)
}

// postJSON issues a POST with body encoded as JSON.
func postJSON[T any](ctx context.Context, c *Client, url string, body any) (*T, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, common.IllegalURL("%v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON[T](c, req)
}

func doJSON[T any](c *Client, req *http.Request) (*T, error) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Host, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", req.Method).
		Str("host", req.URL.Host).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("gacha api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, fmt.Errorf("%s %s: unexpected status %s", req.Method, req.URL.Host, resp.Status)
	}

	var body envelope[T]
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", req.URL.Host, err)
	}

	retcode := 0
	if body.Retcode != nil {
		retcode = *body.Retcode
	}
	if err := common.CheckRetcode(retcode, body.Message); err != nil {
		return nil, err
	}
	return body.Data, nil
}
