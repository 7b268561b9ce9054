package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"

	"github.com/arashi-labs/solveorch/internal/iolog"
)

// ClientConfig configures one container's HTTP client (spec §4.2, §6 containers[]).
type ClientConfig struct {
	ContainerID    string
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	AnalyzeRetries int // clamped to [0, 2]
}

// Client is a per-container HTTP client implementing Transport.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	sink       iolog.Sink
}

// NewClient builds a Client for one container. A nil sink is replaced with iolog.NopSink.
func NewClient(cfg ClientConfig, sink iolog.Sink) *Client {
	if sink == nil {
		sink = iolog.NopSink{}
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.ReadTimeout, Transport: transport},
		sink:       sink,
	}
}

func clampRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > 2 {
		return 2
	}
	return n
}

// doOnce issues a single HTTP round trip and classifies the outcome, logging
// the exchange to the sink regardless of success or failure.
func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, requestID string) (int, []byte, error) {
	url := c.cfg.BaseURL + path
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("upstream %s: build request: %w", c.cfg.ContainerID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.sink.LogExchange(iolog.Record{
			RequestID: requestID, ContainerID: c.cfg.ContainerID, Method: method, URL: url,
			RequestBody: string(body), DurationMS: duration.Milliseconds(), Err: err.Error(),
		})
		return 0, nil, &TransportError{ContainerID: c.cfg.ContainerID, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.sink.LogExchange(iolog.Record{
			RequestID: requestID, ContainerID: c.cfg.ContainerID, Method: method, URL: url,
			RequestBody: string(body), StatusCode: resp.StatusCode, DurationMS: duration.Milliseconds(), Err: err.Error(),
		})
		return resp.StatusCode, nil, &TransportError{ContainerID: c.cfg.ContainerID, Err: err}
	}

	c.sink.LogExchange(iolog.Record{
		RequestID: requestID, ContainerID: c.cfg.ContainerID, Method: method, URL: url,
		RequestBody: string(body), ResponseBody: string(respBody),
		StatusCode: resp.StatusCode, DurationMS: duration.Milliseconds(),
	})

	if classifyErr := classifyStatus(c.cfg.ContainerID, resp.StatusCode, string(respBody)); classifyErr != nil {
		return resp.StatusCode, respBody, classifyErr
	}
	return resp.StatusCode, respBody, nil
}

// doWithRetry wraps doOnce with exponential backoff retried only on transport
// errors, capped per spec §4.2: min(0.25*2^attempt, 2.0)s, at most
// analyze_retries (clamped [0,2]) retries.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte, requestID string) (int, []byte, error) {
	backoff := retry.NewExponential(250 * time.Millisecond)
	backoff = retry.WithMaxRetries(uint64(clampRetries(c.cfg.AnalyzeRetries)), backoff)
	backoff = retry.WithCappedDuration(2*time.Second, backoff)

	var status int
	var respBody []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		st, rb, derr := c.doOnce(ctx, method, path, body, requestID)
		status, respBody = st, rb
		if derr == nil {
			return nil
		}
		var te *TransportError
		if errors.As(derr, &te) {
			return retry.RetryableError(derr)
		}
		return derr
	})
	return status, respBody, err
}

// Status implements Transport. GET /status.
func (c *Client) Status(ctx context.Context, requestID string) (StatusResponse, error) {
	_, body, err := c.doWithRetry(ctx, http.MethodGet, "/status", nil, requestID)
	if err != nil {
		return StatusResponse{}, err
	}
	r := gjson.ParseBytes(body)
	return StatusResponse{
		Status:        r.Get("status").String(),
		Busy:          r.Get("busy").Bool(),
		PageURL:       r.Get("page_url").String(),
		BrowserLoaded: r.Get("browser_loaded").Bool(),
		Raw:           body,
	}, nil
}

type analyzeBody struct {
	Text      string `json:"text,omitempty"`
	ImageB64  string `json:"image_b64,omitempty"`
	Ext       string `json:"ext,omitempty"`
	URL       string `json:"url,omitempty"`
	Profile   string `json:"profile,omitempty"`
	Socks     string `json:"socks,omitempty"`
}

func parseAnalyzeResponse(body []byte) AnalyzeResponse {
	r := gjson.ParseBytes(body)
	return AnalyzeResponse{
		Text:    r.Get("text").String(),
		Answer:  r.Get("answer").String(),
		Message: r.Get("message").String(),
		Result:  r.Get("result").String(),
		URL:     r.Get("url").String(),
		PageURL: r.Get("page_url").String(),
		Raw:     body,
	}
}

// AnalyzeText implements Transport. POST /analyze, falling back to the legacy
// POST /analyze_text on 404/405 (spec §4.2, confirmed by
// original_source/upstream_client.py).
func (c *Client) AnalyzeText(ctx context.Context, req AnalyzeTextRequest) (AnalyzeResponse, error) {
	payload, err := json.Marshal(analyzeBody{Text: req.Text, URL: req.URL, Profile: req.Profile, Socks: req.Socks})
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("upstream %s: encode analyze_text body: %w", c.cfg.ContainerID, err)
	}

	_, body, err := c.doWithRetry(ctx, http.MethodPost, "/analyze", payload, req.RequestID)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusMethodNotAllowed) {
			_, body, err = c.doWithRetry(ctx, http.MethodPost, "/analyze_text", payload, req.RequestID)
			if err != nil {
				return AnalyzeResponse{}, err
			}
			return parseAnalyzeResponse(body), nil
		}
		return AnalyzeResponse{}, err
	}
	return parseAnalyzeResponse(body), nil
}

// AnalyzeImage implements Transport. POST /analyze always (no legacy fallback).
func (c *Client) AnalyzeImage(ctx context.Context, req AnalyzeImageRequest) (AnalyzeResponse, error) {
	payload, err := json.Marshal(analyzeBody{ImageB64: req.ImageB64, Ext: req.ImageExt, URL: req.URL, Profile: req.Profile, Socks: req.Socks})
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("upstream %s: encode analyze_image body: %w", c.cfg.ContainerID, err)
	}
	_, body, err := c.doWithRetry(ctx, http.MethodPost, "/analyze", payload, req.RequestID)
	if err != nil {
		return AnalyzeResponse{}, err
	}
	return parseAnalyzeResponse(body), nil
}
