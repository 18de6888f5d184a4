package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront/categorizer/internal/config"
	"storefront/categorizer/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// HTTPError is a non-2xx answer from the storefront backend.
// Message is the backend's own explanation when it sent one.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// restClient is the transport shared by the taxonomy and tenant clients.
type restClient struct {
	rl            ratelimit.Limiter
	httpClient    *resty.Client
	proxySupplier proxy.ProxySupplier
	breaker       *circuitBreaker
}

func newRESTClient(cfg config.APIConfig, proxySupplier proxy.ProxySupplier) *restClient {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "storefront-categorizer/1.0")

	if cfg.Token != "" {
		httpClient.SetHeader("Authorization", "Bearer "+cfg.Token)
	}

	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			httpClient.SetProxy(proxyURL)
			log.Infof("🔗 Using initial proxy: %s", proxyURL)
		}
	}

	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	return &restClient{
		rl:            rl,
		httpClient:    httpClient,
		proxySupplier: proxySupplier,
		breaker:       newCircuitBreaker(time.Duration(cfg.CircuitBreakerDelay) * time.Second),
	}
}

// do issues one request and returns the response body of a 2xx answer.
// Non-2xx answers come back as *HTTPError. No retry is attempted here beyond
// what the resty client is configured for.
func (c *restClient) do(ctx context.Context, method, path string, query map[string]string, body any) ([]byte, error) {
	if remaining, open := c.breaker.blocked(); open {
		log.Debugf("🚫 Request blocked by circuit breaker. Remaining time: %v", remaining.Round(time.Second))
		return nil, fmt.Errorf("backend is rate limiting requests, retry in %v", remaining.Round(time.Second))
	}

	c.rl.Take()

	req := c.httpClient.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	var (
		resp *resty.Response
		err  error
	)
	switch method {
	case http.MethodGet:
		resp, err = req.Get(path)
	case http.MethodPost:
		resp, err = req.Post(path)
	case http.MethodPatch:
		resp, err = req.Patch(path)
	default:
		return nil, fmt.Errorf("unsupported method %s", method)
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		c.rotateProxy()
		return nil, fmt.Errorf("failed to reach backend: %w", err)
	}

	payload := []byte(resp.String())

	if resp.StatusCode() == http.StatusTooManyRequests {
		c.breaker.trip()
	}

	if resp.IsError() {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode(),
			Message:    serverMessage(resp.StatusCode(), resp.Header().Get("Content-Type"), payload),
		}
	}

	return payload, nil
}

// rotateProxy switches to the next proxy so the next user-triggered retry takes a different route.
func (c *restClient) rotateProxy() {
	if c.proxySupplier == nil || c.proxySupplier.Len() < 2 {
		return
	}
	if next := c.proxySupplier.Get(); next != "" {
		log.Infof("🔄 Switching to proxy: %s", next)
		c.httpClient.SetProxy(next)
	}
}

func (c *restClient) Close() error {
	return c.httpClient.Close()
}

// userMessage is the text shown for a failed call: the server's message verbatim when
// there is one, otherwise the transport error.
func userMessage(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Message
	}
	return err.Error()
}
