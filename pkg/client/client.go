// Package client provides an HTTP client for the File Service with retry,
// request pacing, and online tracking.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fruitsalade/filedesk/internal/logging"
	"github.com/fruitsalade/filedesk/internal/metrics"
	"github.com/fruitsalade/filedesk/pkg/protocol"
	"github.com/fruitsalade/filedesk/pkg/retry"
)

// Client talks to a File Service.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config
	limiter     *rate.Limiter

	mu       sync.RWMutex
	online   bool
	lastPing time.Time
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	// Timeout bounds the wait for response headers. Reading a body is bounded
	// only by the request context, so long downloads are not cut off.
	Timeout     time.Duration
	RetryConfig retry.Config
	// RequestsPerSecond paces outgoing requests. Zero means unlimited.
	RequestsPerSecond float64
	// HTTPClient replaces the default logging client, mostly for tests.
	HTTPClient *http.Client
}

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
}

// AsStatusError reports whether err is a StatusError and returns it.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	se, ok := AsStatusError(err)
	return ok && se.StatusCode == http.StatusNotFound
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &logging.Transport{
				Base: &http.Transport{
					DialContext: (&net.Dialer{
						Timeout:   10 * time.Second,
						KeepAlive: 30 * time.Second,
					}).DialContext,
					MaxIdleConns:          100,
					IdleConnTimeout:       90 * time.Second,
					TLSHandshakeTimeout:   10 * time.Second,
					ResponseHeaderTimeout: cfg.Timeout,
				},
			},
		}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		httpClient:  httpClient,
		retryConfig: cfg.RetryConfig,
		limiter:     limiter,
		online:      true,
	}
}

// BaseURL returns the service URL the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// IsOnline returns true if the last request reached the server.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// LastContact returns when the online state was last updated.
func (c *Client) LastContact() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPing
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			logging.Info("File service is back online", logging.String("url", c.baseURL))
		} else {
			logging.Warn("File service is unreachable", logging.String("url", c.baseURL))
		}
	}
	c.online = online
	c.lastPing = time.Now()
}

// do paces and sends a request, tracking reachability and recording
// metrics under op. Transport failures are marked retryable.
func (c *Client) do(ctx context.Context, op, method, path string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRequest(op, 0, time.Since(start))
		c.setOnline(false)
		return nil, retry.Retryable(err)
	}
	metrics.RecordRequest(op, resp.StatusCode, time.Since(start))
	c.setOnline(true)
	return resp, nil
}

// statusError drains an error response into a StatusError. 5xx responses
// are retryable.
func statusError(op string, resp *http.Response) error {
	se := &StatusError{Op: op, StatusCode: resp.StatusCode}
	var errResp protocol.ErrorResponse
	if json.NewDecoder(resp.Body).Decode(&errResp) == nil {
		se.Message = errResp.Message()
	}
	if resp.StatusCode >= 500 {
		return retry.Retryable(se)
	}
	return se
}

// Ping checks if the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, "ping", http.MethodGet, protocol.HealthPath)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("ping", resp)
	}
	return nil
}

// CreateFile asks the service to create a new file and returns its name.
// Creation is not idempotent, so it is attempted exactly once. Any 2xx answer
// counts as success; the name is empty when the body does not carry one.
func (c *Client) CreateFile(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, "create", http.MethodPost, protocol.FilesPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError("create file", resp)
	}

	// The file exists once the service says so; the body only names it.
	var created protocol.CreateFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		logging.Debug("Create response has no filename", logging.Err(err))
		return "", nil
	}
	logging.Debug("File created", logging.String("filename", created.Filename))
	return created.Filename, nil
}

// ListFiles fetches the names of all files known to the service.
func (c *Client) ListFiles(ctx context.Context) ([]string, error) {
	return retry.DoWithResult(ctx, c.retryConfig, func() ([]string, error) {
		resp, err := c.do(ctx, "list", http.MethodGet, protocol.FilesPath)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, statusError("list files", resp)
		}

		var list protocol.FileListResponse
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			return nil, fmt.Errorf("decode file list: %w", err)
		}
		if list.Files == nil {
			list.Files = []string{}
		}
		return list.Files, nil
	})
}

// FetchFile opens the raw content of filename. The name is placed in the
// request path as given. The caller must close the returned reader. The size
// is -1 when the server did not report a length.
func (c *Client) FetchFile(ctx context.Context, filename string) (io.ReadCloser, int64, error) {
	var size int64
	body, err := retry.DoWithResult(ctx, c.retryConfig, func() (io.ReadCloser, error) {
		resp, err := c.do(ctx, "fetch", http.MethodGet, protocol.FilePath(filename))
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			return nil, statusError("fetch "+filename, resp)
		}

		size = -1
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
				size = n
			}
		}
		return resp.Body, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return body, size, nil
}
