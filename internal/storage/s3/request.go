package s3

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"
)

const (
	headerRequestID     = "X-Amz-Request-Id"
	headerInvocationID  = "Amz-Sdk-Invocation-Id"
	headerSSE           = "X-Amz-Server-Side-Encryption"
	headerSSECAlgorithm = "X-Amz-Server-Side-Encryption-Customer-Algorithm"
	headerContentMD5    = "Content-Md5"
)

// Request describes one service call before addressing and signing.
type Request struct {
	Operation string
	Method    string
	Bucket    string
	Key       string
	Query     url.Values
	Header    http.Header
	// Presign prepares the request for a presigned URL instead of sending it.
	Presign bool
}

// Executor sends prepared requests.
type Executor interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// HTTPExecutor sends requests with a net/http client. Redirects are not
// followed since a redirected request would need signing again.
type HTTPExecutor struct {
	client *http.Client
}

// NewHTTPExecutor builds an executor from the transport settings in cfg.
func NewHTTPExecutor(cfg *Config) *HTTPExecutor {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.PoolSize * 4,
		MaxIdleConnsPerHost:   cfg.PoolSize,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ExpectContinueTimeout: time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		// bodies are digested as sent; transparent decompression would change them
		DisableCompression:    true,
	}
	return &HTTPExecutor{client: &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

// NewHTTPExecutorFromClient wraps an existing client.
func NewHTTPExecutorFromClient(c *http.Client) *HTTPExecutor {
	return &HTTPExecutor{client: c}
}

// Do implements Executor.
func (e *HTTPExecutor) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return e.client.Do(req.WithContext(ctx))
}
