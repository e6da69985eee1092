package relay

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultDialTimeout           = 10 * time.Second
	defaultResponseHeaderTimeout = 30 * time.Second
	defaultIdleConnTimeout       = 90 * time.Second
	defaultMaxIdleConnsPerHost   = 8
)

// NewUpstreamClient returns an HTTP client for fetching media bytes.
//
// The client has no overall timeout. Connection setup and response headers are bounded;
// the body is bounded only by the request context.
func NewUpstreamClient(dialTimeout, headerTimeout time.Duration) *http.Client {
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	if headerTimeout <= 0 {
		headerTimeout = defaultResponseHeaderTimeout
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          64,
			MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
			IdleConnTimeout:       defaultIdleConnTimeout,
			TLSHandshakeTimeout:   dialTimeout,
			ResponseHeaderTimeout: headerTimeout,
			ExpectContinueTimeout: time.Second,
			// Bytes and Content-Length pass through unmodified.
			DisableCompression: true,
		},
	}
}
