package proxy

import (
	"net"
	"net/http"
	"time"
)

// TransportOptions are passed to the upstream http.Transport.
// TransportOptions.Timeout is the default for the timeouts that are not
// set.
type TransportOptions struct {
	// DialTimeout bounds the TCP connect to the upstream.
	DialTimeout time.Duration
	// ResponseHeaderTimeout bounds the wait for the upstream response.
	ResponseHeaderTimeout time.Duration
	// TLSHandshakeTimeout see https://golang.org/pkg/net/http/#Transport.TLSHandshakeTimeout
	TLSHandshakeTimeout time.Duration
	// IdleConnTimeout see https://golang.org/pkg/net/http/#Transport.IdleConnTimeout
	IdleConnTimeout time.Duration
	// MaxIdleConnsPerHost see https://golang.org/pkg/net/http/#Transport.MaxIdleConnsPerHost
	MaxIdleConnsPerHost int
	// Timeout is the default for unset timeouts above.
	Timeout time.Duration
}

const (
	DefaultDialTimeout           = 5 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultIdleConnsPerHost      = 64
)

// NewTransport creates the process-wide upstream transport. All proxied
// apps share it and its connection pool; never create one per request.
func NewTransport(o TransportOptions) *http.Transport {
	if o.Timeout == 0 {
		o.Timeout = DefaultResponseHeaderTimeout
	}
	if o.DialTimeout == 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.ResponseHeaderTimeout == 0 {
		o.ResponseHeaderTimeout = o.Timeout
	}
	if o.TLSHandshakeTimeout == 0 {
		o.TLSHandshakeTimeout = o.DialTimeout
	}
	if o.IdleConnTimeout == 0 {
		o.IdleConnTimeout = o.Timeout
	}
	if o.MaxIdleConnsPerHost == 0 {
		o.MaxIdleConnsPerHost = DefaultIdleConnsPerHost
	}

	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: o.DialTimeout,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		ResponseHeaderTimeout: o.ResponseHeaderTimeout,
		TLSHandshakeTimeout:   o.TLSHandshakeTimeout,
		IdleConnTimeout:       o.IdleConnTimeout,
		MaxIdleConnsPerHost:   o.MaxIdleConnsPerHost,
	}
}
