package transport

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"

	"github.com/cexll/claudesdk-go/pkg/config"
	"github.com/cexll/claudesdk-go/pkg/sdkerr"
)

// newHTTPClient builds the shared connection pool from the pool config.
// Request deadlines come from per-attempt contexts, not a client timeout,
// so streaming bodies stay open past the handshake.
func newHTTPClient(cfg config.ClientConfig) (*http.Client, error) {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: cfg.Pool.TCPKeepalive,
	}
	pool := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.Pool.MaxIdlePerHost,
		IdleConnTimeout:       cfg.Pool.IdleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     !cfg.Pool.DisableHTTP2,
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, sdkerr.Config("invalid proxy URL %q: %v", cfg.Proxy, err)
		}
		pool.Proxy = http.ProxyURL(proxyURL)
	}
	if !cfg.Pool.DisableHTTP2 {
		if err := http2.ConfigureTransport(pool); err != nil {
			return nil, sdkerr.Config("HTTP/2 setup failed: %v", err)
		}
	}
	return &http.Client{Transport: pool}, nil
}
