package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// Dialer opens TCP connections for the fetcher and the TLS prober.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NewDialer returns a direct dialer, or a SOCKS5 dialer when proxyAddress
// ("host:port") is set.
func NewDialer(proxyAddress string, timeout time.Duration) (Dialer, error) {
	direct := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	if proxyAddress == "" {
		return direct, nil
	}

	d, err := proxy.SOCKS5("tcp", proxyAddress, nil, direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd, nil
	}
	return &contextDialer{dialer: d}, nil
}

// contextDialer adds context support to a proxy.Dialer. A cancelled context
// returns immediately; the underlying dial may still finish in the background.
type contextDialer struct {
	dialer proxy.Dialer
}

func (c *contextDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)

	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		go func() {
			if result := <-resultCh; result.conn != nil {
				_ = result.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// NewHTTPClient returns a client that never follows redirects on its own;
// the Fetcher handles them hop by hop.
func NewHTTPClient(d Dialer) *http.Client {
	transport := &http.Transport{
		DialContext:           d.DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 8 * time.Second,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
