package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"github.com/nao1215/trustscan/internal/model"
)

// TLSProber performs a TLS handshake against a host to describe its
// certificate.
type TLSProber struct {
	dialer  Dialer
	timeout time.Duration
	roots   *x509.CertPool
}

// TLSOption configures a TLSProber.
type TLSOption func(*TLSProber)

// WithTLSDialer sets the dialer used for the TCP connection.
func WithTLSDialer(d Dialer) TLSOption {
	return func(p *TLSProber) {
		p.dialer = d
	}
}

// WithTLSTimeout bounds connect plus handshake.
func WithTLSTimeout(d time.Duration) TLSOption {
	return func(p *TLSProber) {
		p.timeout = d
	}
}

// WithRootCAs replaces the system roots used for verification.
func WithRootCAs(pool *x509.CertPool) TLSOption {
	return func(p *TLSProber) {
		p.roots = pool
	}
}

// NewTLSProber creates a TLSProber with a direct dialer and a 5 second timeout.
func NewTLSProber(opts ...TLSOption) *TLSProber {
	p := &TLSProber{timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(p)
	}
	if p.dialer == nil {
		p.dialer = &net.Dialer{Timeout: p.timeout}
	}
	return p
}

// Probe connects to host (port 443 unless host carries one) and performs a
// verified TLS handshake.
//
// A TCP failure means the check could not run: the error wraps
// model.ErrUnavailable. A failed handshake or certificate verification is a
// completed check with Supported=false and a nil error.
func (p *TLSProber) Probe(ctx context.Context, host string) (model.TLSInfo, error) {
	address := host
	serverName := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		serverName = h
	} else {
		address = net.JoinHostPort(host, "443")
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	raw, err := p.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return model.TLSInfo{}, fmt.Errorf("%w: tls probe %s: %s", model.ErrUnavailable, address, err.Error())
	}
	defer raw.Close()

	conn := tls.Client(raw, &tls.Config{
		ServerName: serverName,
		RootCAs:    p.roots,
		MinVersion: tls.VersionTLS12,
	})

	supported := false
	if err := conn.HandshakeContext(ctx); err != nil {
		if ctx.Err() != nil {
			return model.TLSInfo{}, fmt.Errorf("%w: tls probe %s: %s", model.ErrUnavailable, address, ctx.Err().Error())
		}
		return model.TLSInfo{Supported: &supported}, nil
	}

	supported = true
	info := model.TLSInfo{Supported: &supported}

	state := conn.ConnectionState()
	if len(state.PeerCertificates) > 0 {
		cert := state.PeerCertificates[0]
		info.Issuer = cert.Issuer.CommonName
		if len(cert.Issuer.Organization) > 0 {
			info.Issuer = cert.Issuer.Organization[0]
		}
		expires := cert.NotAfter.UTC()
		info.ExpiresAt = &expires
	}
	return info, nil
}
