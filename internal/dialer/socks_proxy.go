package dialer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/die-net/socksdial/internal/socks"
)

// SocksProxyDialer dials outbound TCP connections through a SOCKS proxy.
//
// Each dial is an independent synchronous handshake over its own socket; the
// dialer itself holds only immutable configuration, so it is safe for
// concurrent use.
type SocksProxyDialer struct {
	cfg        Config
	endpoint   *socks.Endpoint
	negotiator socks.Negotiator
}

// NewSocksProxyDialer constructs a dialer for the parsed proxy endpoint. The
// endpoint's variant selects both the protocol version and the DNS
// resolution policy.
func NewSocksProxyDialer(cfg Config, endpoint *socks.Endpoint) Dialer {
	return &SocksProxyDialer{
		cfg:        cfg,
		endpoint:   endpoint,
		negotiator: endpoint.Negotiator(),
	}
}

// ProxyAddr returns the proxy host:port.
func (f *SocksProxyDialer) ProxyAddr() string {
	return f.endpoint.Addr()
}

// DialContext establishes a TCP connection to address through the configured
// SOCKS proxy, returned as a transparent tunnel.
//
// Negotiation is performed synchronously before returning. If
// NegotiationTimeout is set, a deadline covers the whole handshake and is
// cleared before the connection is handed back. On any failure after the TCP
// connection to the proxy was opened, the connection is closed before the
// error is returned. Canceling ctx closes the connection, unblocking any
// in-progress handshake read.
func (f *SocksProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("socks proxy dial %s %s: unsupported network", network, address)
	}

	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("socks proxy dial %s: %w", address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 0xFFFF {
		return nil, fmt.Errorf("socks proxy dial %s: invalid port %q", address, portStr)
	}

	dd := net.Dialer{Timeout: f.cfg.DialTimeout}
	conn, err := dd.DialContext(ctx, "tcp", f.endpoint.Addr())
	if err != nil {
		return nil, fmt.Errorf("socks proxy %s: %w", f.endpoint.Addr(), err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAliveConfig(f.cfg.KeepAlive)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if f.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(f.cfg.NegotiationTimeout))
	}

	if _, err := f.negotiator.Negotiate(ctx, conn, socks.Dest{Host: host, Port: uint16(port)}); err != nil {
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	if f.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}
	return conn, nil
}
