package socks

import (
	"context"
	"net"
)

// Dest is the destination the proxy is asked to CONNECT to. Host may be an
// IPv4 literal, an IPv6 literal, or a domain name.
type Dest struct {
	Host string
	Port uint16
}

// Reply is the proxy's final answer to a CONNECT. BoundAddr and BoundPort
// are the advisory bind address from the proxy; tunnel correctness does not
// depend on them.
type Reply struct {
	Status    int
	BoundAddr Address
	BoundPort uint16
}

// Negotiator runs one CONNECT handshake over an established connection to
// the proxy. On success the connection is a transparent tunnel to dest; on
// failure the connection must be discarded by the caller.
//
// Negotiators hold no per-attempt state, so one instance may serve
// concurrent dials.
type Negotiator interface {
	Negotiate(ctx context.Context, conn net.Conn, dest Dest) (*Reply, error)
}

// LookupFunc resolves a host name for local-resolution policies. The zero
// value of the negotiators uses net.DefaultResolver.
type LookupFunc func(ctx context.Context, host string) ([]net.IP, error)

func defaultLookup(ctx context.Context, host string) ([]net.IP, error) {
	return net.DefaultResolver.LookupIP(ctx, "ip", host)
}
