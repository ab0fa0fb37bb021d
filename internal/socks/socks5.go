package socks

import (
	"context"
	"net"
)

// Socks5Negotiator speaks SOCKS5 (RFC 1928) with optional username/password
// authentication (RFC 1929). With RemoteDNS set it behaves as SOCKS5H,
// sending domain destinations to the proxy unresolved.
type Socks5Negotiator struct {
	Username  string
	Password  string
	UseAuth   bool
	RemoteDNS bool

	// Lookup overrides DNS resolution for local-resolution domain
	// destinations.
	Lookup LookupFunc
}

// Negotiate runs method negotiation, the optional username/password
// sub-negotiation, and the CONNECT exchange.
//
// No-auth is always offered, even when credentials are configured; the proxy
// may pick the weaker method if it allows anonymous access. This matches
// observed proxy behavior rather than forcing authentication.
func (n *Socks5Negotiator) Negotiate(ctx context.Context, conn net.Conn, dest Dest) (*Reply, error) {
	addr, err := n.destAddress(ctx, dest.Host)
	if err != nil {
		return nil, err
	}

	method, err := n.negotiateMethod(conn)
	if err != nil {
		return nil, err
	}
	if method == MethodUserPass {
		if err := n.authenticate(conn); err != nil {
			return nil, err
		}
	}
	return n.connect(conn, addr, dest.Port)
}

func (n *Socks5Negotiator) negotiateMethod(conn net.Conn) (byte, error) {
	greeting := []byte{Version5, 1, MethodNone}
	if n.UseAuth {
		greeting = []byte{Version5, 2, MethodNone, MethodUserPass}
	}
	if err := writeAll(conn, greeting, "write greeting"); err != nil {
		return 0, err
	}

	var resp [2]byte
	if err := readFull(conn, resp[:], "read method selection"); err != nil {
		return 0, err
	}
	if resp[0] != Version5 {
		return 0, newError(KindProtocol, "unexpected greeting version")
	}

	switch resp[1] {
	case MethodNone:
		return MethodNone, nil
	case MethodUserPass:
		if !n.UseAuth {
			return 0, newError(KindNoAcceptableAuth, "proxy requires authentication but no credentials are configured")
		}
		return MethodUserPass, nil
	case MethodNoAcceptable:
		return 0, newError(KindNoAcceptableAuth, "proxy accepted none of the offered methods")
	default:
		return 0, newError(KindProtocol, "proxy selected unoffered method")
	}
}

func (n *Socks5Negotiator) authenticate(conn net.Conn) error {
	buf := make([]byte, 0, 3+len(n.Username)+len(n.Password))
	buf = append(buf, UserPassVersion, byte(len(n.Username)))
	buf = append(buf, n.Username...)
	buf = append(buf, byte(len(n.Password)))
	buf = append(buf, n.Password...)
	if err := writeAll(conn, buf, "write auth request"); err != nil {
		return err
	}

	var resp [2]byte
	if err := readFull(conn, resp[:], "read auth reply"); err != nil {
		return err
	}
	if resp[1] != UserPassSuccess {
		return &Error{Kind: KindAuthFailed, Status: int(resp[1]), Msg: "proxy rejected username/password"}
	}
	return nil
}

func (n *Socks5Negotiator) connect(conn net.Conn, addr Address, port uint16) (*Reply, error) {
	buf := make([]byte, 0, 6+maxDomainLen)
	buf = append(buf, Version5, CmdConnect, 0)
	buf, err := addr.appendSocks5(buf)
	if err != nil {
		return nil, err
	}
	buf = append(buf, byte(port>>8), byte(port))
	if err := writeAll(conn, buf, "write connect request"); err != nil {
		return nil, err
	}

	var head [4]byte
	if err := readFull(conn, head[:], "read connect reply"); err != nil {
		return nil, err
	}
	if head[0] != Version5 {
		return nil, newError(KindProtocol, "unexpected reply version")
	}
	if head[1] != RepSucceeded {
		// The reply may carry a bind address after a rejection, but
		// the connection is dead either way; don't wait for it.
		return nil, replyError(Version5, head[1])
	}

	bound, boundPort, err := readSocks5Addr(conn, "read bind address")
	if err != nil {
		return nil, err
	}
	return &Reply{Status: int(head[1]), BoundAddr: bound, BoundPort: boundPort}, nil
}

// destAddress applies the DNS-resolution policy: IP literals pass through,
// domains are sent as-is under remote DNS and resolved locally otherwise,
// preferring IPv4 when both families resolve.
func (n *Socks5Negotiator) destAddress(ctx context.Context, host string) (Address, error) {
	if ip := net.ParseIP(host); ip != nil {
		return IPAddress(ip), nil
	}
	if n.RemoteDNS {
		return DomainAddress(host)
	}

	lookup := n.Lookup
	if lookup == nil {
		lookup = defaultLookup
	}
	ips, err := lookup(ctx, host)
	if err != nil {
		return Address{}, &Error{Kind: KindResolutionRequired, Status: -1, Msg: host, Err: err}
	}
	for _, ip := range ips {
		if ip.To4() != nil {
			return IPAddress(ip), nil
		}
	}
	if len(ips) > 0 {
		return IPAddress(ips[0]), nil
	}
	return Address{}, newError(KindResolutionRequired, host+" did not resolve")
}
