package socks

import (
	"context"
	"encoding/binary"
	"net"
)

// Socks4Negotiator speaks SOCKS4 and, with RemoteDNS set, SOCKS4A.
type Socks4Negotiator struct {
	UserID    string
	RemoteDNS bool

	// Lookup overrides DNS resolution for plain SOCKS4 domain destinations.
	Lookup LookupFunc
}

// Negotiate sends the CONNECT request and reads the fixed 8-byte reply.
//
// IPv6 destinations are not representable in SOCKS4 and fail before any
// bytes are written. Domain destinations are resolved locally unless
// RemoteDNS is set, in which case the name is sent after the user-id with
// the reserved 0.0.0.1 placeholder DSTIP signalling a SOCKS4A request.
func (n *Socks4Negotiator) Negotiate(ctx context.Context, conn net.Conn, dest Dest) (*Reply, error) {
	var ip4 net.IP
	var domain string

	if ip := net.ParseIP(dest.Host); ip != nil {
		ip4 = ip.To4()
		if ip4 == nil {
			return nil, newError(KindUnsupportedAddressFamily, "SOCKS4 cannot carry IPv6 destination "+dest.Host)
		}
	} else if n.RemoteDNS {
		if len(dest.Host) > maxDomainLen {
			return nil, newError(KindUnsupportedAddressFamily, "destination hostname too long: "+dest.Host)
		}
		domain = dest.Host
	} else {
		var err error
		ip4, err = n.resolveIPv4(ctx, dest.Host)
		if err != nil {
			return nil, err
		}
	}

	buf := make([]byte, 0, 9+len(n.UserID)+len(domain)+1)
	buf = append(buf, Version4, CmdConnect, byte(dest.Port>>8), byte(dest.Port))
	if domain != "" {
		// Non-zero low byte in 0.0.0.x marks the address invalid,
		// telling the proxy to read a trailing domain name.
		buf = append(buf, 0, 0, 0, 1)
	} else {
		buf = append(buf, ip4...)
	}
	buf = append(buf, n.UserID...)
	buf = append(buf, 0)
	if domain != "" {
		buf = append(buf, domain...)
		buf = append(buf, 0)
	}

	if err := writeAll(conn, buf, "write request"); err != nil {
		return nil, err
	}

	var resp [8]byte
	if err := readFull(conn, resp[:], "read reply"); err != nil {
		return nil, err
	}
	if resp[0] != Socks4ReplyVersion {
		return nil, newError(KindProtocol, "unexpected reply version")
	}
	if resp[1] != Socks4Granted {
		return nil, replyError(Version4, resp[1])
	}

	return &Reply{
		Status:    int(resp[1]),
		BoundAddr: Address{IP: net.IP(resp[4:8])},
		BoundPort: binary.BigEndian.Uint16(resp[2:4]),
	}, nil
}

// resolveIPv4 resolves a domain destination for plain SOCKS4, which can only
// carry IPv4 literals on the wire.
func (n *Socks4Negotiator) resolveIPv4(ctx context.Context, host string) (net.IP, error) {
	lookup := n.Lookup
	if lookup == nil {
		lookup = defaultLookup
	}
	ips, err := lookup(ctx, host)
	if err != nil {
		return nil, &Error{Kind: KindResolutionRequired, Status: -1, Msg: host, Err: err}
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, newError(KindResolutionRequired, host+" has no IPv4 address")
}
