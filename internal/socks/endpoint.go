package socks

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Variant selects a SOCKS protocol version and DNS-resolution policy.
type Variant int

const (
	SOCKS4 Variant = iota + 1
	SOCKS4A
	SOCKS5
	SOCKS5H
)

func (v Variant) String() string {
	switch v {
	case SOCKS4:
		return "socks4"
	case SOCKS4A:
		return "socks4a"
	case SOCKS5:
		return "socks5"
	case SOCKS5H:
		return "socks5h"
	}
	return "socks?"
}

// RemoteDNS reports whether domain destinations are sent to the proxy
// unresolved for it to look up.
func (v Variant) RemoteDNS() bool {
	return v == SOCKS4A || v == SOCKS5H
}

// Endpoint is a parsed, immutable proxy descriptor.
//
// HasAuth is true when the proxy URL supplied a userinfo section. For SOCKS4
// the username becomes the user-id field (which may legitimately be empty);
// for SOCKS5 a non-empty username makes username/password negotiation
// eligible.
type Endpoint struct {
	Variant  Variant
	Host     string
	Port     uint16
	Username string
	Password string
	HasAuth  bool
}

// Addr returns the proxy's host:port for dialing.
func (e *Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// DefaultPort is applied when the proxy URL omits a port.
const DefaultPort = 1080

// ParseProxyURL parses scheme://[user[:pass]@]host[:port] into an Endpoint.
func ParseProxyURL(raw string) (*Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &Error{Kind: KindMalformedURL, Status: -1, Msg: raw, Err: err}
	}

	var variant Variant
	switch strings.ToLower(u.Scheme) {
	case "socks4":
		variant = SOCKS4
	case "socks4a":
		variant = SOCKS4A
	case "socks5":
		variant = SOCKS5
	case "socks5h":
		variant = SOCKS5H
	case "":
		return nil, newError(KindMalformedURL, "missing scheme in "+raw)
	default:
		return nil, newError(KindUnsupportedScheme, u.Scheme)
	}

	if u.Path != "" && u.Path != "/" {
		return nil, newError(KindMalformedURL, "proxy URL path must be empty")
	}

	host := u.Hostname()
	if host == "" {
		return nil, newError(KindMalformedURL, "missing proxy host in "+raw)
	}

	port := DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 0xFFFF {
			return nil, newError(KindMalformedURL, "invalid proxy port "+p)
		}
	}

	ep := &Endpoint{Variant: variant, Host: host, Port: uint16(port)}
	if u.User != nil {
		ep.HasAuth = true
		ep.Username = u.User.Username()
		ep.Password, _ = u.User.Password()
		if len(ep.Username) > 255 || len(ep.Password) > 255 {
			return nil, newError(KindMalformedURL, "username or password longer than 255 bytes")
		}
	}
	return ep, nil
}

// Negotiator returns the handshake implementation for the endpoint's
// protocol variant.
func (e *Endpoint) Negotiator() Negotiator {
	switch e.Variant {
	case SOCKS4, SOCKS4A:
		return &Socks4Negotiator{
			UserID:    e.Username,
			RemoteDNS: e.Variant.RemoteDNS(),
		}
	default:
		return &Socks5Negotiator{
			Username:  e.Username,
			Password:  e.Password,
			UseAuth:   e.HasAuth && e.Username != "",
			RemoteDNS: e.Variant.RemoteDNS(),
		}
	}
}
