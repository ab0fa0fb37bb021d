package socks

import (
	"errors"
	"fmt"
	"net"
)

// Kind classifies a proxy negotiation failure. Callers branch on Kind rather
// than parsing error strings.
type Kind int

const (
	KindMalformedURL Kind = iota + 1
	KindUnsupportedScheme
	KindUnsupportedAddressFamily
	KindResolutionRequired
	KindNoAcceptableAuth
	KindAuthFailed
	KindProtocol
	KindTimeout
	KindGeneralFailure
	KindConnectionNotAllowed
	KindNetworkUnreachable
	KindHostUnreachable
	KindConnectionRefused
	KindTTLExpired
	KindCommandNotSupported
	KindAddressTypeNotSupported
)

func (k Kind) String() string {
	switch k {
	case KindMalformedURL:
		return "malformed proxy URL"
	case KindUnsupportedScheme:
		return "unsupported proxy scheme"
	case KindUnsupportedAddressFamily:
		return "unsupported address family"
	case KindResolutionRequired:
		return "address resolution required"
	case KindNoAcceptableAuth:
		return "no acceptable authentication method"
	case KindAuthFailed:
		return "proxy authentication failed"
	case KindProtocol:
		return "proxy protocol error"
	case KindTimeout:
		return "proxy timeout"
	case KindGeneralFailure:
		return "general SOCKS server failure"
	case KindConnectionNotAllowed:
		return "connection not allowed by ruleset"
	case KindNetworkUnreachable:
		return "network unreachable"
	case KindHostUnreachable:
		return "host unreachable"
	case KindConnectionRefused:
		return "connection refused"
	case KindTTLExpired:
		return "TTL expired"
	case KindCommandNotSupported:
		return "command not supported"
	case KindAddressTypeNotSupported:
		return "address type not supported"
	}
	return fmt.Sprintf("unknown kind %d", int(k))
}

// Error is a classified SOCKS negotiation failure.
//
// Status carries the raw status byte from the proxy's reply for
// status-derived kinds, and is -1 otherwise. Err holds the underlying I/O
// error, if any.
type Error struct {
	Kind   Kind
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	s := "socks: " + e.Kind.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Status >= 0 {
		s += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// newError builds an *Error with no raw proxy status.
func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Status: -1, Msg: msg}
}

// ioError classifies a failed read or write during the handshake. Timeouts
// become KindTimeout; everything else, including short reads from a proxy
// that closed mid-handshake, is KindProtocol.
func ioError(step string, err error) *Error {
	kind := KindProtocol
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Status: -1, Msg: step, Err: err}
}

// replyError maps a proxy's rejection status byte to an *Error.
//
// SOCKS5 REP codes 1-8 each map to a distinct kind; anything else, and every
// non-granted SOCKS4 CD value, maps to KindGeneralFailure with the raw code
// preserved.
func replyError(version, status byte) *Error {
	kind := KindGeneralFailure
	msg := ""
	if version == Version5 {
		switch status {
		case RepGeneralFailure:
			kind = KindGeneralFailure
		case RepConnectionNotAllowed:
			kind = KindConnectionNotAllowed
		case RepNetworkUnreachable:
			kind = KindNetworkUnreachable
		case RepHostUnreachable:
			kind = KindHostUnreachable
		case RepConnectionRefused:
			kind = KindConnectionRefused
		case RepTTLExpired:
			kind = KindTTLExpired
		case RepCommandNotSupported:
			kind = KindCommandNotSupported
		case RepAddressTypeNotSupported:
			kind = KindAddressTypeNotSupported
		default:
			msg = "unassigned reply code"
		}
	} else {
		msg = socks4StatusString(status)
	}
	return &Error{Kind: kind, Status: int(status), Msg: msg}
}

func socks4StatusString(status byte) string {
	switch status {
	case Socks4Rejected:
		return "request rejected or failed"
	case Socks4IdentdFailed:
		return "identd unreachable"
	case Socks4UserMismatch:
		return "identd user-id mismatch"
	}
	return "request not granted"
}
