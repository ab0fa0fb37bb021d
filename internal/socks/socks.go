package socks

import (
	"io"
)

// Protocol version bytes.
const (
	Version4 byte = 0x04
	Version5 byte = 0x05
)

// CmdConnect is the only command this package issues.
const CmdConnect byte = 0x01

// SOCKS5 authentication methods (RFC 1928 §3).
const (
	MethodNone         byte = 0x00
	MethodUserPass     byte = 0x02
	MethodNoAcceptable byte = 0xFF
)

// SOCKS5 username/password sub-negotiation (RFC 1929).
const (
	UserPassVersion byte = 0x01
	UserPassSuccess byte = 0x00
)

// SOCKS5 address types (RFC 1928 §4).
const (
	ATYPIPv4   byte = 0x01
	ATYPDomain byte = 0x03
	ATYPIPv6   byte = 0x04
)

// SOCKS5 reply codes (RFC 1928 §6).
const (
	RepSucceeded               byte = 0x00
	RepGeneralFailure          byte = 0x01
	RepConnectionNotAllowed    byte = 0x02
	RepNetworkUnreachable      byte = 0x03
	RepHostUnreachable         byte = 0x04
	RepConnectionRefused       byte = 0x05
	RepTTLExpired              byte = 0x06
	RepCommandNotSupported     byte = 0x07
	RepAddressTypeNotSupported byte = 0x08
)

// SOCKS4 reply codes. The reply version byte is 0, not 4.
const (
	Socks4ReplyVersion byte = 0x00
	Socks4Granted      byte = 90
	Socks4Rejected     byte = 91
	Socks4IdentdFailed byte = 92
	Socks4UserMismatch byte = 93
)

// readFull reads exactly len(buf) bytes or fails with a classified *Error.
// step names the handshake phase for the error message.
func readFull(r io.Reader, buf []byte, step string) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return ioError(step, err)
	}
	return nil
}

// writeAll writes all of buf or fails with a classified *Error.
func writeAll(w io.Writer, buf []byte, step string) error {
	if _, err := w.Write(buf); err != nil {
		return ioError(step, err)
	}
	return nil
}
