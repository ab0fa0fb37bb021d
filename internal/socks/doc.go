package socks

// Package socks implements the client side of the SOCKS4, SOCKS4A, SOCKS5,
// and SOCKS5H proxy protocols.
//
// It covers proxy URL parsing, destination address encoding (IPv4, IPv6, or
// domain name with local vs. remote DNS resolution), and the byte-level
// CONNECT handshakes, returning either a transparent tunnel over the caller's
// connection or a classified *Error.
//
// Only the CONNECT command is supported; BIND and UDP ASSOCIATE are not.
// Dialing and socket lifetime belong to internal/dialer.
