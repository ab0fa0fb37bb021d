package proxy

// Package proxy implements the listener-side SOCKS5 bridge.
//
// It accepts SOCKS5 clients locally and forwards every CONNECT through the
// configured dialer, turning socksdial into a protocol bridge: applications
// speak plain SOCKS5 to it while the outbound side tunnels through whatever
// upstream proxy is configured. Shared connection plumbing (keepalive
// listeners, bidirectional copy) lives here too.
