package dialer

// Package dialer provides outbound dialing implementations used by socksdial.
//
// Dialers implement a small interface (DialContext) and are used by the
// transport layer to establish outbound connections either directly or
// through an upstream SOCKS4/4A/5/5H proxy. A successful proxy dial hands
// back the negotiated connection as a transparent tunnel, indistinguishable
// from a direct socket; a failed one surfaces a *socks.Error the caller can
// branch on.
