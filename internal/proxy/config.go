package proxy

import (
	"net"
	"time"

	"github.com/die-net/socksdial/internal/dialer"
)

type Config struct {
	NegotiationTimeout time.Duration
	IOTimeout          time.Duration

	KeepAlive net.KeepAliveConfig

	// Username/Password, when set, require RFC 1929 authentication from
	// local clients.
	Username string
	Password string

	Dialer dialer.Dialer
}
