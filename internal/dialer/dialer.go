package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/die-net/socksdial/internal/socks"
)

// Dialer mirrors the net.Dialer interface.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// New parses upstream and constructs the appropriate outbound Dialer.
//
// Supported schemes:
//   - direct://
//   - socks4://[userid@]host:port
//   - socks4a://[userid@]host:port
//   - socks5://[user:pass@]host:port
//   - socks5h://[user:pass@]host:port
//
// The socks4a and socks5h variants resolve domain destinations at the proxy
// rather than locally. A missing proxy port defaults to 1080.
func New(cfg Config, upstream string) (Dialer, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "":
		return nil, errors.New("invalid url: missing scheme")
	case "direct":
		return NewDirectDialer(cfg), nil
	default:
		ep, err := socks.ParseProxyURL(upstream)
		if err != nil {
			return nil, err
		}
		return NewSocksProxyDialer(cfg, ep), nil
	}
}
