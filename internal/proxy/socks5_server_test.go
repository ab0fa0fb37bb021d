package proxy

import (
	"context"
	"net"
	"testing"
	"time"

	xproxy "golang.org/x/net/proxy"

	"github.com/die-net/socksdial/internal/dialer"
	"github.com/die-net/socksdial/internal/testutil"
)

func startServer(t *testing.T, ctx context.Context, cfg Config) net.Listener {
	t.Helper()

	if cfg.Dialer == nil {
		cfg.Dialer = dialer.NewDirectDialer(dialer.Config{DialTimeout: 2 * time.Second})
	}
	if cfg.NegotiationTimeout == 0 {
		cfg.NegotiationTimeout = 2 * time.Second
	}

	ln, err := ListenTCP(ctx, "tcp", "127.0.0.1:0", net.KeepAliveConfig{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	srv := NewSOCKS5Server(ctx, cfg, false)
	go func() { _ = srv.Serve(ln) }()

	return ln
}

func TestSOCKS5ServerForward(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	ln := startServer(t, ctx, Config{})

	pd, err := xproxy.SOCKS5("tcp", ln.Addr().String(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	conn, err := pd.Dial("tcp", echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	testutil.AssertEcho(t, conn, conn, []byte("hello"))
}

func TestSOCKS5ServerAuth(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	ln := startServer(t, ctx, Config{Username: "user", Password: "pass"})

	// Wrong credentials are refused.
	bad, err := xproxy.SOCKS5("tcp", ln.Addr().String(), &xproxy.Auth{User: "user", Password: "wrong"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bad.Dial("tcp", echoLn.Addr().String()); err == nil {
		t.Fatal("expected auth failure")
	}

	good, err := xproxy.SOCKS5("tcp", ln.Addr().String(), &xproxy.Auth{User: "user", Password: "pass"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	conn, err := good.Dial("tcp", echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	testutil.AssertEcho(t, conn, conn, []byte("hello"))
}

func TestSOCKS5ServerBridgesUpstreamProxy(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	// Full chain: SOCKS5 client -> bridge server -> upstream SOCKS5 proxy
	// -> destination.
	upLn, waitUp := testutil.StartSingleAcceptServer(t, ctx, testutil.SOCKS5ProxyHandler(ctx, "test", "testpass"))
	defer waitUp()

	up, err := dialer.New(
		dialer.Config{DialTimeout: 2 * time.Second, NegotiationTimeout: 2 * time.Second},
		"socks5://test:testpass@"+upLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	ln := startServer(t, ctx, Config{Dialer: up})

	pd, err := xproxy.SOCKS5("tcp", ln.Addr().String(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	conn, err := pd.Dial("tcp", echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	testutil.AssertEcho(t, conn, conn, []byte("hello"))
}

func TestSOCKS5ServerRefusedDestination(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ln := startServer(t, ctx, Config{})

	pd, err := xproxy.SOCKS5("tcp", ln.Addr().String(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pd.Dial("tcp", "127.0.0.1:1"); err == nil {
		t.Fatal("expected refusal")
	}
}
