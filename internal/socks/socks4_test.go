package socks

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"golang.org/x/sync/errgroup"
)

// socks4Seen records what a fake SOCKS4 server observed in the request.
type socks4Seen struct {
	port   uint16
	ip     net.IP
	userID string
	domain string
}

// serveSocks4 handles one SOCKS4/4A request, enforcing wantUserID the way an
// identd-backed proxy would (CD=93 on mismatch).
func serveSocks4(conn net.Conn, wantUserID string, seen *socks4Seen) error {
	br := bufio.NewReader(conn)

	var head [8]byte
	if _, err := io.ReadFull(br, head[:]); err != nil {
		return err
	}
	if head[0] != Version4 || head[1] != CmdConnect {
		return fmt.Errorf("bad request header % x", head)
	}
	seen.port = binary.BigEndian.Uint16(head[2:4])
	dstIP := binary.BigEndian.Uint32(head[4:8])

	userID, err := br.ReadString(0)
	if err != nil {
		return err
	}
	seen.userID = userID[:len(userID)-1]

	remoteDNS := dstIP > 0 && dstIP <= 0xFF
	if remoteDNS {
		domain, err := br.ReadString(0)
		if err != nil {
			return err
		}
		seen.domain = domain[:len(domain)-1]
	} else {
		seen.ip = net.IP(head[4:8])
	}

	if seen.userID != wantUserID {
		_, err := conn.Write([]byte{0, Socks4UserMismatch, 0, 0, 0, 0, 0, 0})
		return err
	}

	resp := []byte{0, Socks4Granted, 0x9c, 0x40, 127, 0, 0, 1} // bound 127.0.0.1:40000
	_, err = conn.Write(resp)
	return err
}

func TestSocks4ConnectIPv4(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	var seen socks4Seen
	g := errgroup.Group{}
	g.Go(func() error { return serveSocks4(serverConn, "", &seen) })

	n := &Socks4Negotiator{}
	reply, err := n.Negotiate(context.Background(), clientConn, Dest{Host: "127.0.0.1", Port: 40000})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if reply.Status != int(Socks4Granted) {
		t.Fatalf("status = %d", reply.Status)
	}
	if reply.BoundPort != 40000 || reply.BoundAddr.String() != "127.0.0.1" {
		t.Fatalf("bound = %s:%d", reply.BoundAddr, reply.BoundPort)
	}
	if !seen.ip.Equal(net.IPv4(127, 0, 0, 1)) || seen.port != 40000 {
		t.Fatalf("server saw %s:%d", seen.ip, seen.port)
	}
	if seen.domain != "" {
		t.Fatalf("unexpected domain field %q", seen.domain)
	}
}

func TestSocks4ADomain(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	var seen socks4Seen
	g := errgroup.Group{}
	g.Go(func() error { return serveSocks4(serverConn, "user", &seen) })

	n := &Socks4Negotiator{UserID: "user", RemoteDNS: true}
	if _, err := n.Negotiate(context.Background(), clientConn, Dest{Host: "localhost", Port: 80}); err != nil {
		t.Fatal(err)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if seen.userID != "user" {
		t.Fatalf("user-id = %q", seen.userID)
	}
	if seen.domain != "localhost" {
		t.Fatalf("domain = %q", seen.domain)
	}
	if seen.ip != nil {
		t.Fatalf("unexpected literal address %s", seen.ip)
	}
}

func TestSocks4UserIDMismatch(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	var seen socks4Seen
	g := errgroup.Group{}
	g.Go(func() error { return serveSocks4(serverConn, "user", &seen) })

	n := &Socks4Negotiator{UserID: "wrong"}
	_, err := n.Negotiate(context.Background(), clientConn, Dest{Host: "127.0.0.1", Port: 80})
	if kind := errKind(t, err); kind != KindGeneralFailure {
		t.Fatalf("kind = %v", kind)
	}
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("not a socks error: %v", err)
	}
	if se.Status != int(Socks4UserMismatch) {
		t.Fatalf("status = %d", se.Status)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestSocks4IPv6Destination(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	n := &Socks4Negotiator{}
	_, err := n.Negotiate(context.Background(), clientConn, Dest{Host: "::1", Port: 80})
	if kind := errKind(t, err); kind != KindUnsupportedAddressFamily {
		t.Fatalf("kind = %v", kind)
	}
}

func TestSocks4LocalResolution(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	var seen socks4Seen
	g := errgroup.Group{}
	g.Go(func() error { return serveSocks4(serverConn, "", &seen) })

	n := &Socks4Negotiator{
		Lookup: func(ctx context.Context, host string) ([]net.IP, error) {
			return []net.IP{net.ParseIP("2001:db8::1"), net.ParseIP("1.2.3.4")}, nil
		},
	}
	if _, err := n.Negotiate(context.Background(), clientConn, Dest{Host: "target.example", Port: 80}); err != nil {
		t.Fatal(err)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if !seen.ip.Equal(net.IPv4(1, 2, 3, 4)) {
		t.Fatalf("server saw %s, want 1.2.3.4", seen.ip)
	}
}

func TestSocks4NoIPv4Address(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	n := &Socks4Negotiator{
		Lookup: func(ctx context.Context, host string) ([]net.IP, error) {
			return []net.IP{net.ParseIP("2001:db8::1")}, nil
		},
	}
	_, err := n.Negotiate(context.Background(), clientConn, Dest{Host: "target.example", Port: 80})
	if kind := errKind(t, err); kind != KindResolutionRequired {
		t.Fatalf("kind = %v", kind)
	}
}

func TestSocks4TruncatedReply(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	g := errgroup.Group{}
	g.Go(func() error {
		defer serverConn.Close()

		buf := make([]byte, 64)
		if _, err := serverConn.Read(buf); err != nil {
			return err
		}
		_, err := serverConn.Write([]byte{0})
		return err
	})

	n := &Socks4Negotiator{}
	_, err := n.Negotiate(context.Background(), clientConn, Dest{Host: "127.0.0.1", Port: 80})
	if kind := errKind(t, err); kind != KindProtocol {
		t.Fatalf("kind = %v", kind)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
