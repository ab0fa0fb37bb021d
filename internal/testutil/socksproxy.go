package testutil

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"
)

// Single-connection SOCKS proxy handlers for dialer tests. They implement
// just enough of the server side of each protocol to negotiate one CONNECT,
// dial the requested destination, and relay bytes in both directions.

// SOCKS4ProxyHandler returns a handler speaking SOCKS4/4A. A request whose
// user-id differs from userid is rejected with CD=93, the way an
// identd-backed proxy behaves.
func SOCKS4ProxyHandler(ctx context.Context, userid string) func(net.Conn) {
	return func(c net.Conn) {
		br := bufio.NewReader(c)

		head := make([]byte, 8)
		if _, err := io.ReadFull(br, head); err != nil {
			return
		}
		if head[0] != 0x04 || head[1] != 0x01 {
			return
		}
		port := binary.BigEndian.Uint16(head[2:4])
		dstIP := binary.BigEndian.Uint32(head[4:8])

		gotUser, err := br.ReadString(0)
		if err != nil {
			return
		}
		if gotUser[:len(gotUser)-1] != userid {
			_, _ = c.Write([]byte{0, 93, 0, 0, 0, 0, 0, 0})
			return
		}

		host := ""
		if dstIP > 0 && dstIP <= 0xFF {
			// SOCKS4A: a trailing domain name follows the user-id.
			domain, err := br.ReadString(0)
			if err != nil {
				return
			}
			host = domain[:len(domain)-1]
		} else {
			host = net.IP(head[4:8]).String()
		}

		d := net.Dialer{}
		dst, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
		if err != nil {
			_, _ = c.Write([]byte{0, 91, 0, 0, 0, 0, 0, 0})
			return
		}
		defer dst.Close()

		if _, err := c.Write([]byte{0, 90, 0x9c, 0x40, 127, 0, 0, 1}); err != nil {
			return
		}
		relay(c, br, dst)
	}
}

// SOCKS5ProxyHandler returns a handler speaking SOCKS5 with optional
// username/password authentication. With user set, clients that do not offer
// the username/password method are refused with 0xFF.
func SOCKS5ProxyHandler(ctx context.Context, user, pass string) func(net.Conn) {
	return func(c net.Conn) {
		br := bufio.NewReader(c)

		head := make([]byte, 2)
		if _, err := io.ReadFull(br, head); err != nil || head[0] != 0x05 {
			return
		}
		methods := make([]byte, int(head[1]))
		if _, err := io.ReadFull(br, methods); err != nil {
			return
		}

		offersUserPass := false
		for _, m := range methods {
			if m == 0x02 {
				offersUserPass = true
			}
		}

		switch {
		case user != "" && !offersUserPass:
			_, _ = c.Write([]byte{0x05, 0xFF})
			return
		case user != "":
			if _, err := c.Write([]byte{0x05, 0x02}); err != nil {
				return
			}
			gotUser, gotPass, err := readUserPass(br)
			if err != nil {
				return
			}
			if gotUser != user || gotPass != pass {
				_, _ = c.Write([]byte{0x01, 0x01})
				return
			}
			if _, err := c.Write([]byte{0x01, 0x00}); err != nil {
				return
			}
		default:
			if _, err := c.Write([]byte{0x05, 0x00}); err != nil {
				return
			}
		}

		req := make([]byte, 4)
		if _, err := io.ReadFull(br, req); err != nil {
			return
		}
		if req[0] != 0x05 || req[1] != 0x01 {
			_, _ = c.Write([]byte{0x05, 0x07, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
			return
		}

		host, err := readDestAddr(br, req[3])
		if err != nil {
			_, _ = c.Write([]byte{0x05, 0x08, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
			return
		}
		portBytes := make([]byte, 2)
		if _, err := io.ReadFull(br, portBytes); err != nil {
			return
		}
		port := binary.BigEndian.Uint16(portBytes)

		d := net.Dialer{}
		dst, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
		if err != nil {
			_, _ = c.Write([]byte{0x05, 0x05, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
			return
		}
		defer dst.Close()

		if _, err := c.Write([]byte{0x05, 0x00, 0x00, 0x01, 127, 0, 0, 1, 0x9c, 0x40}); err != nil {
			return
		}
		relay(c, br, dst)
	}
}

func readUserPass(br *bufio.Reader) (string, string, error) {
	head := make([]byte, 2)
	if _, err := io.ReadFull(br, head); err != nil {
		return "", "", err
	}
	user := make([]byte, int(head[1]))
	if _, err := io.ReadFull(br, user); err != nil {
		return "", "", err
	}
	plen, err := br.ReadByte()
	if err != nil {
		return "", "", err
	}
	pass := make([]byte, int(plen))
	if _, err := io.ReadFull(br, pass); err != nil {
		return "", "", err
	}
	return string(user), string(pass), nil
}

func readDestAddr(br *bufio.Reader, atyp byte) (string, error) {
	switch atyp {
	case 0x01:
		b := make([]byte, 4)
		if _, err := io.ReadFull(br, b); err != nil {
			return "", err
		}
		return net.IP(b).String(), nil
	case 0x03:
		n, err := br.ReadByte()
		if err != nil {
			return "", err
		}
		b := make([]byte, int(n))
		if _, err := io.ReadFull(br, b); err != nil {
			return "", err
		}
		return string(b), nil
	case 0x04:
		b := make([]byte, 16)
		if _, err := io.ReadFull(br, b); err != nil {
			return "", err
		}
		return net.IP(b).String(), nil
	default:
		return "", io.ErrUnexpectedEOF
	}
}

// relay pumps bytes both ways until either side closes. br may hold
// already-buffered client bytes and is drained first.
func relay(c net.Conn, br *bufio.Reader, dst net.Conn) {
	go func() {
		_, _ = io.Copy(dst, br)
		_ = dst.Close()
	}()
	_, _ = io.Copy(c, dst)
}
