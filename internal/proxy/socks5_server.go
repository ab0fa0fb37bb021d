package proxy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	txsocks5 "github.com/txthinking/socks5"

	"github.com/die-net/socksdial/internal/socks"
)

// SOCKS5Server accepts local SOCKS5 clients and forwards CONNECT requests
// through the configured dialer.
type SOCKS5Server struct {
	ctx     context.Context
	cfg     Config
	verbose bool
}

func NewSOCKS5Server(ctx context.Context, cfg Config, verbose bool) *SOCKS5Server {
	return &SOCKS5Server{ctx: ctx, cfg: cfg, verbose: verbose}
}

func (s *SOCKS5Server) Serve(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			return err
		}
		go func() {
			if err := s.handleConn(c); err != nil && s.verbose {
				log.Printf("socks5 %s: %v", c.RemoteAddr(), err)
			}
		}()
	}
}

func (s *SOCKS5Server) handleConn(conn net.Conn) error {
	defer conn.Close()

	if s.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.NegotiationTimeout))
	}

	if err := s.negotiate(conn); err != nil {
		return err
	}

	req, err := txsocks5.NewRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	if req.Cmd != txsocks5.CmdConnect {
		writeReply(conn, socks.RepCommandNotSupported, req.Atyp)
		return fmt.Errorf("unsupported command %d", req.Cmd)
	}

	up, err := s.cfg.Dialer.DialContext(s.ctx, "tcp", req.Address())
	if err != nil {
		writeReply(conn, repForError(err), req.Atyp)
		return fmt.Errorf("forward %s: %w", req.Address(), err)
	}
	defer up.Close()

	if err := writeSuccessReply(conn, up.LocalAddr()); err != nil {
		return err
	}
	_ = conn.SetDeadline(time.Time{})

	return CopyBidirectional(s.ctx, conn, up, s.cfg.IOTimeout)
}

// negotiate runs server-side method selection and, when credentials are
// configured, the RFC 1929 sub-negotiation.
func (s *SOCKS5Server) negotiate(conn net.Conn) error {
	neg, err := txsocks5.NewNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("negotiation request: %w", err)
	}

	if s.cfg.Username == "" {
		if !containsMethod(neg.Methods, txsocks5.MethodNone) {
			_, _ = txsocks5.NewNegotiationReply(0xFF).WriteTo(conn)
			return errors.New("client does not support no-auth")
		}
		if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodNone).WriteTo(conn); err != nil {
			return fmt.Errorf("negotiation reply: %w", err)
		}
		return nil
	}

	if !containsMethod(neg.Methods, txsocks5.MethodUsernamePassword) {
		_, _ = txsocks5.NewNegotiationReply(0xFF).WriteTo(conn)
		return errors.New("client does not support username/password")
	}
	if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodUsernamePassword).WriteTo(conn); err != nil {
		return fmt.Errorf("negotiation reply: %w", err)
	}

	urq, err := txsocks5.NewUserPassNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("read userpass: %w", err)
	}
	if string(urq.Uname) != s.cfg.Username || string(urq.Passwd) != s.cfg.Password {
		_, _ = txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusFailure).WriteTo(conn)
		return errors.New("auth failed")
	}
	if _, err := txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusSuccess).WriteTo(conn); err != nil {
		return fmt.Errorf("write userpass: %w", err)
	}
	return nil
}

// repForError translates an upstream dial failure into the SOCKS5 reply code
// shown to the local client, preserving the upstream proxy's classification
// where one exists.
func repForError(err error) byte {
	var se *socks.Error
	if !errors.As(err, &se) {
		return socks.RepConnectionRefused
	}
	switch se.Kind {
	case socks.KindConnectionRefused:
		return socks.RepConnectionRefused
	case socks.KindNetworkUnreachable:
		return socks.RepNetworkUnreachable
	case socks.KindHostUnreachable, socks.KindResolutionRequired:
		return socks.RepHostUnreachable
	case socks.KindTTLExpired:
		return socks.RepTTLExpired
	case socks.KindConnectionNotAllowed:
		return socks.RepConnectionNotAllowed
	case socks.KindCommandNotSupported:
		return socks.RepCommandNotSupported
	case socks.KindAddressTypeNotSupported, socks.KindUnsupportedAddressFamily:
		return socks.RepAddressTypeNotSupported
	default:
		return socks.RepGeneralFailure
	}
}

// writeSuccessReply writes a success reply using localAddr as the bound
// address.
func writeSuccessReply(conn net.Conn, localAddr net.Addr) error {
	a, addr, port, err := txsocks5.ParseAddress(localAddr.String())
	if err != nil {
		return fmt.Errorf("parse local address %q: %w", localAddr.String(), err)
	}
	if a == txsocks5.ATYPDomain {
		addr = addr[1:]
	}
	if _, err := txsocks5.NewReply(txsocks5.RepSuccess, a, addr, port).WriteTo(conn); err != nil {
		return fmt.Errorf("success reply: %w", err)
	}
	return nil
}

// writeReply writes a failure reply with a zero bound address.
func writeReply(conn net.Conn, rep, atyp byte) {
	if atyp == txsocks5.ATYPIPv6 {
		_, _ = txsocks5.NewReply(rep, txsocks5.ATYPIPv6, net.IPv6zero, []byte{0x00, 0x00}).WriteTo(conn)
		return
	}
	_, _ = txsocks5.NewReply(rep, txsocks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(conn)
}

func containsMethod(methods []byte, want byte) bool {
	for _, m := range methods {
		if m == want {
			return true
		}
	}
	return false
}
