package socks

import (
	"encoding/binary"
	"io"
	"net"
)

// maxDomainLen is the longest domain name a SOCKS5 request can carry, since
// the length prefix is a single byte.
const maxDomainLen = 255

// Address is a SOCKS destination address. Exactly one representation is
// populated: a 4-byte IPv4, a 16-byte IPv6, or a domain name of at most 255
// bytes.
type Address struct {
	IP     net.IP
	Domain string
}

// IPAddress wraps an IP literal, normalizing IPv4-mapped addresses to their
// 4-byte form.
func IPAddress(ip net.IP) Address {
	if ip4 := ip.To4(); ip4 != nil {
		return Address{IP: ip4}
	}
	return Address{IP: ip.To16()}
}

// DomainAddress wraps a domain name for remote resolution by the proxy.
func DomainAddress(name string) (Address, error) {
	if name == "" {
		return Address{}, newError(KindMalformedURL, "empty destination host")
	}
	if len(name) > maxDomainLen {
		return Address{}, newError(KindUnsupportedAddressFamily, "destination hostname too long: "+name)
	}
	return Address{Domain: name}, nil
}

func (a Address) IsIPv4() bool   { return a.IP != nil && len(a.IP) == net.IPv4len }
func (a Address) IsIPv6() bool   { return a.IP != nil && len(a.IP) == net.IPv6len }
func (a Address) IsDomain() bool { return a.IP == nil && a.Domain != "" }

func (a Address) String() string {
	if a.IP != nil {
		return a.IP.String()
	}
	return a.Domain
}

// appendSocks5 appends the ATYP byte and address field in SOCKS5 wire form.
func (a Address) appendSocks5(buf []byte) ([]byte, error) {
	switch {
	case a.IsIPv4():
		buf = append(buf, ATYPIPv4)
		buf = append(buf, a.IP...)
	case a.IsIPv6():
		buf = append(buf, ATYPIPv6)
		buf = append(buf, a.IP...)
	case a.IsDomain():
		buf = append(buf, ATYPDomain, byte(len(a.Domain)))
		buf = append(buf, a.Domain...)
	default:
		return nil, newError(KindProtocol, "empty address")
	}
	return buf, nil
}

// readSocks5Addr reads an ATYP byte, the address field it describes, and the
// trailing 2-byte port.
func readSocks5Addr(r io.Reader, step string) (Address, uint16, error) {
	var atyp [1]byte
	if err := readFull(r, atyp[:], step); err != nil {
		return Address{}, 0, err
	}

	var addr Address
	switch atyp[0] {
	case ATYPIPv4:
		buf := make([]byte, net.IPv4len)
		if err := readFull(r, buf, step); err != nil {
			return Address{}, 0, err
		}
		addr = Address{IP: net.IP(buf)}
	case ATYPIPv6:
		buf := make([]byte, net.IPv6len)
		if err := readFull(r, buf, step); err != nil {
			return Address{}, 0, err
		}
		addr = Address{IP: net.IP(buf)}
	case ATYPDomain:
		var n [1]byte
		if err := readFull(r, n[:], step); err != nil {
			return Address{}, 0, err
		}
		buf := make([]byte, int(n[0]))
		if err := readFull(r, buf, step); err != nil {
			return Address{}, 0, err
		}
		addr = Address{Domain: string(buf)}
	default:
		return Address{}, 0, newError(KindProtocol, step+": unknown address type")
	}

	var port [2]byte
	if err := readFull(r, port[:], step); err != nil {
		return Address{}, 0, err
	}
	return addr, binary.BigEndian.Uint16(port[:]), nil
}
