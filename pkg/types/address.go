package types

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// ============================================================================
//                              IPVersion
// ============================================================================

// IPVersion IP 协议版本
type IPVersion int

const (
	// IPv4 IPv4 地址
	IPv4 IPVersion = 4
	// IPv6 IPv6 地址
	IPv6 IPVersion = 6
)

// String 返回版本字符串
func (v IPVersion) String() string {
	switch v {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return "IPv" + strconv.Itoa(int(v))
	}
}

// 未指定地址
const (
	UnspecifiedIPv4 = "0.0.0.0"
	UnspecifiedIPv6 = "::"
)

// ============================================================================
//                              Address
// ============================================================================

// Address IP 端点地址
//
// 不可变值类型，相等性与显示均基于值。
type Address struct {
	IP      string
	Version IPVersion
	Port    int
}

// NewAddress 创建地址
func NewAddress(ip string, version IPVersion, port int) Address {
	return Address{IP: ip, Version: version, Port: port}
}

// NewAddressFromNetAddr 从 net.Addr 创建地址
func NewAddressFromNetAddr(addr net.Addr) (Address, error) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok || tcpAddr == nil {
		return Address{}, fmt.Errorf("not a TCP address: %T", addr)
	}

	ip, ok := netip.AddrFromSlice(tcpAddr.IP)
	if !ok {
		return Address{}, fmt.Errorf("invalid IP in address: %v", tcpAddr)
	}
	ip = ip.Unmap()

	version := IPv6
	if ip.Is4() {
		version = IPv4
	}

	return Address{
		IP:      ip.WithZone(tcpAddr.Zone).String(),
		Version: version,
		Port:    tcpAddr.Port,
	}, nil
}

// ParseAddress 解析 "ip:port" 格式地址
//
// IPv6 地址需使用方括号，例如 "[::1]:8080"。
func ParseAddress(s string) (Address, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}

	ip := ap.Addr().Unmap()
	version := IPv6
	if ip.Is4() {
		version = IPv4
	}

	return Address{IP: ip.String(), Version: version, Port: int(ap.Port())}, nil
}

// String 返回 "ip:port" 格式
func (a Address) String() string {
	return net.JoinHostPort(a.IP, strconv.Itoa(a.Port))
}

// Network 返回网络类型（tcp4 或 tcp6）
func (a Address) Network() string {
	if a.Version == IPv4 {
		return "tcp4"
	}
	return "tcp6"
}

// NetAddr 返回 *net.TCPAddr
func (a Address) NetAddr() *net.TCPAddr {
	addr, err := netip.ParseAddr(a.IP)
	if err != nil {
		return &net.TCPAddr{Port: a.Port}
	}
	return &net.TCPAddr{
		IP:   addr.AsSlice(),
		Port: a.Port,
		Zone: addr.Zone(),
	}
}

// IsUnspecified 是否为未指定地址
func (a Address) IsUnspecified() bool {
	addr, err := netip.ParseAddr(a.IP)
	return err == nil && addr.IsUnspecified()
}

// Equal 比较两个地址，IP 按解析后的值比较
func (a Address) Equal(o Address) bool {
	if a.Port != o.Port || a.Version != o.Version {
		return false
	}
	x, errX := netip.ParseAddr(a.IP)
	y, errY := netip.ParseAddr(o.IP)
	if errX != nil || errY != nil {
		return a.IP == o.IP
	}
	return x == y
}
