package tcpserver

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/dep2p/go-tcpserver/config"
	"github.com/dep2p/go-tcpserver/pkg/types"
)

// resolveTimeout 主机名解析超时
const resolveTimeout = 5 * time.Second

// lookupNetIP 主机名解析函数，测试中替换
var lookupNetIP = net.DefaultResolver.LookupNetIP

// Listen 绑定地址并开始监听
//
// 空主机绑定 IPv6 未指定地址 "::"，失败时重试一次 IPv4 "0.0.0.0"；
// 显式指定的地址绑定失败直接返回错误。
// 端口越界返回 ErrInvalidPort 且服务器保持 NOT_STARTED；
// 其他失败会释放已初始化的资源，服务器进入 CLOSED。
//
// 连接在 Start 之后才会被处理。
func (s *Server) Listen(lo ListenOptions) error {
	s.mu.RLock()
	err := s.checkListenable()
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if lo.Port < config.MinPort || lo.Port > config.MaxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, lo.Port)
	}

	// 解析可能阻塞，不持有锁
	ip, version, resolveErr := resolveHost(lo.Host)

	s.mu.Lock()
	if err := s.checkListenable(); err != nil {
		s.mu.Unlock()
		return err
	}
	if resolveErr != nil {
		s.abortLocked(resolveErr)
	} else {
		err = s.listenLocked(ip, version, lo)
	}
	failed := s.state == types.ServerClosed
	s.mu.Unlock()

	if failed {
		s.notifyClosed()
	}
	if resolveErr != nil {
		return resolveErr
	}
	return err
}

// checkListenable 只有 NOT_STARTED 状态可以监听，调用方持有锁
func (s *Server) checkListenable() error {
	switch s.state {
	case types.ServerListening:
		return ErrAlreadyListening
	case types.ServerClosing, types.ServerClosed:
		return ErrServerClosed
	}
	return nil
}

func (s *Server) listenLocked(ip string, version types.IPVersion, lo ListenOptions) error {
	if err := s.bind(ip, version, lo.Port); err != nil {
		s.abortLocked(err)
		return err
	}

	if err := s.engine.Listen(s.onAccept); err != nil {
		err = fmt.Errorf("listen: %w", err)
		s.abortLocked(err)
		return err
	}

	s.state = types.ServerListening
	if lo.OnListening != nil {
		h := lo.OnListening
		_, _ = s.bus.Once(EventListening, func(any) { h() })
	}

	logger.Info("服务器开始监听", "host", ip, "port", lo.Port)
	return nil
}

// bind 绑定地址，IPv6 未指定地址失败时回退到 IPv4
func (s *Server) bind(ip string, version types.IPVersion, port int) error {
	err := s.engine.Bind(ip, version, port)
	if err == nil {
		return nil
	}
	if version != types.IPv6 || ip != types.UnspecifiedIPv6 {
		return fmt.Errorf("bind %s: %w", types.NewAddress(ip, version, port), err)
	}

	logger.Debug("IPv6 未指定地址绑定失败，回退到 IPv4", "err", err)
	if err := s.engine.Bind(types.UnspecifiedIPv4, types.IPv4, port); err != nil {
		return fmt.Errorf("bind %s: %w", types.NewAddress(types.UnspecifiedIPv4, types.IPv4, port), err)
	}
	return nil
}

// abortLocked 监听失败后释放资源并进入 CLOSED
func (s *Server) abortLocked(cause error) {
	s.state = types.ServerClosed
	if err := s.teardownLocked(); err != nil {
		logger.Warn("释放服务器资源失败", "err", err)
	}
	logger.Warn("监听失败，服务器已关闭", "err", cause)
}

// resolveHost 将主机解析为 IP 和版本
//
// 空主机返回 IPv6 未指定地址。
func resolveHost(host string) (string, types.IPVersion, error) {
	if host == "" {
		return types.UnspecifiedIPv6, types.IPv6, nil
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return ipVersion(addr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	addrs, err := lookupNetIP(ctx, "ip", host)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s: %v", ErrHostUnresolvable, host, err)
	}
	if len(addrs) == 0 {
		return "", 0, fmt.Errorf("%w: %s", ErrHostUnresolvable, host)
	}
	return ipVersion(addrs[0])
}

func ipVersion(addr netip.Addr) (string, types.IPVersion, error) {
	addr = addr.Unmap()
	if addr.Is4() {
		return addr.String(), types.IPv4, nil
	}
	return addr.String(), types.IPv6, nil
}
