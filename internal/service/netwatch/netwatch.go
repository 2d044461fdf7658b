// Package netwatch 检测网络从离线恢复为在线
package netwatch

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/weiwangfds/novelsync/internal/logger"
)

// DialFunc 探测使用的拨号函数
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Monitor 网络状态监视器
// 只在离线变为在线时触发回调，首次探测只确定初始状态
type Monitor struct {
	addr     string
	interval time.Duration
	timeout  time.Duration
	dial     DialFunc
	onOnline func()

	mu     sync.Mutex
	known  bool
	online bool
}

// New 创建监视器
func New(addr string, interval time.Duration, onOnline func()) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	d := &net.Dialer{}
	return &Monitor{
		addr:     addr,
		interval: interval,
		timeout:  5 * time.Second,
		dial:     d.DialContext,
		onOnline: onOnline,
	}
}

// SetDialer 替换拨号函数
func (m *Monitor) SetDialer(dial DialFunc) {
	m.dial = dial
}

// Start 后台定期探测，ctx 取消后退出
func (m *Monitor) Start(ctx context.Context) {
	if m.addr == "" {
		logger.Infof("[网络监测] 未配置探测地址，仅接收外部通知")
		return
	}
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		m.Probe(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Probe(ctx)
			}
		}
	}()
}

// Probe 探测一次并更新状态
func (m *Monitor) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	conn, err := m.dial(ctx, "tcp", m.addr)
	online := err == nil
	if conn != nil {
		conn.Close()
	}
	m.Notify(online)
	return online
}

// Notify 报告当前连通状态
func (m *Monitor) Notify(online bool) {
	m.mu.Lock()
	recovered := m.known && !m.online && online
	changed := !m.known || m.online != online
	m.known = true
	m.online = online
	m.mu.Unlock()

	if changed {
		logger.Infof("[网络监测] 网络状态: online=%v", online)
	}
	if recovered && m.onOnline != nil {
		go m.onOnline()
	}
}

// Online 最近一次已知状态，未知时视为在线
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.known || m.online
}
