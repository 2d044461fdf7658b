package netwatch

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyFiresOnlyOnRecovery(t *testing.T) {
	var fired atomic.Int32
	m := New("", time.Second, func() { fired.Add(1) })

	m.Notify(true)
	m.Notify(true)
	m.Notify(false)
	assert.False(t, m.Online())
	m.Notify(true)

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 10*time.Millisecond)

	m.Notify(true)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestInitialOfflineThenOnline(t *testing.T) {
	var fired atomic.Int32
	m := New("", time.Second, func() { fired.Add(1) })
	assert.True(t, m.Online())

	m.Notify(false)
	m.Notify(true)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestProbeUsesDialer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var fired atomic.Int32
	m := New(ln.Addr().String(), time.Second, func() { fired.Add(1) })

	var down atomic.Bool
	d := &net.Dialer{}
	m.SetDialer(func(ctx context.Context, network, addr string) (net.Conn, error) {
		if down.Load() {
			return nil, errors.New("network unreachable")
		}
		return d.DialContext(ctx, network, addr)
	})

	ctx := context.Background()
	assert.True(t, m.Probe(ctx))
	down.Store(true)
	assert.False(t, m.Probe(ctx))
	down.Store(false)
	assert.True(t, m.Probe(ctx))

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 10*time.Millisecond)
}
