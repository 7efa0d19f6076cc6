package conn

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexDash/internal/logging"
)

type fakeConn struct {
	in      chan []byte
	closed  chan struct{}
	once    sync.Once
	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case b := <-c.in:
		return b, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

type fakeDialer struct {
	mu    sync.Mutex
	fail  int
	dials atomic.Int32
	conns chan *fakeConn
	delay time.Duration
}

func newFakeDialer(fail int) *fakeDialer {
	return &fakeDialer{fail: fail, conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.dials.Add(1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.mu.Lock()
	if d.fail > 0 {
		d.fail--
		d.mu.Unlock()
		return nil, errors.New("connection refused")
	}
	d.mu.Unlock()
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *statusRecorder) record(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) all() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

func newTestManager(d Dialer, rec *statusRecorder, onMessage func([]byte)) *Manager {
	return New(Options{
		URL:            "ws://test/ws",
		Dialer:         d,
		ReconnectDelay: 20 * time.Millisecond,
		OnMessage:      onMessage,
		OnStatus:       rec.record,
		Logger:         logging.Component(logging.Discard(), "conn"),
	})
}

func TestConnectIsIdempotent(t *testing.T) {
	d := newFakeDialer(0)
	d.delay = 10 * time.Millisecond
	rec := &statusRecorder{}
	m := newTestManager(d, rec, nil)
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Connect()
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return m.Status() == StatusConnected }, time.Second, 5*time.Millisecond)
	m.Connect()
	assert.Equal(t, int32(1), d.dials.Load())
	assert.Equal(t, []Status{StatusConnecting, StatusConnected}, rec.all())
}

func TestReconnectAfterDrop(t *testing.T) {
	d := newFakeDialer(0)
	rec := &statusRecorder{}
	m := newTestManager(d, rec, nil)
	defer m.Close()

	m.Connect()
	first := <-d.conns
	require.Eventually(t, func() bool { return m.Status() == StatusConnected }, time.Second, 5*time.Millisecond)

	// server side drop
	first.Close()

	second := <-d.conns
	require.NotSame(t, first, second)
	require.Eventually(t, func() bool { return m.Status() == StatusConnected }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), d.dials.Load())
	assert.Equal(t, []Status{
		StatusConnecting, StatusConnected,
		StatusDisconnected,
		StatusConnecting, StatusConnected,
	}, rec.all())
}

func TestReconnectAfterDialFailures(t *testing.T) {
	d := newFakeDialer(3)
	rec := &statusRecorder{}
	m := newTestManager(d, rec, nil)
	defer m.Close()

	m.Connect()
	require.Eventually(t, func() bool { return m.Status() == StatusConnected }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(4), d.dials.Load())
}

func TestSendRequiresConnection(t *testing.T) {
	m := newTestManager(newFakeDialer(0), &statusRecorder{}, nil)
	defer m.Close()

	err := m.Send(map[string]string{"action": "stop"})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSendWritesJSONFrame(t *testing.T) {
	d := newFakeDialer(0)
	m := newTestManager(d, &statusRecorder{}, nil)
	defer m.Close()

	m.Connect()
	c := <-d.conns
	require.Eventually(t, func() bool { return m.Status() == StatusConnected }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Send(map[string]string{"action": "stop"}))
	require.Len(t, c.Written(), 1)
	assert.JSONEq(t, `{"action":"stop"}`, string(c.Written()[0]))
}

func TestMessagesDeliveredInOrder(t *testing.T) {
	d := newFakeDialer(0)
	var mu sync.Mutex
	var got []string
	m := newTestManager(d, &statusRecorder{}, func(b []byte) {
		mu.Lock()
		got = append(got, string(b))
		mu.Unlock()
	})
	defer m.Close()

	m.Connect()
	c := <-d.conns
	for _, s := range []string{"a", "b", "c", "d"} {
		c.in <- []byte(s)
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 4
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestCloseStopsReconnecting(t *testing.T) {
	d := newFakeDialer(0)
	m := newTestManager(d, &statusRecorder{}, nil)

	m.Connect()
	c := <-d.conns
	require.Eventually(t, func() bool { return m.Status() == StatusConnected }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Close())
	c.Close()
	time.Sleep(100 * time.Millisecond)

	m.Connect()
	assert.Equal(t, int32(1), d.dials.Load())
	assert.Equal(t, StatusDisconnected, m.Status())
	assert.ErrorIs(t, m.Send("x"), ErrClosed)
}
