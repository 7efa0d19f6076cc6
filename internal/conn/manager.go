// Package conn owns the single persistent connection to the pipeline service.
package conn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrClosed       = errors.New("connection manager closed")
)

// Status is the observable state of the logical connection.
type Status int32

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Conn is one live bidirectional message transport.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a Conn to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type Options struct {
	URL            string
	Dialer         Dialer
	ReconnectDelay time.Duration
	// OnMessage receives every inbound frame, in arrival order, from the
	// read goroutine of the live socket.
	OnMessage func(data []byte)
	// OnStatus is called on every status transition with the manager lock
	// held. It must not call back into the Manager.
	OnStatus func(Status)
	Logger   *logrus.Entry
}

const defaultReconnectDelay = 3 * time.Second

// Manager keeps at most one live socket and reconnects after a fixed delay
// whenever it drops, until Close is called.
type Manager struct {
	url       string
	dialer    Dialer
	delay     time.Duration
	onMessage func([]byte)
	onStatus  func(Status)
	log       *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	status   Status
	conn     Conn
	timer    *time.Timer
	timerGen uint64
	closed   bool
	attempt  int

	writeMu sync.Mutex
}

func New(opts Options) *Manager {
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = WebSocketDialer{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		url:       opts.URL,
		dialer:    dialer,
		delay:     delay,
		onMessage: opts.OnMessage,
		onStatus:  opts.OnStatus,
		log:       logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Status returns the current connection status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connect ensures a connection attempt is live. It is a no-op while
// connecting or connected, and after Close.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.status != StatusDisconnected {
		return
	}
	m.stopTimer()
	m.attempt++
	m.setStatus(StatusConnecting)
	go m.dial(m.attempt)
}

func (m *Manager) dial(attempt int) {
	c, err := m.dialer.Dial(m.ctx, m.url)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if c != nil {
			_ = c.Close()
		}
		return
	}
	if err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{
			"url":     m.url,
			"attempt": attempt,
			"retry":   m.delay,
		}).Warn("connect failed")
		m.setStatus(StatusDisconnected)
		m.scheduleReconnect()
		m.mu.Unlock()
		return
	}
	m.conn = c
	m.setStatus(StatusConnected)
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"url": m.url, "attempt": attempt}).Info("connected")
	go m.readLoop(c)
}

func (m *Manager) readLoop(c Conn) {
	for {
		data, err := c.ReadMessage()
		if err != nil {
			m.drop(c, err)
			return
		}
		if m.onMessage != nil {
			m.onMessage(data)
		}
	}
}

// drop retires c if it is still the live socket and schedules a reconnect.
func (m *Manager) drop(c Conn, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != c {
		return
	}
	m.conn = nil
	_ = c.Close()
	m.log.WithError(err).WithField("retry", m.delay).Warn("connection lost")
	m.setStatus(StatusDisconnected)
	m.scheduleReconnect()
}

// Send encodes v as JSON and writes it as one frame.
func (m *Manager) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	c := m.conn
	m.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	err = c.WriteMessage(data)
	m.writeMu.Unlock()
	if err != nil {
		m.drop(c, err)
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close stops reconnecting and closes the live socket.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.stopTimer()
	c := m.conn
	m.conn = nil
	if m.status != StatusDisconnected {
		m.setStatus(StatusDisconnected)
	}
	m.mu.Unlock()

	m.cancel()
	if c != nil {
		return c.Close()
	}
	return nil
}

// setStatus must be called with m.mu held.
func (m *Manager) setStatus(s Status) {
	if m.status == s {
		return
	}
	m.status = s
	if m.onStatus != nil {
		m.onStatus(s)
	}
}

// scheduleReconnect must be called with m.mu held.
func (m *Manager) scheduleReconnect() {
	if m.closed || m.timer != nil {
		return
	}
	m.timerGen++
	gen := m.timerGen
	m.timer = time.AfterFunc(m.delay, func() {
		m.mu.Lock()
		if m.timerGen == gen {
			m.timer = nil
		}
		m.mu.Unlock()
		m.Connect()
	})
}

// stopTimer must be called with m.mu held.
func (m *Manager) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
		m.timerGen++
	}
}
