// Package session wires connection, store and dispatcher into the single
// process-wide service the views share.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dyike/CortexDash/config"
	"github.com/dyike/CortexDash/internal/conn"
	"github.com/dyike/CortexDash/internal/dispatch"
	"github.com/dyike/CortexDash/internal/logging"
	"github.com/dyike/CortexDash/internal/pipeline"
	"github.com/dyike/CortexDash/internal/report"
	"github.com/dyike/CortexDash/models"
)

var ErrClosed = errors.New("session closed")

// ChangeKind says which part of the session changed.
type ChangeKind string

const (
	ChangeConnection ChangeKind = "connection"
	ChangeState      ChangeKind = "state"
	ChangeView       ChangeKind = "view"
)

type Change struct {
	Kind ChangeKind
}

// History receives run records. Implementations must not block.
type History interface {
	RecordStart(rec models.RunRecord)
	RecordFinish(rec models.RunRecord)
}

// Snapshot is everything a view renders.
type Snapshot struct {
	pipeline.State
	Connection conn.Status
	Mode       models.DisplayMode
	Language   models.Language
}

type Option func(*Session)

func WithLogger(l *logrus.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNotifier forwards session events as (topic, JSON payload) pairs.
// The callback may call back into the session.
func WithNotifier(fn func(topic, payload string)) Option {
	return func(s *Session) {
		s.notify = fn
	}
}

func WithDialer(d conn.Dialer) Option {
	return func(s *Session) {
		s.dialer = d
	}
}

func WithHistory(h History) Option {
	return func(s *Session) {
		s.history = h
	}
}

// WithConfigManager applies display mode and language from config reloads.
func WithConfigManager(m *config.Manager) Option {
	return func(s *Session) {
		s.cfgMgr = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

type viewCache struct {
	valid   bool
	version uint64
	mode    models.DisplayMode
	lang    models.Language
	entries []report.Entry
}

type Session struct {
	logger  *logrus.Logger
	log     *logrus.Entry
	notify  func(string, string)
	dialer  conn.Dialer
	history History
	cfgMgr  *config.Manager
	now     func() time.Time

	store      *pipeline.Store
	conn       *conn.Manager
	dispatcher *dispatch.Dispatcher

	mu    sync.Mutex
	cfg   config.Config
	mode  models.DisplayMode
	lang  models.Language
	cache viewCache

	subMu  sync.RWMutex
	subs   []chan Change
	closed bool

	// Connection statuses queued for delivery outside the conn lock.
	statusMu   sync.Mutex
	statusQ    []conn.Status
	statusWake chan struct{}
	done       chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
}

// New builds an idle session. Nothing is dialed until Start.
func New(cfg config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		logger:     logging.Discard(),
		now:        time.Now,
		cfg:        cfg,
		mode:       cfg.Mode(),
		lang:       cfg.Lang(),
		statusWake: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.Component(s.logger, "session")
	if s.dialer == nil {
		s.dialer = conn.WebSocketDialer{HandshakeTimeout: cfg.HandshakeTimeout()}
	}

	s.store = pipeline.NewStore(
		pipeline.WithLogger(s.logger),
		pipeline.WithClock(s.now),
		pipeline.WithOnFinish(s.onRunFinished),
	)
	s.conn = conn.New(conn.Options{
		URL:            cfg.ServerURL,
		Dialer:         s.dialer,
		ReconnectDelay: cfg.ReconnectDelay(),
		OnMessage:      s.handleFrame,
		OnStatus:       s.handleStatus,
		Logger:         logging.Component(s.logger, "conn"),
	})
	s.dispatcher = dispatch.New(s.conn, s.store,
		dispatch.WithLogger(s.logger),
		dispatch.WithClock(s.now),
	)
	return s, nil
}

// Start connects and follows config reloads. The session closes when ctx
// is done.
func (s *Session) Start(ctx context.Context) error {
	var err error
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		if s.cfgMgr != nil {
			if err = s.cfgMgr.Watch(ctx, s.applyConfig); err != nil {
				s.cancel()
				return
			}
		}
		go s.deliverStatuses()
		s.conn.Connect()
		go func() {
			<-ctx.Done()
			s.Close()
		}()
	})
	return err
}

// Close disconnects and releases subscribers. It is safe to call twice.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		_ = s.conn.Close()
		close(s.done)

		s.subMu.Lock()
		s.closed = true
		for _, ch := range s.subs {
			close(ch)
		}
		s.subs = nil
		s.subMu.Unlock()
	})
}

func (s *Session) Connection() conn.Status {
	return s.conn.Status()
}

// StartRun fills blank request fields from config and starts a run.
func (s *Session) StartRun(req models.StartRequest) (models.StartRequest, error) {
	sent, err := s.dispatcher.Start(s.withDefaults(req))
	if err != nil {
		s.notifyJSON("run.rejected", map[string]string{"ticker": req.Ticker, "error": err.Error()})
		return models.StartRequest{}, err
	}

	s.mu.Lock()
	s.mode = sent.DisplayMode()
	s.mu.Unlock()

	if s.history != nil {
		s.history.RecordStart(models.RunRecord{
			Id:           sent.RunID,
			Ticker:       sent.Ticker,
			AnalysisDate: sent.AnalysisDate,
			Request:      sent,
			CreatedAt:    s.now(),
		})
	}
	s.notifyJSON("run.started", map[string]string{"run_id": sent.RunID, "ticker": sent.Ticker})
	s.emit(ChangeState)
	return sent, nil
}

// StopRun ends the active run locally and tells the service to stop.
func (s *Session) StopRun() error {
	return s.dispatcher.Stop()
}

func (s *Session) withDefaults(req models.StartRequest) models.StartRequest {
	s.mu.Lock()
	def := s.cfg.DefaultRequest(req.Ticker, req.AnalysisDate)
	s.mu.Unlock()

	if len(req.Analysts) == 0 {
		req.Analysts = def.Analysts
	}
	if strings.TrimSpace(req.ResearchDepth) == "" {
		req.ResearchDepth = def.ResearchDepth
	}
	if strings.TrimSpace(req.LLMProvider) == "" {
		req.LLMProvider = def.LLMProvider
	}
	if strings.TrimSpace(req.BackendURL) == "" {
		req.BackendURL = def.BackendURL
	}
	if strings.TrimSpace(req.ShallowThinker) == "" {
		req.ShallowThinker = def.ShallowThinker
	}
	if strings.TrimSpace(req.DeepThinker) == "" {
		req.DeepThinker = def.DeepThinker
	}
	if strings.TrimSpace(req.ReportLength) == "" {
		req.ReportLength = def.ReportLength
	}
	return req
}

func (s *Session) SetDisplayMode(mode models.DisplayMode) {
	s.mu.Lock()
	changed := s.mode != mode
	s.mode = mode
	s.mu.Unlock()
	if changed {
		s.emit(ChangeView)
	}
}

func (s *Session) SetLanguage(lang models.Language) {
	s.mu.Lock()
	changed := s.lang != lang
	s.lang = lang
	s.mu.Unlock()
	if changed {
		s.emit(ChangeView)
	}
}

func (s *Session) Snapshot() Snapshot {
	st := s.store.Snapshot()
	connection := s.conn.Status()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:      st,
		Connection: connection,
		Mode:       s.mode,
		Language:   s.lang,
	}
}

// View returns the report entries for the current mode and language. The
// result is reused until the store, mode or language changes.
func (s *Session) View() []report.Entry {
	version := s.store.Version()
	s.mu.Lock()
	mode, lang := s.mode, s.lang
	if c := s.cache; c.valid && c.version == version && c.mode == mode && c.lang == lang {
		s.mu.Unlock()
		return append([]report.Entry(nil), c.entries...)
	}
	s.mu.Unlock()

	st := s.store.Snapshot()
	entries := report.View(lang, mode, st.Payload, st.Thai)

	s.mu.Lock()
	s.cache = viewCache{valid: true, version: st.Version, mode: mode, lang: lang, entries: entries}
	s.mu.Unlock()
	return append([]report.Entry(nil), entries...)
}

// Subscribe returns a channel of change notifications and a func that
// unsubscribes it. Notifications are dropped when the buffer is full.
func (s *Session) Subscribe() (<-chan Change, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	ch := make(chan Change, 64)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subs = append(s.subs, ch)
	return ch, func() { s.unsubscribe(ch) }
}

func (s *Session) unsubscribe(ch chan Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, sub := range s.subs {
		if sub == ch {
			close(sub)
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *Session) emit(kind ChangeKind) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- Change{Kind: kind}:
		default:
		}
	}
}

// WaitConnected blocks until the connection is up or ctx is done.
func (s *Session) WaitConnected(ctx context.Context) error {
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()
	for {
		if s.conn.Status() == conn.StatusConnected {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ch:
			if !ok {
				return ErrClosed
			}
		}
	}
}

// WaitRun blocks until run runID is no longer running and returns the
// final state.
func (s *Session) WaitRun(ctx context.Context, runID string) (pipeline.State, error) {
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()
	for {
		st := s.store.Snapshot()
		if st.Run.ID != runID {
			return pipeline.State{}, fmt.Errorf("run %s was replaced by %s", runID, st.Run.ID)
		}
		if !st.Run.IsRunning {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case _, ok := <-ch:
			if !ok {
				return s.store.Snapshot(), ErrClosed
			}
		}
	}
}

func (s *Session) handleFrame(data []byte) {
	ev, err := models.DecodeEvent(data)
	if err != nil {
		s.log.WithError(err).Warn("dropped frame")
		return
	}
	if err := s.store.Apply(ev); err != nil {
		s.log.WithError(err).WithField("type", ev.Type()).Debug("event ignored")
		return
	}
	s.emit(ChangeState)
}

// handleStatus runs under the connection lock, so it only queues st for
// deliverStatuses.
func (s *Session) handleStatus(st conn.Status) {
	s.statusMu.Lock()
	s.statusQ = append(s.statusQ, st)
	s.statusMu.Unlock()
	select {
	case s.statusWake <- struct{}{}:
	default:
	}
}

func (s *Session) deliverStatuses() {
	for {
		select {
		case <-s.done:
			return
		case <-s.statusWake:
		}
		s.statusMu.Lock()
		queued := s.statusQ
		s.statusQ = nil
		s.statusMu.Unlock()

		for _, st := range queued {
			s.notifyJSON("connection.status", map[string]string{"status": st.String()})
			s.emit(ChangeConnection)
		}
	}
}

func (s *Session) onRunFinished(st pipeline.State) {
	if s.history != nil {
		s.history.RecordFinish(RecordOf(st))
	}
	s.notifyJSON("run.finished", map[string]string{
		"run_id":   st.Run.ID,
		"ticker":   st.Run.Ticker,
		"outcome":  string(st.Run.Outcome),
		"decision": st.Decision,
	})
	s.emit(ChangeState)
}

func (s *Session) applyConfig(cfg config.Config) {
	s.mu.Lock()
	urlChanged := cfg.ServerURL != s.cfg.ServerURL
	s.cfg = cfg
	s.mode = cfg.Mode()
	s.lang = cfg.Lang()
	s.mu.Unlock()

	if urlChanged {
		s.log.WithField("server_url", cfg.ServerURL).Info("server url changed; takes effect on restart")
	}
	s.notifyJSON("config.reloaded", map[string]string{"display_mode": string(cfg.Mode()), "language": string(cfg.Lang())})
	s.emit(ChangeView)
}

func (s *Session) notifyJSON(topic string, v any) {
	if s.notify == nil {
		return
	}
	payload, _ := json.Marshal(v)
	s.notify(topic, string(payload))
}

// RecordOf converts a finished state into a history record.
func RecordOf(st pipeline.State) models.RunRecord {
	return models.RunRecord{
		Id:           st.Run.ID,
		Ticker:       st.Run.Ticker,
		AnalysisDate: st.Run.Request.AnalysisDate,
		Request:      st.Run.Request,
		Status:       string(st.Run.Outcome),
		Decision:     st.Decision,
		FinalState:   st.Payload,
		Thai:         st.Thai,
		CreatedAt:    st.Run.StartedAt,
		UpdatedAt:    st.Run.FinishedAt,
	}
}
