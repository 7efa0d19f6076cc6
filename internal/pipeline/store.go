// Package pipeline holds the live state of an analysis run and applies
// inbound events to it.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dyike/CortexDash/consts"
	"github.com/dyike/CortexDash/internal/decision"
	"github.com/dyike/CortexDash/internal/logging"
	"github.com/dyike/CortexDash/models"
)

var (
	ErrRunActive   = errors.New("a run is already active")
	ErrNoActiveRun = errors.New("no active run")
	ErrStaleRun    = errors.New("event belongs to another run")
)

// State is a point-in-time copy of the store.
type State struct {
	Run      models.Run
	Teams    []models.Team
	Payload  *models.Payload
	Thai     []models.ThaiReportSection
	Decision string
	Version  uint64
}

// Agent looks up an agent's status by display name.
func (s State) Agent(name string) (models.AgentStatus, bool) {
	for _, t := range s.Teams {
		for _, a := range t.Agents {
			if a.Name == name {
				return a.Status, true
			}
		}
	}
	return "", false
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for dropped and ignored updates.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Store) {
		s.log = logging.Component(l, "pipeline")
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithOnFinish registers fn to be called, outside the lock, each time a run
// ends. It receives the final snapshot.
func WithOnFinish(fn func(State)) Option {
	return func(s *Store) {
		s.onFinish = fn
	}
}

// Store serializes every state transition behind a mutex.
type Store struct {
	mu       sync.Mutex
	state    State
	now      func() time.Time
	log      *logrus.Entry
	onFinish func(State)
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		now: time.Now,
		log: logging.Component(logging.Discard(), "pipeline"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = State{
		Teams:    NewTeams(nil),
		Payload:  models.NewPayload(),
		Decision: consts.DefaultDecision,
	}
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	out := s.state
	out.Teams = cloneTeams(s.state.Teams)
	out.Payload = s.state.Payload.Clone()
	out.Thai = append([]models.ThaiReportSection(nil), s.state.Thai...)
	out.Run.Request.Analysts = append([]string(nil), s.state.Run.Request.Analysts...)
	return out
}

// Version increments on every mutation.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Version
}

func (s *Store) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Run.IsRunning
}

// BeginRun resets the template and marks a new run active.
func (s *Store) BeginRun(req models.StartRequest, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Run.IsRunning {
		return ErrRunActive
	}
	s.state.Run = models.Run{
		ID:        runID,
		Ticker:    req.Ticker,
		IsRunning: true,
		Request:   req,
		StartedAt: s.now(),
	}
	s.state.Run.Request.Analysts = append([]string(nil), req.Analysts...)
	s.state.Teams = NewTeams(req.Analysts)
	s.state.Payload = models.NewPayload()
	s.state.Thai = nil
	s.state.Decision = consts.DefaultDecision
	s.state.Version++
	s.log.WithFields(logrus.Fields{"run_id": runID, "ticker": req.Ticker}).Info("run started")
	return nil
}

// Apply folds one inbound event into the state. Events outside an active
// run, or tagged with another run's id, are rejected without mutation.
func (s *Store) Apply(ev models.Event) error {
	s.mu.Lock()
	finished, err := s.applyLocked(ev)
	return s.unlock(finished, err)
}

// Stop ends the active run locally. It reports whether a run was active.
func (s *Store) Stop() bool {
	s.mu.Lock()
	if !s.state.Run.IsRunning {
		s.mu.Unlock()
		return false
	}
	s.finalizeAgents()
	s.finish(models.OutcomeStopped)
	s.unlock(true, nil)
	return true
}

// Abort fails the active run with message, as if the service had sent an
// error event.
func (s *Store) Abort(message string) bool {
	s.mu.Lock()
	if !s.state.Run.IsRunning {
		s.mu.Unlock()
		return false
	}
	s.fail(message)
	s.unlock(true, nil)
	return true
}

// unlock releases the mutex and fires the finish hook if a run just ended.
func (s *Store) unlock(finished bool, err error) error {
	var snap State
	notify := finished && s.onFinish != nil
	if notify {
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()
	if notify {
		s.onFinish(snap)
	}
	return err
}

func (s *Store) applyLocked(ev models.Event) (bool, error) {
	if !s.state.Run.IsRunning {
		return false, ErrNoActiveRun
	}
	if id := ev.Run(); id != "" && id != s.state.Run.ID {
		return false, fmt.Errorf("%w: %s", ErrStaleRun, id)
	}

	switch e := ev.(type) {
	case models.StatusEvent:
		if s.applyStatus(e.Agents) {
			s.state.Version++
		}
	case models.ReportEvent:
	case models.ThaiReportEvent:
		s.appendThai(e.Section)
	case models.CompleteEvent:
		s.complete(e)
		return true, nil
	case models.ErrorEvent:
		s.fail(e.Message)
		return true, nil
	default:
		return false, fmt.Errorf("%w: %T", models.ErrUnknownEvent, ev)
	}
	return false, nil
}

func (s *Store) applyStatus(updates map[string]string) bool {
	changed := false
	for name, raw := range updates {
		next, ok := models.ParseAgentStatus(raw)
		if !ok {
			s.log.WithFields(logrus.Fields{"agent": name, "status": raw}).Debug("unknown agent status")
			continue
		}
		agent := s.findAgent(strings.TrimSpace(name))
		if agent == nil {
			s.log.WithField("agent", name).Debug("unknown agent")
			continue
		}
		if agent.Status == next || !agent.Status.CanAdvanceTo(next) {
			continue
		}
		agent.Status = next
		changed = true
	}
	return changed
}

func (s *Store) findAgent(name string) *models.Agent {
	team, ok := consts.AgentTeam[name]
	if !ok {
		return nil
	}
	for i := range s.state.Teams {
		if s.state.Teams[i].Name != team {
			continue
		}
		for j := range s.state.Teams[i].Agents {
			if s.state.Teams[i].Agents[j].Name == name {
				return &s.state.Teams[i].Agents[j]
			}
		}
	}
	return nil
}

func (s *Store) appendThai(sec models.ThaiReportSection) {
	for _, existing := range s.state.Thai {
		if existing.Section == sec.Section && existing.ReportType == sec.ReportType {
			return
		}
	}
	s.state.Thai = append(s.state.Thai, sec)
	s.state.Version++
}

func (s *Store) complete(e models.CompleteEvent) {
	if e.FinalState != nil {
		s.state.Payload = e.FinalState.Clone()
	}
	s.state.Decision = decision.Resolve(e.Decision, s.state.Payload)
	if stragglers := s.finalizeAgents(); len(stragglers) > 0 {
		s.state.Payload.SetText(consts.Report_Incomplete, incompleteText(stragglers))
	}
	s.finish(models.OutcomeCompleted)
}

func (s *Store) fail(message string) {
	s.state.Payload.SetText(consts.Report_Error, message)
	s.finalizeAgents()
	s.finish(models.OutcomeFailed)
}

// finalizeAgents moves every non-completed agent to error and returns their
// names in template order.
func (s *Store) finalizeAgents() []string {
	var stragglers []string
	for i := range s.state.Teams {
		for j := range s.state.Teams[i].Agents {
			a := &s.state.Teams[i].Agents[j]
			if a.Status == models.StatusCompleted {
				continue
			}
			stragglers = append(stragglers, a.Name)
			a.Status = models.StatusError
		}
	}
	return stragglers
}

func (s *Store) finish(outcome models.RunOutcome) {
	s.state.Run.IsRunning = false
	s.state.Run.Outcome = outcome
	s.state.Run.FinishedAt = s.now()
	s.state.Version++
	s.log.WithFields(logrus.Fields{
		"run_id":   s.state.Run.ID,
		"outcome":  outcome,
		"decision": s.state.Decision,
	}).Info("run finished")
}

func incompleteText(names []string) string {
	return "The following agents did not complete: " + strings.Join(names, ", ")
}
