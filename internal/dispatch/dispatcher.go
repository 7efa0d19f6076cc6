// Package dispatch validates and sends start/stop commands.
package dispatch

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dyike/CortexDash/internal/conn"
	"github.com/dyike/CortexDash/internal/logging"
	"github.com/dyike/CortexDash/internal/pipeline"
	"github.com/dyike/CortexDash/models"
)

// Sender is the slice of the connection manager the dispatcher needs.
type Sender interface {
	Status() conn.Status
	Send(v any) error
}

type Option func(*Dispatcher)

func WithLogger(l *logrus.Logger) Option {
	return func(d *Dispatcher) {
		d.log = logging.Component(l, "dispatch")
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// WithRunIDs overrides the run id generator.
func WithRunIDs(next func() string) Option {
	return func(d *Dispatcher) {
		d.newID = next
	}
}

type Dispatcher struct {
	sender Sender
	store  *pipeline.Store
	now    func() time.Time
	newID  func() string
	log    *logrus.Entry
}

func New(sender Sender, store *pipeline.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		store:  store,
		now:    time.Now,
		newID:  uuid.NewString,
		log:    logging.Component(logging.Discard(), "dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start validates req, opens a new run in the store and sends the start
// command. It returns the request as sent, including its run id.
func (d *Dispatcher) Start(req models.StartRequest) (models.StartRequest, error) {
	if d.sender.Status() != conn.StatusConnected {
		d.log.WithField("ticker", req.Ticker).Warn("start rejected: not connected")
		return models.StartRequest{}, conn.ErrNotConnected
	}
	if d.store.IsRunning() {
		d.log.WithField("ticker", req.Ticker).Warn("start rejected: run in progress")
		return models.StartRequest{}, pipeline.ErrRunActive
	}
	normalized, err := req.Normalize(d.now())
	if err != nil {
		d.log.WithError(err).Warn("start rejected")
		return models.StartRequest{}, err
	}
	normalized.RunID = d.newID()

	if err := d.store.BeginRun(normalized, normalized.RunID); err != nil {
		d.log.WithError(err).Warn("start rejected")
		return models.StartRequest{}, err
	}

	cmd := models.Command{Action: models.ActionStartAnalysis, Request: &normalized}
	if err := d.sender.Send(cmd); err != nil {
		d.store.Abort(fmt.Sprintf("failed to send start command: %v", err))
		d.log.WithError(err).WithField("run_id", normalized.RunID).Error("start command not sent")
		return models.StartRequest{}, fmt.Errorf("send start: %w", err)
	}

	d.log.WithFields(logrus.Fields{
		"run_id": normalized.RunID,
		"ticker": normalized.Ticker,
		"date":   normalized.AnalysisDate,
	}).Info("start command sent")
	return normalized, nil
}

// Stop sends the stop command and ends the run locally without waiting for
// the service. The local stop applies even when the send fails.
func (d *Dispatcher) Stop() error {
	if d.sender.Status() != conn.StatusConnected {
		d.log.Warn("stop rejected: not connected")
		return conn.ErrNotConnected
	}
	if !d.store.IsRunning() {
		d.log.Warn("stop rejected: no active run")
		return pipeline.ErrNoActiveRun
	}

	sendErr := d.sender.Send(models.Command{Action: models.ActionStop})
	d.store.Stop()
	if sendErr != nil {
		d.log.WithError(sendErr).Error("stop command not sent")
		return fmt.Errorf("send stop: %w", sendErr)
	}
	d.log.Info("stop command sent")
	return nil
}
