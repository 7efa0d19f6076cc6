// Package storage moves run history writes off the event path.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dyike/CortexDash/internal/logging"
	"github.com/dyike/CortexDash/models"
)

// RunStore is the persistence the recorder writes through.
type RunStore interface {
	CreateRun(ctx context.Context, rec models.RunRecord) error
	FinishRun(ctx context.Context, rec models.RunRecord) error
}

type recordKind int

const (
	recordStart recordKind = iota + 1
	recordFinish
)

type recordEvent struct {
	kind recordKind
	rec  models.RunRecord
}

const writeTimeout = 5 * time.Second

// Recorder persists run records in order on a single background goroutine.
type Recorder struct {
	store RunStore
	log   *logrus.Entry

	mu     sync.RWMutex
	closed bool
	events chan recordEvent
	wg     sync.WaitGroup
}

func NewRecorder(store RunStore, logger *logrus.Logger) *Recorder {
	if logger == nil {
		logger = logging.Discard()
	}
	r := &Recorder{
		store:  store,
		log:    logging.Component(logger, "history"),
		events: make(chan recordEvent, 64),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	for ev := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		var err error
		switch ev.kind {
		case recordStart:
			err = r.store.CreateRun(ctx, ev.rec)
		case recordFinish:
			err = r.store.FinishRun(ctx, ev.rec)
		}
		cancel()
		if err != nil {
			r.log.WithError(err).WithField("run_id", ev.rec.Id).Warn("history write failed")
		}
	}
}

func (r *Recorder) enqueue(ev recordEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	r.events <- ev
}

// RecordStart queues a newly started run.
func (r *Recorder) RecordStart(rec models.RunRecord) {
	r.enqueue(recordEvent{kind: recordStart, rec: rec})
}

// RecordFinish queues the final state of a run.
func (r *Recorder) RecordFinish(rec models.RunRecord) {
	r.enqueue(recordEvent{kind: recordFinish, rec: rec})
}

// Close stops accepting records and waits for queued writes to finish.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()
	r.wg.Wait()
}
