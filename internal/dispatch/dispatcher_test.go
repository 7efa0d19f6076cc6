package dispatch

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexDash/consts"
	"github.com/dyike/CortexDash/internal/conn"
	"github.com/dyike/CortexDash/internal/pipeline"
	"github.com/dyike/CortexDash/models"
)

type fakeSender struct {
	mu     sync.Mutex
	status conn.Status
	err    error
	sent   [][]byte
}

func (f *fakeSender) Status() conn.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSender) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, b)
	return nil
}

var today = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func newDispatcher(sender *fakeSender) (*Dispatcher, *pipeline.Store) {
	store := pipeline.NewStore()
	d := New(sender, store, WithClock(func() time.Time { return today }), WithRunIDs(func() string { return "run-42" }))
	return d, store
}

func TestStartSendsCommand(t *testing.T) {
	sender := &fakeSender{status: conn.StatusConnected}
	d, store := newDispatcher(sender)

	req, err := d.Start(models.StartRequest{Ticker: "nvda"})
	require.NoError(t, err)
	assert.Equal(t, "NVDA", req.Ticker)
	assert.Equal(t, "2025-06-02", req.AnalysisDate)
	assert.Equal(t, "run-42", req.RunID)
	assert.True(t, store.IsRunning())

	require.Len(t, sender.sent, 1)
	var frame struct {
		Action  string         `json:"action"`
		Request map[string]any `json:"request"`
	}
	require.NoError(t, json.Unmarshal(sender.sent[0], &frame))
	assert.Equal(t, "start_analysis", frame.Action)
	assert.Equal(t, "NVDA", frame.Request["ticker"])
	assert.Equal(t, "run-42", frame.Request["run_id"])
	assert.Equal(t, consts.ReportLengthSummary, frame.Request["report_length"])
}

func TestStartRejectedWhenDisconnected(t *testing.T) {
	sender := &fakeSender{status: conn.StatusConnecting}
	d, store := newDispatcher(sender)

	_, err := d.Start(models.StartRequest{Ticker: "AAPL"})
	assert.ErrorIs(t, err, conn.ErrNotConnected)
	assert.False(t, store.IsRunning())
	assert.Empty(t, sender.sent)
}

func TestStartRejectedWhileRunning(t *testing.T) {
	sender := &fakeSender{status: conn.StatusConnected}
	d, store := newDispatcher(sender)
	_, err := d.Start(models.StartRequest{Ticker: "AAPL"})
	require.NoError(t, err)
	before := store.Snapshot()

	_, err = d.Start(models.StartRequest{Ticker: "MSFT"})
	assert.ErrorIs(t, err, pipeline.ErrRunActive)
	assert.Equal(t, before, store.Snapshot())
	assert.Len(t, sender.sent, 1)
}

func TestStartRejectsInvalidRequest(t *testing.T) {
	sender := &fakeSender{status: conn.StatusConnected}
	d, store := newDispatcher(sender)

	_, err := d.Start(models.StartRequest{})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
	_, err = d.Start(models.StartRequest{Ticker: "AAPL", AnalysisDate: "06/02/2025"})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
	assert.False(t, store.IsRunning())
	assert.Empty(t, sender.sent)
}

func TestStartSendFailureAbortsRun(t *testing.T) {
	sender := &fakeSender{status: conn.StatusConnected, err: errors.New("broken pipe")}
	d, store := newDispatcher(sender)

	_, err := d.Start(models.StartRequest{Ticker: "AAPL"})
	require.Error(t, err)
	st := store.Snapshot()
	assert.False(t, st.Run.IsRunning)
	assert.Equal(t, models.OutcomeFailed, st.Run.Outcome)
	assert.True(t, st.Payload.Has(consts.Report_Error))
}

func TestStopIsOptimistic(t *testing.T) {
	sender := &fakeSender{status: conn.StatusConnected}
	d, store := newDispatcher(sender)
	_, err := d.Start(models.StartRequest{Ticker: "AAPL"})
	require.NoError(t, err)
	require.NoError(t, store.Apply(models.StatusEvent{Agents: map[string]string{consts.Agent_MarketAnalyst: "completed"}}))

	require.NoError(t, d.Stop())
	st := store.Snapshot()
	assert.False(t, st.Run.IsRunning)
	assert.Equal(t, models.OutcomeStopped, st.Run.Outcome)
	status, _ := st.Agent(consts.Agent_MarketAnalyst)
	assert.Equal(t, models.StatusCompleted, status)
	status, _ = st.Agent(consts.Agent_Trader)
	assert.Equal(t, models.StatusError, status)
	require.Len(t, sender.sent, 2)
	assert.JSONEq(t, `{"action":"stop"}`, string(sender.sent[1]))
}

func TestStopSendFailureStillStopsLocally(t *testing.T) {
	sender := &fakeSender{status: conn.StatusConnected}
	d, store := newDispatcher(sender)
	_, err := d.Start(models.StartRequest{Ticker: "AAPL"})
	require.NoError(t, err)

	sender.mu.Lock()
	sender.err = errors.New("closed")
	sender.mu.Unlock()
	assert.Error(t, d.Stop())
	assert.False(t, store.IsRunning())
}

func TestStopRejections(t *testing.T) {
	sender := &fakeSender{status: conn.StatusDisconnected}
	d, _ := newDispatcher(sender)
	assert.ErrorIs(t, d.Stop(), conn.ErrNotConnected)

	sender.status = conn.StatusConnected
	assert.ErrorIs(t, d.Stop(), pipeline.ErrNoActiveRun)
	assert.Empty(t, sender.sent)
}
