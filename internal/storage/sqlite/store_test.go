package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexDash/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecord(id, ticker string) models.RunRecord {
	return models.RunRecord{
		Id:           id,
		Ticker:       ticker,
		AnalysisDate: "2025-01-02",
		Request:      models.StartRequest{Ticker: ticker, AnalysisDate: "2025-01-02", Analysts: []string{"market"}, RunID: id},
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestCreateAndFinishRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := sampleRecord("run-1", "AAPL")
	require.NoError(t, s.CreateRun(ctx, rec))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, []string{"market"}, got.Request.Analysts)
	assert.Equal(t, 0, got.FinalState.Len())
	assert.False(t, got.CreatedAt.IsZero())

	state, err := models.ParsePayload([]byte(`{"zeta":"z","final_trade_decision":{"decision":"BUY"},"alpha":"a"}`))
	require.NoError(t, err)
	rec.Status = StatusCompleted
	rec.Decision = "BUY"
	rec.FinalState = state
	rec.Thai = []models.ThaiReportSection{
		{Section: "market_report", ReportType: "full", Label: "ตลาด", Content: "หนึ่ง"},
		{Section: "news_report", ReportType: "full", Content: "สอง"},
	}
	require.NoError(t, s.FinishRun(ctx, rec))

	got, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "BUY", got.Decision)
	assert.Equal(t, []string{"zeta", "final_trade_decision", "alpha"}, got.FinalState.Keys())
	require.Len(t, got.Thai, 2)
	assert.Equal(t, "ตลาด", got.Thai[0].Label)
	assert.Equal(t, "news_report", got.Thai[1].Section)
}

func TestCreateRunDoesNotOverwriteFinish(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := sampleRecord("run-1", "AAPL")
	rec.Status = StatusFailed
	rec.Decision = "REVIEW"
	require.NoError(t, s.FinishRun(ctx, rec))
	require.NoError(t, s.CreateRun(ctx, sampleRecord("run-1", "AAPL")))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for _, r := range []models.RunRecord{
		sampleRecord("a", "AAPL"),
		sampleRecord("b", "MSFT"),
		sampleRecord("c", "AAPL"),
	} {
		require.NoError(t, s.CreateRun(ctx, r))
	}

	items, err := s.ListRuns(ctx, models.HistoryParams{})
	require.NoError(t, err)
	ids := []string{}
	for _, it := range items {
		ids = append(ids, it.Id)
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)
	assert.NotEmpty(t, items[0].CreatedAt)

	items, err = s.ListRuns(ctx, models.HistoryParams{Ticker: "aapl", Limit: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "c", items[0].Id)
}

func TestGetRunMissing(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}
