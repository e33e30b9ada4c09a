package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StageSentinel/internal/model"
)

func openTestDB(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "db", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestSQLiteRecorder_Runs(t *testing.T) {
	r := openTestDB(t)

	first := &RunRecord{
		RunID: "run-1", Symbol: "AAPL", Source: "synthetic",
		StartDate: mustDate(t, "2024-01-01"), EndDate: mustDate(t, "2024-12-31"),
		BasePrice: 150, Days: 365, Stage: model.StageDeclining, SATAScore: 3.2, Close: 171.4,
		CreatedAt: time.Unix(1_700_000_000, 0),
	}
	second := *first
	second.RunID = "run-2"
	second.Symbol = "NVDA"
	second.CreatedAt = time.Unix(1_700_000_600, 0)

	require.NoError(t, r.RecordRun(first))
	require.NoError(t, r.RecordRun(&second))
	assert.Error(t, r.RecordRun(first), "run ids are unique")

	runs, err := r.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, "AAPL", runs[1].Symbol)
	assert.Equal(t, model.StageDeclining, runs[1].Stage)
	assert.Equal(t, "2024-12-31", runs[1].EndDate.String())
	assert.Equal(t, 365, runs[1].Days)

	limited, err := r.RecentRuns(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteRecorder_TransitionsAndAlerts(t *testing.T) {
	r := openTestDB(t)

	transitions := []model.StageTransition{
		{Date: mustDate(t, "2024-04-01"), FromStage: 1, ToStage: 2, Trigger: "Breakout above 30W MA on volume"},
		{Date: mustDate(t, "2024-08-06"), FromStage: 2, ToStage: 3, Trigger: "Failed rally, momentum divergence"},
	}
	require.NoError(t, r.RecordRun(&RunRecord{
		RunID: "run-1", Symbol: "AAPL", Source: "synthetic",
		StartDate: mustDate(t, "2024-01-01"), EndDate: mustDate(t, "2024-12-31"),
		CreatedAt: time.Unix(1_700_000_000, 0),
	}))
	require.NoError(t, r.RecordTransitions("run-1", "AAPL", transitions))
	require.NoError(t, r.RecordTransitions("run-1", "AAPL", nil))
	require.NoError(t, r.RecordTransitions("run-2", "NVDA", transitions[:1]))

	runs, err := r.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Transitions)

	a := &model.Alert{
		ID: "alert-1", Kind: model.AlertStageTransition, Symbol: "AAPL",
		FromStage: 1, ToStage: 2, Confidence: 80, CreatedAt: time.Now(),
	}
	require.NoError(t, r.RecordAlert(a))
	require.NoError(t, r.RecordAlert(a), "re-recording an alert replaces it")
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordRun(&RunRecord{}))
	assert.NoError(t, r.RecordAlert(&model.Alert{}))
	runs, err := r.RecentRuns(5)
	assert.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, r.Close())
}
