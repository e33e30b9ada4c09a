package feed

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StageSentinel/internal/model"
)

func alert(id, symbol string, confidence float64) model.Alert {
	return model.Alert{
		ID:         id,
		Kind:       model.AlertStageTransition,
		Symbol:     symbol,
		Confidence: confidence,
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Unread:     true,
	}
}

func TestManager_AddListFilter(t *testing.T) {
	m, err := NewManager("", 10)
	require.NoError(t, err)

	m.Add(alert("a", "AAPL", 55))
	m.Add(alert("b", "NVDA", 85))
	m.Add(alert("c", "AAPL", 90))

	all := m.List(Filter{})
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID, "newest first")

	high := m.List(Filter{MinConfidence: 80})
	assert.Len(t, high, 2)

	aapl := m.List(Filter{Symbol: "aapl"})
	assert.Len(t, aapl, 2)

	limited := m.List(Filter{Limit: 1})
	require.Len(t, limited, 1)
	assert.Equal(t, "c", limited[0].ID)
}

func TestManager_ReadState(t *testing.T) {
	m, err := NewManager("", 10)
	require.NoError(t, err)
	m.Add(alert("a", "AAPL", 60))
	m.Add(alert("b", "AAPL", 60))

	assert.Equal(t, 2, m.UnreadCount())
	require.NoError(t, m.MarkRead("a"))
	assert.Equal(t, 1, m.UnreadCount())
	assert.ErrorIs(t, m.MarkRead("missing"), ErrNotFound)

	unread := m.List(Filter{UnreadOnly: true})
	require.Len(t, unread, 1)
	assert.Equal(t, "b", unread[0].ID)

	assert.Equal(t, 1, m.MarkAllRead())
	assert.Equal(t, 0, m.MarkAllRead())
	assert.Zero(t, m.UnreadCount())
}

func TestManager_Cap(t *testing.T) {
	m, err := NewManager("", 3)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		m.Add(alert(fmt.Sprintf("id-%d", i), "AAPL", 50))
	}
	all := m.List(Filter{})
	require.Len(t, all, 3)
	assert.Equal(t, "id-4", all[0].ID)
	assert.Equal(t, "id-2", all[2].ID)
}

func TestManager_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "feed.json")
	m, err := NewManager(path, 10)
	require.NoError(t, err)

	_, ok := m.LastStage("AAPL")
	assert.False(t, ok)

	m.Add(alert("a", "AAPL", 70))
	m.SetLastStage("AAPL", model.StageAdvancing)
	require.NoError(t, m.MarkRead("a"))

	reloaded, err := NewManager(path, 10)
	require.NoError(t, err)
	all := reloaded.List(Filter{})
	require.Len(t, all, 1)
	assert.False(t, all[0].Unread)
	s, ok := reloaded.LastStage("AAPL")
	require.True(t, ok)
	assert.Equal(t, model.StageAdvancing, s)
}
