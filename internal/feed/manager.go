package feed

import (
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"StageSentinel/internal/model"
)

// ErrNotFound is returned for unknown alert ids.
var ErrNotFound = errors.New("alert not found")

// Filter narrows List results. Zero values disable a criterion.
type Filter struct {
	UnreadOnly    bool
	MinConfidence float64
	Symbol        string
	Limit         int
}

// Manager holds the alert feed, newest first, with concurrency safety.
type Manager struct {
	mu       sync.Mutex
	state    *State
	filePath string
	maxItems int
}

// NewManager creates a Manager, loading state from filePath when it exists.
func NewManager(filePath string, maxItems int) (*Manager, error) {
	state, err := LoadState(filePath)
	if err != nil {
		return nil, err
	}
	if maxItems <= 0 {
		maxItems = 200
	}
	m := &Manager{state: state, filePath: filePath, maxItems: maxItems}
	m.trim()
	return m, nil
}

// Add prepends an alert, dropping the oldest beyond the cap.
func (m *Manager) Add(a model.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Alerts = append([]model.Alert{a}, m.state.Alerts...)
	m.trim()
	m.save()
}

// List returns a copy of the alerts matching f, newest first.
func (m *Manager) List(f Filter) []model.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.Alert{}
	for _, a := range m.state.Alerts {
		if f.UnreadOnly && !a.Unread {
			continue
		}
		if a.Confidence < f.MinConfidence {
			continue
		}
		if f.Symbol != "" && !strings.EqualFold(a.Symbol, f.Symbol) {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// MarkRead clears the unread flag of one alert.
func (m *Manager) MarkRead(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.state.Alerts {
		if m.state.Alerts[i].ID == id {
			m.state.Alerts[i].Unread = false
			m.save()
			return nil
		}
	}
	return ErrNotFound
}

// MarkAllRead clears every unread flag and returns how many changed.
func (m *Manager) MarkAllRead() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for i := range m.state.Alerts {
		if m.state.Alerts[i].Unread {
			m.state.Alerts[i].Unread = false
			n++
		}
	}
	if n > 0 {
		m.save()
	}
	return n
}

// UnreadCount returns the number of unread alerts.
func (m *Manager) UnreadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, a := range m.state.Alerts {
		if a.Unread {
			n++
		}
	}
	return n
}

// LastStage returns the stage last seen for symbol.
func (m *Manager) LastStage(symbol string) (model.Stage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.state.LastStages[symbol]
	return s, ok
}

// SetLastStage records the stage seen for symbol.
func (m *Manager) SetLastStage(symbol string, s model.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.state.LastStages[symbol]; ok && prev == s {
		return
	}
	m.state.LastStages[symbol] = s
	m.save()
}

func (m *Manager) trim() {
	if len(m.state.Alerts) > m.maxItems {
		m.state.Alerts = m.state.Alerts[:m.maxItems]
	}
}

func (m *Manager) save() {
	if err := SaveState(m.filePath, m.state); err != nil {
		log.Error().Err(err).Str("path", m.filePath).Msg("failed to save feed state")
	}
}
