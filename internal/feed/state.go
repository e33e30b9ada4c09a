package feed

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"StageSentinel/internal/model"
)

// State is the persisted form of the feed.
type State struct {
	Alerts     []model.Alert          `json:"alerts"`
	LastStages map[string]model.Stage `json:"last_stages"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// LoadState reads the feed state from a JSON file. Returns an empty state if the file doesn't exist.
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{LastStages: map[string]model.Stage{}}, nil
		}
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.LastStages == nil {
		state.LastStages = map[string]model.Stage{}
	}
	return &state, nil
}

// SaveState writes the feed state to a JSON file, creating parent directories.
// An empty path keeps the state in memory only.
func SaveState(filePath string, state *State) error {
	state.UpdatedAt = time.Now()
	if filePath == "" {
		return nil
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0o644)
}
