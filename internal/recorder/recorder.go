package recorder

import (
	"time"

	"StageSentinel/internal/model"
)

// RunRecord summarizes one generation run.
type RunRecord struct {
	RunID     string      `json:"runId"`
	Symbol    string      `json:"symbol"`
	Source    string      `json:"source"`
	StartDate model.Date  `json:"startDate"`
	EndDate   model.Date  `json:"endDate"`
	BasePrice float64     `json:"basePrice"`
	Days      int         `json:"days"`
	Stage     model.Stage `json:"stage"`
	SATAScore float64     `json:"sataScore"`
	Close     float64     `json:"close"`
	CreatedAt time.Time   `json:"createdAt"`

	// Transitions is filled on read from the stored stage transitions of the run.
	Transitions int `json:"transitions"`
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordRun(run *RunRecord) error
	RecordTransitions(runID, symbol string, transitions []model.StageTransition) error
	RecordAlert(alert *model.Alert) error
	RecentRuns(limit int) ([]RunRecord, error)
	Close() error
}
