package model

// Stage is one of the four Weinstein market phases.
type Stage int

const (
	StageBasing    Stage = 1
	StageAdvancing Stage = 2
	StageTopping   Stage = 3
	StageDeclining Stage = 4
)

// Stages lists the phases in their cyclical order.
var Stages = []Stage{StageBasing, StageAdvancing, StageTopping, StageDeclining}

func (s Stage) String() string {
	switch s {
	case StageBasing:
		return "Basing"
	case StageAdvancing:
		return "Advancing"
	case StageTopping:
		return "Topping"
	case StageDeclining:
		return "Declining"
	default:
		return "Unknown"
	}
}

// Valid reports whether s is one of the four stages.
func (s Stage) Valid() bool {
	return s >= StageBasing && s <= StageDeclining
}

// StagePoint holds the stage classification and SATA score for one day.
type StagePoint struct {
	Date      Date    `json:"date"`
	Stage     Stage   `json:"stage"`
	SATAScore float64 `json:"sataScore"`
}

// RelativeStrengthPoint is the price-vs-MA spread proxy for one day.
type RelativeStrengthPoint struct {
	Date  Date    `json:"date"`
	Value float64 `json:"value"`
}

// MomentumPoint is the scaled daily return for one day.
type MomentumPoint struct {
	Date  Date    `json:"date"`
	Value float64 `json:"value"`
}

// StageTransition records a change of stage between two consecutive days.
type StageTransition struct {
	Date      Date   `json:"date"`
	FromStage Stage  `json:"fromStage"`
	ToStage   Stage  `json:"toStage"`
	Trigger   string `json:"trigger"`
}

// StageAnalysis groups the per-day stage series and the transition log.
type StageAnalysis struct {
	Stages           []StagePoint            `json:"stages"`
	RelativeStrength []RelativeStrengthPoint `json:"relativeStrength"`
	Momentum         []MomentumPoint         `json:"momentum"`
	StageTransitions []StageTransition       `json:"stageTransitions"`
}

// StageSeries is the full output of one generation.
type StageSeries struct {
	Symbol           string               `json:"symbol"`
	PriceData        []DailyBar           `json:"priceData"`
	MovingAverage30W []MovingAveragePoint `json:"movingAverage30W"`
	StageAnalysis    StageAnalysis        `json:"stageAnalysis"`
}

// Len returns the number of generated days.
func (s *StageSeries) Len() int { return len(s.PriceData) }
