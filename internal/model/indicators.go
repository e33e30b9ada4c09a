package model

// Indicators holds the summary computed for one day of a generated series.
type Indicators struct {
	Date             Date    `json:"date"`
	Close            float64 `json:"close"`
	MovingAverage    float64 `json:"movingAverage"`
	RSI              float64 `json:"rsi"`
	PeriodHigh       float64 `json:"periodHigh"`
	PeriodLow        float64 `json:"periodLow"`
	RangePosition    float64 `json:"rangePosition"` // 0.0 ~ 1.0
	Stage            Stage   `json:"stage"`
	SATAScore        float64 `json:"sataScore"`
	RelativeStrength float64 `json:"relativeStrength"`
	Momentum         float64 `json:"momentum"`
}
