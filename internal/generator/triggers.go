package generator

import "StageSentinel/internal/model"

// DefaultTrigger describes transitions that have no dedicated entry.
const DefaultTrigger = "Technical indicator threshold"

type transitionKey struct {
	from, to model.Stage
}

var triggers = map[transitionKey]string{
	{model.StageBasing, model.StageAdvancing}:  "Breakout above 30W MA on volume",
	{model.StageAdvancing, model.StageTopping}: "Failed rally, momentum divergence",
	{model.StageTopping, model.StageDeclining}: "Breakdown below 30W MA on volume",
	{model.StageDeclining, model.StageBasing}:  "Base formation, volume drying up",
}

// TriggerFor returns the description recorded for a from→to transition.
func TriggerFor(from, to model.Stage) string {
	if t, ok := triggers[transitionKey{from, to}]; ok {
		return t
	}
	return DefaultTrigger
}
