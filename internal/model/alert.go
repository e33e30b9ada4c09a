package model

import "time"

// AlertKind indicates what raised the alert.
type AlertKind string

const (
	AlertStageTransition AlertKind = "STAGE_TRANSITION"
	AlertDigest          AlertKind = "DIGEST"
)

// Alert is one entry of the notification feed.
type Alert struct {
	ID         string    `json:"id"`
	Kind       AlertKind `json:"kind"`
	Symbol     string    `json:"symbol"`
	Title      string    `json:"title"`
	FromStage  Stage     `json:"fromStage,omitempty"`
	ToStage    Stage     `json:"toStage,omitempty"`
	Trigger    string    `json:"trigger,omitempty"`
	SATAScore  float64   `json:"sataScore"`
	Confidence float64   `json:"confidence"`
	Price      float64   `json:"price"`
	CreatedAt  time.Time `json:"createdAt"`
	Unread     bool      `json:"unread"`
}

// RatingComponent is one weighted part of a SATA score.
type RatingComponent struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Value  float64 `json:"value"`
}

// SetupRating is the dashboard's reading of a SATA score.
type SetupRating struct {
	Score      float64           `json:"score"`
	Components []RatingComponent `json:"components"`
	Tier       string            `json:"tier"`
	Confidence float64           `json:"confidence"`
}
