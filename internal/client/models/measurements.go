package models

import "time"

// BloodPressure is one captured reading.
type BloodPressure struct {
	ID         string    `json:"id,omitempty"`
	TakenAt    time.Time `json:"taken_at"`
	Context    string    `json:"context"` // "morning" | "evening"
	Systolic   int       `json:"systolic"`
	Diastolic  int       `json:"diastolic"`
	Pulse      int       `json:"pulse"`
	Annotation string    `json:"annotation,omitempty"`
}

// BodyMetrics is one body measurement.
type BodyMetrics struct {
	ID        string    `json:"id"`
	TakenAt   time.Time `json:"taken_at"`
	WeightKg  float64   `json:"weight_kg"`
	WaistCm   float64   `json:"waist_cm,omitempty"`
	FatPct    float64   `json:"fat_pct,omitempty"`
	MusclePct float64   `json:"muscle_pct,omitempty"`
}

// IntakeTotals are the day's nutrition totals returned by the backend RPC.
type IntakeTotals struct {
	Day       string  `json:"day"`
	WaterMl   float64 `json:"water_ml"`
	SaltG     float64 `json:"salt_g"`
	ProteinG  float64 `json:"protein_g"`
	WaterGoal float64 `json:"water_goal_ml"`
	SaltLimit float64 `json:"salt_limit_g"`
}

type Appointment struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Location string    `json:"location,omitempty"`
	StartsAt time.Time `json:"starts_at"`
	Done     bool      `json:"done"`
}
