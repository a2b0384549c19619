package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/surfaces"
)

// Report is the exported doctor summary.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	UserID      string    `json:"user_id,omitempty"`
	Email       string    `json:"email,omitempty"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`

	Morning surfaces.Averages `json:"morning"`
	Evening surfaces.Averages `json:"evening"`

	LatestWeightKg float64                `json:"latest_weight_kg,omitempty"`
	LatestWeightAt *time.Time             `json:"latest_weight_at,omitempty"`
	WeightDeltaKg  float64                `json:"weight_delta_kg,omitempty"`
	Readings       []models.BloodPressure `json:"readings"`
}

func NewReport(now time.Time, user models.User, s surfaces.DoctorSummary) Report {
	r := Report{
		GeneratedAt: now.UTC(),
		UserID:      user.ID,
		Email:       user.Email,
		From:        s.From.UTC(),
		To:          s.To.UTC(),
		Morning:     s.Morning,
		Evening:     s.Evening,
		Readings:    s.Readings,
	}
	if !s.LatestWeightAt.IsZero() {
		at := s.LatestWeightAt.UTC()
		r.LatestWeightKg = s.LatestWeight
		r.LatestWeightAt = &at
		r.WeightDeltaKg = s.WeightDelta
	}
	if r.Readings == nil {
		r.Readings = []models.BloodPressure{}
	}
	return r
}

// Name is the object or file name the report is stored under.
func (r Report) Name() string {
	return fmt.Sprintf("doctor-report-%s.json", r.GeneratedAt.UTC().Format("20060102T150405Z"))
}

func (r Report) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return buf.Bytes(), nil
}
