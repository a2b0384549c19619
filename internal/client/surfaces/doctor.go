package surfaces

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/timex"
)

const DefaultDoctorDays = 30

// Averages are mean blood-pressure values for one measurement context.
type Averages struct {
	Readings  int     `json:"readings"`
	Systolic  float64 `json:"systolic"`
	Diastolic float64 `json:"diastolic"`
	Pulse     float64 `json:"pulse"`
}

// DoctorSummary is the doctor view covering [From, To].
type DoctorSummary struct {
	From    time.Time
	To      time.Time
	Morning Averages
	Evening Averages

	LatestWeight   float64
	LatestWeightAt time.Time
	WeightDelta    float64
	Readings       []models.BloodPressure
}

// Doctor loads the doctor summary.
type Doctor struct {
	store Storage
	clock timex.Clock
	days  int
	view  View[DoctorSummary]
}

func NewDoctor(store Storage, clock timex.Clock) *Doctor {
	if clock == nil {
		clock = timex.Real()
	}
	return &Doctor{store: store, clock: clock, days: DefaultDoctorDays}
}

func (d *Doctor) View() *View[DoctorSummary] { return &d.view }

func (d *Doctor) Refresh(ctx context.Context) error {
	gen := d.view.begin()
	now := d.clock.Now()
	from := now.AddDate(0, 0, -d.days)

	var (
		bp   []models.BloodPressure
		body []models.BodyMetrics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := d.store.Select(gctx, TableBloodPressure, since(from), &bp); err != nil {
			return fmt.Errorf("doctor: blood pressure: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := d.store.Select(gctx, TableBodyMetrics, since(from), &body); err != nil {
			return fmt.Errorf("doctor: body metrics: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	d.view.commit(gen, Summarize(bp, body, from, now), now)
	return nil
}

// Summarize computes the doctor summary of the given rows.
func Summarize(bp []models.BloodPressure, body []models.BodyMetrics, from, to time.Time) DoctorSummary {
	s := DoctorSummary{From: from, To: to, Readings: bp}
	s.Morning = average(bp, "morning")
	s.Evening = average(bp, "evening")

	var first *models.BodyMetrics
	for i := range body {
		b := &body[i]
		if b.WeightKg <= 0 {
			continue
		}
		if first == nil || b.TakenAt.Before(first.TakenAt) {
			first = b
		}
		if b.TakenAt.After(s.LatestWeightAt) {
			s.LatestWeight = b.WeightKg
			s.LatestWeightAt = b.TakenAt
		}
	}
	if first != nil {
		s.WeightDelta = round1(s.LatestWeight - first.WeightKg)
	}
	return s
}

func average(rows []models.BloodPressure, which string) Averages {
	var a Averages
	var sys, dia, pulse int
	for _, r := range rows {
		if r.Context != which {
			continue
		}
		a.Readings++
		sys += r.Systolic
		dia += r.Diastolic
		pulse += r.Pulse
	}
	if a.Readings == 0 {
		return a
	}
	n := float64(a.Readings)
	a.Systolic = round1(float64(sys) / n)
	a.Diastolic = round1(float64(dia) / n)
	a.Pulse = round1(float64(pulse) / n)
	return a
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func (s DoctorSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Doctor view %s .. %s\n", s.From.Format(dayLayout), s.To.Format(dayLayout))
	for _, row := range []struct {
		name string
		avg  Averages
	}{{"morning", s.Morning}, {"evening", s.Evening}} {
		if row.avg.Readings == 0 {
			fmt.Fprintf(&b, "  %-8s no readings\n", row.name)
			continue
		}
		fmt.Fprintf(&b, "  %-8s %.1f/%.1f mmHg, pulse %.1f (%d readings)\n",
			row.name, row.avg.Systolic, row.avg.Diastolic, row.avg.Pulse, row.avg.Readings)
	}
	if s.LatestWeightAt.IsZero() {
		b.WriteString("  weight   no measurements\n")
	} else {
		fmt.Fprintf(&b, "  weight   %.1f kg (%+.1f) on %s\n", s.LatestWeight, s.WeightDelta, s.LatestWeightAt.Format(dayLayout))
	}
	return b.String()
}
