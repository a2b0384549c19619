package surfaces

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/timex"
)

const DefaultChartDays = 30

var bars = []rune("▁▂▃▄▅▆▇█")

// Series is the chart data in reading order.
type Series struct {
	From      time.Time
	Systolic  []int
	Diastolic []int
}

// Chart loads the blood-pressure series.
type Chart struct {
	store Storage
	clock timex.Clock
	days  int
	view  View[Series]
}

func NewChart(store Storage, clock timex.Clock) *Chart {
	if clock == nil {
		clock = timex.Real()
	}
	return &Chart{store: store, clock: clock, days: DefaultChartDays}
}

func (c *Chart) View() *View[Series] { return &c.view }

func (c *Chart) Refresh(ctx context.Context) error {
	gen := c.view.begin()
	now := c.clock.Now()
	from := now.AddDate(0, 0, -c.days)

	var rows []models.BloodPressure
	if err := c.store.Select(ctx, TableBloodPressure, since(from), &rows); err != nil {
		return fmt.Errorf("chart: %w", err)
	}
	s := Series{From: from}
	for _, r := range rows {
		s.Systolic = append(s.Systolic, r.Systolic)
		s.Diastolic = append(s.Diastolic, r.Diastolic)
	}
	c.view.commit(gen, s, now)
	return nil
}

// Sparkline scales values between their minimum and maximum onto eight bar
// heights. A flat series renders at the lowest bar.
func Sparkline(values []int) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	out := make([]rune, len(values))
	for i, v := range values {
		idx := 0
		if hi > lo {
			idx = (v - lo) * (len(bars) - 1) / (hi - lo)
		}
		out[i] = bars[idx]
	}
	return string(out)
}

func (s Series) String() string {
	if len(s.Systolic) == 0 {
		return "No readings to chart.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Blood pressure since %s (%d readings)\n", s.From.Format(dayLayout), len(s.Systolic))
	fmt.Fprintf(&b, "  sys %s\n", Sparkline(s.Systolic))
	fmt.Fprintf(&b, "  dia %s\n", Sparkline(s.Diastolic))
	return b.String()
}
