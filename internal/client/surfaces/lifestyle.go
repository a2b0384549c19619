package surfaces

import (
	"context"
	"fmt"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/timex"
)

// Lifestyle loads today's intake totals.
type Lifestyle struct {
	store Storage
	clock timex.Clock
	view  View[models.IntakeTotals]
}

func NewLifestyle(store Storage, clock timex.Clock) *Lifestyle {
	if clock == nil {
		clock = timex.Real()
	}
	return &Lifestyle{store: store, clock: clock}
}

func (l *Lifestyle) View() *View[models.IntakeTotals] { return &l.view }

func (l *Lifestyle) Refresh(ctx context.Context) error {
	gen := l.view.begin()
	now := l.clock.Now()
	day := now.Format(dayLayout)

	// The function returns a set; an empty one means nothing was logged.
	var rows []models.IntakeTotals
	if err := l.store.RPC(ctx, FuncIntakeTotals, map[string]string{"p_day": day}, &rows); err != nil {
		return fmt.Errorf("lifestyle: %w", err)
	}
	totals := models.IntakeTotals{Day: day}
	if len(rows) > 0 {
		totals = rows[0]
		if totals.Day == "" {
			totals.Day = day
		}
	}
	l.view.commit(gen, totals, now)
	return nil
}

// FormatIntake renders the totals against their goals when set.
func FormatIntake(t models.IntakeTotals) string {
	s := fmt.Sprintf("Intake %s\n  water    %.0f ml", t.Day, t.WaterMl)
	if t.WaterGoal > 0 {
		s += fmt.Sprintf(" / %.0f ml", t.WaterGoal)
	}
	s += fmt.Sprintf("\n  salt     %.1f g", t.SaltG)
	if t.SaltLimit > 0 {
		s += fmt.Sprintf(" / %.1f g", t.SaltLimit)
	}
	s += fmt.Sprintf("\n  protein  %.0f g\n", t.ProteinG)
	return s
}
