package surfaces

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/timex"
)

const DefaultAppointmentLimit = 10

// Appointments loads the upcoming, not yet completed appointments.
type Appointments struct {
	store Storage
	clock timex.Clock
	limit int
	view  View[[]models.Appointment]
}

func NewAppointments(store Storage, clock timex.Clock) *Appointments {
	if clock == nil {
		clock = timex.Real()
	}
	return &Appointments{store: store, clock: clock, limit: DefaultAppointmentLimit}
}

func (a *Appointments) View() *View[[]models.Appointment] { return &a.view }

func (a *Appointments) Refresh(ctx context.Context) error {
	gen := a.view.begin()
	now := a.clock.Now()
	q := url.Values{
		"starts_at": {"gte." + now.UTC().Format(time.RFC3339)},
		"done":      {"eq.false"},
		"order":     {"starts_at.asc"},
		"limit":     {strconv.Itoa(a.limit)},
	}
	var rows []models.Appointment
	if err := a.store.Select(ctx, TableAppointments, q, &rows); err != nil {
		return fmt.Errorf("appointments: %w", err)
	}
	a.view.commit(gen, rows, now)
	return nil
}

// FormatAppointments renders rows one per line.
func FormatAppointments(rows []models.Appointment) string {
	if len(rows) == 0 {
		return "No upcoming appointments.\n"
	}
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "  %s  %s", r.StartsAt.Local().Format("2006-01-02 15:04"), r.Title)
		if r.Location != "" {
			fmt.Fprintf(&b, " (%s)", r.Location)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
