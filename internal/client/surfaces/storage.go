package surfaces

import (
	"context"
	"net/url"
	"time"
)

// Storage is the subset of the backend client the surfaces read from.
type Storage interface {
	Select(ctx context.Context, table string, query url.Values, out any) error
	Insert(ctx context.Context, table string, row any, out any) error
	RPC(ctx context.Context, fn string, args any, out any) error
}

const (
	TableBloodPressure = "blood_pressure"
	TableBodyMetrics   = "body_metrics"
	TableAppointments  = "appointments"
	FuncIntakeTotals   = "intake_totals_for_day"
)

const dayLayout = "2006-01-02"

func since(from time.Time) url.Values {
	return url.Values{
		"taken_at": {"gte." + from.UTC().Format(time.RFC3339)},
		"order":    {"taken_at.asc"},
	}
}
