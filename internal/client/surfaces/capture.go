package surfaces

import (
	"context"
	"errors"
	"fmt"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
)

var ErrInvalidReading = errors.New("invalid blood pressure reading")

// ValidateReading checks plausibility bounds of a manual entry.
func ValidateReading(r models.BloodPressure) error {
	switch {
	case r.Context != "morning" && r.Context != "evening":
		return fmt.Errorf("%w: context must be morning or evening", ErrInvalidReading)
	case r.Systolic < 60 || r.Systolic > 260:
		return fmt.Errorf("%w: systolic %d out of range", ErrInvalidReading, r.Systolic)
	case r.Diastolic < 30 || r.Diastolic > 160:
		return fmt.Errorf("%w: diastolic %d out of range", ErrInvalidReading, r.Diastolic)
	case r.Diastolic >= r.Systolic:
		return fmt.Errorf("%w: diastolic must be below systolic", ErrInvalidReading)
	case r.Pulse != 0 && (r.Pulse < 30 || r.Pulse > 220):
		return fmt.Errorf("%w: pulse %d out of range", ErrInvalidReading, r.Pulse)
	}
	return nil
}

// CaptureReading validates and stores r. The stored row is returned.
func CaptureReading(ctx context.Context, store Storage, r models.BloodPressure) (*models.BloodPressure, error) {
	if err := ValidateReading(r); err != nil {
		return nil, err
	}
	var rows []models.BloodPressure
	if err := store.Insert(ctx, TableBloodPressure, r, &rows); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	if len(rows) == 0 {
		return &r, nil
	}
	return &rows[0], nil
}
