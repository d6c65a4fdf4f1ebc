// Package status coalesces point-in-time snapshots from the dosing
// subsystems into one outbound device status record.
package status

import (
	"context"
	"time"

	"github.com/mrcode/loopbridge/internal/models"
)

// LoopState is the dosing engine's snapshot for one completed cycle. Err is a
// field, not a hard failure: the rest of the snapshot may still be usable.
type LoopState struct {
	Err                  error
	RecommendedBolus     *float64
	CarbsOnBoard         *models.COBStatus
	PredictedGlucose     *models.PredictedGlucose
	RecommendedTempBasal *models.TempBasal
}

// DosingEngine is the controller's dosing subsystem
type DosingEngine interface {
	LoopState(ctx context.Context) LoopState
}

// DoseStore is the dose history subsystem
type DoseStore interface {
	InsulinOnBoard(ctx context.Context, at time.Time) (models.InsulinValue, error)
	LastReservoirReading() *models.ReservoirReading
}

// PumpSnapshot is the pump manager's current hardware state. TempBasal is the
// currently-running temporary basal, if any.
type PumpSnapshot struct {
	Clock           time.Time
	PumpID          string
	Manufacturer    string
	Model           string
	SecondsFromGMT  int
	BatteryFraction *float64 // [0, 1]
	Bolusing        bool
	Suspended       bool
	TempBasal       *models.TempBasal
}

// PumpManager exposes the pump hardware state. Status returns nil while no
// pump is paired.
type PumpManager interface {
	Status() *PumpSnapshot
}

// UploaderDevice describes the device performing uploads
type UploaderDevice interface {
	Name() string
	BatteryPercent() *int
}
