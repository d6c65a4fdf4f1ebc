package models

import "time"

// DeviceStatus is the aggregated status record uploaded to Nightscout's
// devicestatus collection. It is built fresh per reporting cycle and never
// persisted. Every sub-document independently reflects whether its subsystem
// produced a value this cycle; absence is not an error.
type DeviceStatus struct {
	Device    string          `json:"device"`
	Timestamp time.Time       `json:"created_at"`
	Loop      *LoopStatus     `json:"loop,omitempty"`
	Pump      *PumpStatus     `json:"pump,omitempty"`
	Uploader  *UploaderStatus `json:"uploader,omitempty"`
	Override  *OverrideStatus `json:"override,omitempty"`
}

// LoopStatus carries the dosing subsystem's view of the cycle
type LoopStatus struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Timestamp            time.Time         `json:"timestamp"`
	IOB                  *IOBStatus        `json:"iob,omitempty"`
	COB                  *COBStatus        `json:"cob,omitempty"`
	Predicted            *PredictedGlucose `json:"predicted,omitempty"`
	RecommendedTempBasal *TempBasal        `json:"recommendedTempBasal,omitempty"`
	RecommendedBolus     *float64          `json:"recommendedBolus,omitempty"`
	Enacted              *TempBasal        `json:"enacted,omitempty"`
	FailureReason        string            `json:"failureReason,omitempty"`
}

// IOBStatus is a point-in-time insulin-on-board reading
type IOBStatus struct {
	Timestamp time.Time `json:"timestamp"`
	IOB       float64   `json:"iob"`
}

// COBStatus is a point-in-time carbs-on-board reading
type COBStatus struct {
	Timestamp time.Time `json:"timestamp"`
	COB       float64   `json:"cob"`
}

// PredictedGlucose is the dosing engine's forecast series, in mg/dL at
// five-minute intervals from StartDate
type PredictedGlucose struct {
	StartDate time.Time `json:"startDate"`
	Values    []float64 `json:"values"`
}

// TempBasal describes a recommended or enacted temporary basal rate
type TempBasal struct {
	Timestamp time.Time     `json:"timestamp"`
	Rate      float64       `json:"rate"`     // U/hr
	Duration  time.Duration `json:"duration"` // scheduled run length
	Received  bool          `json:"received,omitempty"`
}

// PumpStatus reflects the pump hardware at aggregation time
type PumpStatus struct {
	Clock          time.Time    `json:"clock"`
	PumpID         string       `json:"pumpID"`
	Manufacturer   string       `json:"manufacturer,omitempty"`
	Model          string       `json:"model,omitempty"`
	SecondsFromGMT int          `json:"secondsFromGMT"`
	Battery        *PumpBattery `json:"battery,omitempty"`
	Reservoir      *float64     `json:"reservoir,omitempty"`
	Bolusing       bool         `json:"bolusing"`
	Suspended      bool         `json:"suspended"`
}

// PumpBattery is the pump's battery level as a fraction [0,1]
type PumpBattery struct {
	Percent int `json:"percent"`
}

// ReservoirReading is the most recent reservoir volume report
type ReservoirReading struct {
	Timestamp time.Time `json:"timestamp"`
	Units     float64   `json:"units"`
}

// UploaderStatus describes the device performing the upload
type UploaderStatus struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Battery   *int      `json:"battery,omitempty"`
}

// OverrideStatus is the override sub-record of a device status. When no
// override is active only Active=false is emitted.
type OverrideStatus struct {
	Active                 bool         `json:"active"`
	Name                   string       `json:"name,omitempty"`
	Timestamp              time.Time    `json:"timestamp,omitempty"`
	CurrentCorrectionRange *DoubleRange `json:"currentCorrectionRange,omitempty"`
	Duration               *float64     `json:"duration,omitempty"` // seconds remaining, nil when indefinite
	Multiplier             *float64     `json:"multiplier,omitempty"`
}

// InsulinValue is an insulin quantity at a point in time, as returned by the
// dose history store
type InsulinValue struct {
	StartDate time.Time `json:"startDate"`
	Value     float64   `json:"value"`
}
