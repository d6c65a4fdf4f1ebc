package models

import "time"

// Nightscout treatment event types emitted by this layer
const (
	EventTemporaryOverride       = "Temporary Override"
	EventTemporaryOverrideCancel = "Temporary Override Cancel"
)

// Treatment is a Nightscout treatment document. Only the fields this layer
// writes are modeled; the careportal accepts sparse documents.
type Treatment struct {
	ID             string  `json:"_id,omitempty"`
	EventType      string  `json:"eventType"`
	CreatedAt      string  `json:"created_at"`
	Duration       float64 `json:"duration,omitempty"` // minutes
	TargetTop      float64 `json:"targetTop,omitempty"`
	TargetBottom   float64 `json:"targetBottom,omitempty"`
	Units          string  `json:"units,omitempty"`
	InsulinNeeds   float64 `json:"insulinNeedsScaleFactor,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	EnteredBy      string  `json:"enteredBy"`
	SyncIdentifier string  `json:"syncIdentifier,omitempty"`
}

// Time returns the treatment's creation time, or the zero time when the
// document carries none
func (t *Treatment) Time() time.Time {
	parsed, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// OverrideTreatment builds the treatment document announcing an override
// activation. The override's sync identifier ties the document to later
// cancellation.
func OverrideTreatment(o *ActiveOverride, presets []OverridePreset, unit, enteredBy string) *Treatment {
	t := &Treatment{
		EventType:      EventTemporaryOverride,
		CreatedAt:      o.StartDate.UTC().Format(time.RFC3339),
		TargetBottom:   o.TargetRange.Min,
		TargetTop:      o.TargetRange.Max,
		Units:          unit,
		InsulinNeeds:   o.InsulinNeedsScaleFactor,
		Reason:         o.DisplayName(presets),
		EnteredBy:      enteredBy,
		SyncIdentifier: o.SyncIdentifier,
	}
	if !o.IsIndefinite() {
		t.Duration = o.Duration.Minutes()
	}
	return t
}

// OverrideCancelTreatment builds the treatment document announcing that an
// override was cleared before its natural end
func OverrideCancelTreatment(o *ActiveOverride, at time.Time, enteredBy string) *Treatment {
	return &Treatment{
		EventType:      EventTemporaryOverrideCancel,
		CreatedAt:      at.UTC().Format(time.RFC3339),
		Duration:       at.Sub(o.StartDate).Minutes(),
		EnteredBy:      enteredBy,
		SyncIdentifier: o.SyncIdentifier,
	}
}
