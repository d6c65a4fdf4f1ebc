package models

import (
	"math"
	"time"
)

// Indefinite is the duration sentinel meaning "until manually cancelled"
const Indefinite = time.Duration(math.MaxInt64)

// Override context kinds
const (
	ContextPreMeal       = "preMeal"
	ContextLegacyWorkout = "legacyWorkout"
	ContextCustom        = "custom"
	ContextPreset        = "preset"
)

// OverrideContext tags the origin of an active override. PresetID is set only
// when Kind is ContextPreset.
type OverrideContext struct {
	Kind     string `json:"kind"`
	PresetID string `json:"presetId,omitempty"`
}

// Equal reports whether two contexts carry the same tag
func (c OverrideContext) Equal(other OverrideContext) bool {
	return c.Kind == other.Kind && c.PresetID == other.PresetID
}

// OverridePreset is a named, reusable override definition. Immutable once
// created; the preset library preserves insertion order for display.
type OverridePreset struct {
	Name                    string      `json:"name"`
	Symbol                  string      `json:"symbol"`
	TargetRange             DoubleRange `json:"targetRange"`
	InsulinNeedsScaleFactor float64     `json:"insulinNeedsScaleFactor"`
}

// ActiveOverride is the single currently-active temporary override. Expiry is
// a derived predicate, never a stored state: an expired override stays in
// place until explicitly cleared or replaced.
type ActiveOverride struct {
	Context                 OverrideContext `json:"context"`
	TargetRange             DoubleRange     `json:"targetRange"`
	InsulinNeedsScaleFactor float64         `json:"insulinNeedsScaleFactor"`
	StartDate               time.Time       `json:"startDate"`
	Duration                time.Duration   `json:"duration"` // Indefinite means no end
	SyncIdentifier          string          `json:"syncIdentifier,omitempty"`
}

// IsIndefinite reports whether the override has no scheduled end
func (o *ActiveOverride) IsIndefinite() bool {
	return o.Duration == Indefinite
}

// EndDate returns the end of the override interval and false when indefinite
func (o *ActiveOverride) EndDate() (time.Time, bool) {
	if o.IsIndefinite() {
		return time.Time{}, false
	}
	return o.StartDate.Add(o.Duration), true
}

// IsActive reports whether t falls within [StartDate, EndDate). A query
// exactly at the end date is not active.
func (o *ActiveOverride) IsActive(t time.Time) bool {
	if o == nil || t.Before(o.StartDate) {
		return false
	}
	end, ok := o.EndDate()
	if !ok {
		return true
	}
	return t.Before(end)
}

// IsPending reports whether the override starts after t
func (o *ActiveOverride) IsPending(t time.Time) bool {
	return o != nil && o.StartDate.After(t)
}

// IsExpired reports whether the override has a finite end at or before t
func (o *ActiveOverride) IsExpired(t time.Time) bool {
	if o == nil {
		return false
	}
	end, ok := o.EndDate()
	return ok && !t.Before(end)
}

// RemainingSeconds returns the seconds until the override ends, clamped to
// zero, and false when the override is indefinite
func (o *ActiveOverride) RemainingSeconds(t time.Time) (float64, bool) {
	end, ok := o.EndDate()
	if !ok {
		return 0, false
	}
	remaining := end.Sub(t).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Display labels for override status reporting
const (
	preMealLabel       = "Pre-Meal"
	legacyWorkoutLabel = "Workout"
	customLabel        = "Custom"
)

// DisplayName returns the reporting label for the override: a fixed label per
// built-in context, or the preset's own name for preset-sourced overrides.
func (o *ActiveOverride) DisplayName(presets []OverridePreset) string {
	switch o.Context.Kind {
	case ContextPreMeal:
		return preMealLabel
	case ContextLegacyWorkout:
		return legacyWorkoutLabel
	case ContextCustom:
		return customLabel
	case ContextPreset:
		for _, p := range presets {
			if p.Name == o.Context.PresetID {
				return p.Name
			}
		}
		return o.Context.PresetID
	}
	return customLabel
}
