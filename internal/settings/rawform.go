package settings

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mrcode/loopbridge/internal/models"
)

// rawVersion is the current raw form version. Decoding any other version
// fails outright; there is no cross-version migration beyond the legacy
// embedded-override extraction below.
const rawVersion = 1

// ErrVersionMismatch is returned when the raw form's version tag is absent or
// not the current version
var ErrVersionMismatch = errors.New("settings: unsupported raw form version")

// rawRangeSchedule is the serialized form of the base target schedule. Older
// raw forms embedded the pre-meal and workout ranges inside it; current forms
// carry them as standalone fields.
type rawRangeSchedule struct {
	Unit      string                        `json:"unit"`
	Items     []models.RangeScheduleEntry   `json:"items"`
	Overrides map[string]models.DoubleRange `json:"overrideRanges,omitempty"`
}

// Legacy embedded override keys
const (
	legacyPreMealKey = "preMeal"
	legacyWorkoutKey = "workout"
)

// rawForm is the versioned key-value document persisted to disk
type rawForm struct {
	Version                    int                      `json:"version"`
	DosingEnabled              bool                     `json:"dosingEnabled"`
	GlucoseTargetRangeSchedule *rawRangeSchedule        `json:"glucoseTargetRangeSchedule,omitempty"`
	PreMealTargetRange         *models.DoubleRange      `json:"preMealTargetRange,omitempty"`
	WorkoutTargetRange         *models.DoubleRange      `json:"workoutTargetRange,omitempty"`
	OverridePresets            []models.OverridePreset  `json:"overridePresets,omitempty"`
	ScheduleOverride           *models.ActiveOverride   `json:"scheduleOverride,omitempty"`
	MaximumBasalRatePerHour    *float64                 `json:"maximumBasalRatePerHour,omitempty"`
	MaximumBolus               *float64                 `json:"maximumBolus,omitempty"`
	SuspendThreshold           *models.GlucoseThreshold `json:"suspendThreshold,omitempty"`
	BasalRateSchedule          *models.ValueSchedule    `json:"basalRateSchedule,omitempty"`
	CarbRatioSchedule          *models.ValueSchedule    `json:"carbRatioSchedule,omitempty"`
	InsulinSensitivitySchedule *models.ValueSchedule    `json:"insulinSensitivitySchedule,omitempty"`
	InsulinModel               *models.InsulinModel     `json:"insulinModel,omitempty"`
}

// encodeLocked serializes the whole store as a version-1 raw form
func (s *Store) encodeLocked() ([]byte, error) {
	raw := rawForm{
		Version:                    rawVersion,
		DosingEnabled:              s.dosingEnabled,
		PreMealTargetRange:         s.preMealTargetRange,
		WorkoutTargetRange:         s.legacyWorkoutTargetRange,
		OverridePresets:            s.overridePresets,
		ScheduleOverride:           s.scheduleOverride,
		MaximumBasalRatePerHour:    s.maximumBasalRatePerHour,
		MaximumBolus:               s.maximumBolus,
		SuspendThreshold:           s.suspendThreshold,
		BasalRateSchedule:          s.basalRateSchedule,
		CarbRatioSchedule:          s.carbRatioSchedule,
		InsulinSensitivitySchedule: s.insulinSensitivitySchedule,
		InsulinModel:               s.insulinModel,
	}
	if s.glucoseTargetRangeSchedule != nil {
		raw.GlucoseTargetRangeSchedule = &rawRangeSchedule{
			Unit:  s.glucoseTargetRangeSchedule.Unit,
			Items: s.glucoseTargetRangeSchedule.Items,
		}
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	return data, nil
}

// RawValue returns the current raw form document
func (s *Store) RawValue() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encodeLocked()
}

// decodeField extracts one field into dst, leaving dst untouched when the
// field is absent or mistyped. Decode is field-wise best-effort once the
// version check has passed.
func decodeField(fields map[string]json.RawMessage, key string, dst interface{}) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

// decodeLocked replaces the store's contents from a raw form document. The
// version tag is validated first; each field then fills independently with
// absent fields left at their defaults.
func (s *Store) decodeLocked(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("parsing settings: %w", err)
	}

	versionRaw, ok := fields["version"]
	if !ok {
		return ErrVersionMismatch
	}
	var version int
	if err := json.Unmarshal(versionRaw, &version); err != nil || version != rawVersion {
		return ErrVersionMismatch
	}

	s.dosingEnabled = false
	s.glucoseTargetRangeSchedule = nil
	s.preMealTargetRange = nil
	s.legacyWorkoutTargetRange = nil
	s.overridePresets = nil
	s.scheduleOverride = nil
	s.maximumBasalRatePerHour = nil
	s.maximumBolus = nil
	s.suspendThreshold = nil
	s.basalRateSchedule = nil
	s.carbRatioSchedule = nil
	s.insulinSensitivitySchedule = nil
	s.insulinModel = nil

	decodeField(fields, "dosingEnabled", &s.dosingEnabled)
	decodeField(fields, "preMealTargetRange", &s.preMealTargetRange)
	decodeField(fields, "workoutTargetRange", &s.legacyWorkoutTargetRange)
	decodeField(fields, "overridePresets", &s.overridePresets)
	decodeField(fields, "scheduleOverride", &s.scheduleOverride)
	decodeField(fields, "maximumBasalRatePerHour", &s.maximumBasalRatePerHour)
	decodeField(fields, "maximumBolus", &s.maximumBolus)
	decodeField(fields, "suspendThreshold", &s.suspendThreshold)
	decodeField(fields, "basalRateSchedule", &s.basalRateSchedule)
	decodeField(fields, "carbRatioSchedule", &s.carbRatioSchedule)
	decodeField(fields, "insulinSensitivitySchedule", &s.insulinSensitivitySchedule)
	decodeField(fields, "insulinModel", &s.insulinModel)

	var sched *rawRangeSchedule
	decodeField(fields, "glucoseTargetRangeSchedule", &sched)
	if sched != nil {
		s.glucoseTargetRangeSchedule = &models.RangeSchedule{
			Unit:  sched.Unit,
			Items: sched.Items,
		}

		// Legacy raw forms embedded the override ranges in the schedule.
		// Standalone fields take precedence when both exist.
		if r, ok := sched.Overrides[legacyPreMealKey]; ok {
			if _, present := fields["preMealTargetRange"]; !present {
				rr := r
				s.preMealTargetRange = &rr
			}
		}
		if r, ok := sched.Overrides[legacyWorkoutKey]; ok {
			if _, present := fields["workoutTargetRange"]; !present {
				rr := r
				s.legacyWorkoutTargetRange = &rr
			}
		}
	}

	return nil
}

// Decode constructs a store from a raw form document without attaching a
// persistence path. Construction fails when the version tag is absent or
// wrong; the caller falls back to defaults.
func Decode(data []byte) (*Store, error) {
	s := NewStore("")
	if err := s.decodeLocked(data); err != nil {
		return nil, err
	}
	return s, nil
}
