// Package settings holds the persisted dosing configuration and the
// temporary-override state machine.
package settings

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrcode/loopbridge/internal/models"
)

// UpdateContext distinguishes what kind of change a notification announces
type UpdateContext int

const (
	// UpdatePreferences covers user-visible configuration changes
	UpdatePreferences UpdateContext = iota
	// UpdateOverride covers override enable/clear transitions
	UpdateOverride
)

// Notification announces a persisted settings change. Override transitions
// carry the override that was enabled and/or the one that was displaced, so
// the consumer can mirror them to the careportal.
type Notification struct {
	Context   UpdateContext
	At        time.Time
	Enabled   *models.ActiveOverride
	Cancelled *models.ActiveOverride
}

// Store aggregates the dosing configuration into one versioned, serializable
// object. All mutations are synchronous and in-memory; the whole object is
// the unit of persistence.
type Store struct {
	mu     sync.RWMutex
	path   string
	events chan Notification

	dosingEnabled              bool
	glucoseTargetRangeSchedule *models.RangeSchedule
	preMealTargetRange         *models.DoubleRange
	legacyWorkoutTargetRange   *models.DoubleRange
	overridePresets            []models.OverridePreset
	scheduleOverride           *models.ActiveOverride
	maximumBasalRatePerHour    *float64
	maximumBolus               *float64
	suspendThreshold           *models.GlucoseThreshold
	basalRateSchedule          *models.ValueSchedule
	carbRatioSchedule          *models.ValueSchedule
	insulinSensitivitySchedule *models.ValueSchedule
	insulinModel               *models.InsulinModel
}

// NewStore returns an empty store persisting to path. An empty path disables
// disk writes (used by tests and by callers that persist elsewhere).
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		events: make(chan Notification, 16),
	}
}

// ConfigDir returns the directory holding the settings file, creating it if
// needed
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, "loopbridge")
	if err := os.MkdirAll(appDir, 0750); err != nil {
		return "", err
	}

	return appDir, nil
}

// ConfigPath returns the default settings file location
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// Load reads the store's settings file. A missing file leaves the store at
// defaults; a version mismatch is returned as ErrVersionMismatch and the
// store is left untouched.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return s.decodeLocked(data)
}

// Save writes the current raw form to the settings file
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := s.encodeLocked()
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Events returns the change notification channel. Notifications are dropped,
// never blocked on, when the consumer falls behind.
func (s *Store) Events() <-chan Notification {
	return s.events
}

func (s *Store) notify(n Notification) {
	select {
	case s.events <- n:
	default:
	}
}

// mutate applies fn under the write lock. When fn reports a change the whole
// object is persisted and a notification emitted; no-ops leave both alone.
func (s *Store) mutate(ctx UpdateContext, at time.Time, fn func() (changed bool, enabled, cancelled *models.ActiveOverride)) {
	s.mu.Lock()
	changed, enabled, cancelled := fn()
	if changed {
		_ = s.saveLocked()
	}
	s.mu.Unlock()

	if changed {
		s.notify(Notification{Context: ctx, At: at, Enabled: enabled, Cancelled: cancelled})
	}
}

// setPreference is the common path for plain preference setters
func (s *Store) setPreference(fn func()) {
	s.mutate(UpdatePreferences, time.Now(), func() (bool, *models.ActiveOverride, *models.ActiveOverride) {
		fn()
		return true, nil, nil
	})
}

// GlucoseUnit returns the unit of the base target schedule, or "" when no
// base schedule is configured. Override operations that need a unit no-op
// while it is undefined.
func (s *Store) GlucoseUnit() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.glucoseUnitLocked()
}

func (s *Store) glucoseUnitLocked() string {
	if s.glucoseTargetRangeSchedule == nil {
		return ""
	}
	return s.glucoseTargetRangeSchedule.Unit
}

// ActiveOverride returns a copy of the current override record, active or not
func (s *Store) ActiveOverride() *models.ActiveOverride {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.scheduleOverride == nil {
		return nil
	}
	o := *s.scheduleOverride
	return &o
}

// OverridePresets returns a copy of the preset library
func (s *Store) OverridePresets() []models.OverridePreset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.OverridePreset, len(s.overridePresets))
	copy(out, s.overridePresets)
	return out
}

// DosingEnabled reports whether closed-loop dosing is switched on
func (s *Store) DosingEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dosingEnabled
}

// EnablePreMealOverride activates the pre-meal target override for the given
// duration, replacing any existing override. It is a no-op while the
// pre-meal range or the glucose unit is unconfigured.
func (s *Store) EnablePreMealOverride(at time.Time, duration time.Duration) {
	s.mutate(UpdateOverride, at, func() (bool, *models.ActiveOverride, *models.ActiveOverride) {
		if s.preMealTargetRange == nil || s.glucoseUnitLocked() == "" {
			return false, nil, nil
		}
		enabled, cancelled := s.replaceOverrideLocked(&models.ActiveOverride{
			Context:                 models.OverrideContext{Kind: models.ContextPreMeal},
			TargetRange:             *s.preMealTargetRange,
			InsulinNeedsScaleFactor: 1,
			StartDate:               at,
			Duration:                duration,
			SyncIdentifier:          uuid.New().String(),
		}, at)
		return true, enabled, cancelled
	})
}

// EnableLegacyWorkoutOverride activates the workout target override. Passing
// models.Indefinite keeps it active until explicitly cleared. It is a no-op
// while the workout range or the glucose unit is unconfigured.
func (s *Store) EnableLegacyWorkoutOverride(at time.Time, duration time.Duration) {
	s.mutate(UpdateOverride, at, func() (bool, *models.ActiveOverride, *models.ActiveOverride) {
		if s.legacyWorkoutTargetRange == nil || s.glucoseUnitLocked() == "" {
			return false, nil, nil
		}
		enabled, cancelled := s.replaceOverrideLocked(&models.ActiveOverride{
			Context:                 models.OverrideContext{Kind: models.ContextLegacyWorkout},
			TargetRange:             *s.legacyWorkoutTargetRange,
			InsulinNeedsScaleFactor: 1,
			StartDate:               at,
			Duration:                duration,
			SyncIdentifier:          uuid.New().String(),
		}, at)
		return true, enabled, cancelled
	})
}

// EnableCustomOverride activates a one-off override with an explicit target
// range and insulin-needs scale factor. No-op while the unit is unconfigured
// or the inputs are invalid.
func (s *Store) EnableCustomOverride(target models.DoubleRange, scaleFactor float64, at time.Time, duration time.Duration) {
	s.mutate(UpdateOverride, at, func() (bool, *models.ActiveOverride, *models.ActiveOverride) {
		if s.glucoseUnitLocked() == "" || scaleFactor <= 0 || !target.IsValid() {
			return false, nil, nil
		}
		enabled, cancelled := s.replaceOverrideLocked(&models.ActiveOverride{
			Context:                 models.OverrideContext{Kind: models.ContextCustom},
			TargetRange:             target,
			InsulinNeedsScaleFactor: scaleFactor,
			StartDate:               at,
			Duration:                duration,
			SyncIdentifier:          uuid.New().String(),
		}, at)
		return true, enabled, cancelled
	})
}

// EnablePresetOverride activates a preset from the library by name. No-op
// when the preset is unknown or the unit is unconfigured.
func (s *Store) EnablePresetOverride(name string, at time.Time, duration time.Duration) {
	s.mutate(UpdateOverride, at, func() (bool, *models.ActiveOverride, *models.ActiveOverride) {
		if s.glucoseUnitLocked() == "" {
			return false, nil, nil
		}
		for _, p := range s.overridePresets {
			if p.Name == name {
				enabled, cancelled := s.replaceOverrideLocked(&models.ActiveOverride{
					Context:                 models.OverrideContext{Kind: models.ContextPreset, PresetID: p.Name},
					TargetRange:             p.TargetRange,
					InsulinNeedsScaleFactor: p.InsulinNeedsScaleFactor,
					StartDate:               at,
					Duration:                duration,
					SyncIdentifier:          uuid.New().String(),
				}, at)
				return true, enabled, cancelled
			}
		}
		return false, nil, nil
	})
}

// replaceOverrideLocked installs o as the single active override. The
// previous record is reported as cancelled only when it was still active.
func (s *Store) replaceOverrideLocked(o *models.ActiveOverride, at time.Time) (enabled, cancelled *models.ActiveOverride) {
	prev := s.scheduleOverride
	if prev != nil && prev.IsActive(at) {
		cancelled = prev
	}
	s.scheduleOverride = o
	return o, cancelled
}

// ClearOverride removes the active override. With a non-nil context it clears
// only a matching override; clearing when none exists is a no-op.
func (s *Store) ClearOverride(matching *models.OverrideContext, at time.Time) {
	s.mutate(UpdateOverride, at, func() (bool, *models.ActiveOverride, *models.ActiveOverride) {
		prev := s.scheduleOverride
		if prev == nil {
			return false, nil, nil
		}
		if matching != nil && !prev.Context.Equal(*matching) {
			return false, nil, nil
		}
		s.scheduleOverride = nil
		if prev.IsActive(at) {
			return true, nil, prev
		}
		return true, nil, nil
	})
}

// EffectiveRangeSchedule returns the base schedule with every slot replaced
// by the override's target range while the override is active at the given
// time; otherwise the base schedule unchanged. Nil when no base schedule is
// configured.
func (s *Store) EffectiveRangeSchedule(at time.Time) *models.RangeSchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.glucoseTargetRangeSchedule == nil {
		return nil
	}
	if s.scheduleOverride.IsActive(at) {
		return s.glucoseTargetRangeSchedule.WithRange(s.scheduleOverride.TargetRange)
	}
	return s.glucoseTargetRangeSchedule
}

// ScheduleOverrideEnabled reports whether any override is active at t
func (s *Store) ScheduleOverrideEnabled(t time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduleOverride.IsActive(t)
}

// NonPreMealOverrideEnabled reports whether an override other than pre-meal
// is active at t
func (s *Store) NonPreMealOverrideEnabled(t time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduleOverride.IsActive(t) && s.scheduleOverride.Context.Kind != models.ContextPreMeal
}

// PreMealTargetEnabled reports whether the pre-meal override is active at t
func (s *Store) PreMealTargetEnabled(t time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduleOverride.IsActive(t) && s.scheduleOverride.Context.Kind == models.ContextPreMeal
}

// FutureOverrideEnabled reports whether an override exists that starts after t
func (s *Store) FutureOverrideEnabled(t time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduleOverride.IsPending(t)
}

// Preference setters. Each persists the whole object and announces the change.

// SetDosingEnabled switches closed-loop dosing on or off
func (s *Store) SetDosingEnabled(v bool) {
	s.setPreference(func() { s.dosingEnabled = v })
}

// SetGlucoseTargetRangeSchedule replaces the base target-range schedule
func (s *Store) SetGlucoseTargetRangeSchedule(sched *models.RangeSchedule) {
	s.setPreference(func() { s.glucoseTargetRangeSchedule = sched })
}

// SetPreMealTargetRange replaces the pre-meal override range
func (s *Store) SetPreMealTargetRange(r *models.DoubleRange) {
	s.setPreference(func() { s.preMealTargetRange = r })
}

// SetLegacyWorkoutTargetRange replaces the workout override range
func (s *Store) SetLegacyWorkoutTargetRange(r *models.DoubleRange) {
	s.setPreference(func() { s.legacyWorkoutTargetRange = r })
}

// SetOverridePresets replaces the preset library
func (s *Store) SetOverridePresets(presets []models.OverridePreset) {
	s.setPreference(func() { s.overridePresets = presets })
}

// SetMaximumBasalRatePerHour replaces the max basal safety limit
func (s *Store) SetMaximumBasalRatePerHour(v *float64) {
	s.setPreference(func() { s.maximumBasalRatePerHour = v })
}

// SetMaximumBolus replaces the max bolus safety limit
func (s *Store) SetMaximumBolus(v *float64) {
	s.setPreference(func() { s.maximumBolus = v })
}

// SetSuspendThreshold replaces the glucose suspend threshold
func (s *Store) SetSuspendThreshold(t *models.GlucoseThreshold) {
	s.setPreference(func() { s.suspendThreshold = t })
}

// SetBasalRateSchedule replaces the scheduled basal rates
func (s *Store) SetBasalRateSchedule(sched *models.ValueSchedule) {
	s.setPreference(func() { s.basalRateSchedule = sched })
}

// SetCarbRatioSchedule replaces the scheduled carb ratios
func (s *Store) SetCarbRatioSchedule(sched *models.ValueSchedule) {
	s.setPreference(func() { s.carbRatioSchedule = sched })
}

// SetInsulinSensitivitySchedule replaces the scheduled insulin sensitivities
func (s *Store) SetInsulinSensitivitySchedule(sched *models.ValueSchedule) {
	s.setPreference(func() { s.insulinSensitivitySchedule = sched })
}

// SetInsulinModel replaces the insulin action model
func (s *Store) SetInsulinModel(m *models.InsulinModel) {
	s.setPreference(func() { s.insulinModel = m })
}
