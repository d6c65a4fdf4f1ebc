package models

import (
	"testing"
	"time"
)

func TestActiveOverride_IsActive_Finite(t *testing.T) {
	start := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	o := &ActiveOverride{
		Context:                 OverrideContext{Kind: ContextPreMeal},
		TargetRange:             DoubleRange{Min: 80, Max: 100},
		InsulinNeedsScaleFactor: 1,
		StartDate:               start,
		Duration:                time.Hour,
	}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before start", start.Add(-time.Second), false},
		{"at start", start, true},
		{"mid interval", start.Add(30 * time.Minute), true},
		{"just before end", start.Add(time.Hour - time.Nanosecond), true},
		{"exactly at end", start.Add(time.Hour), false},
		{"after end", start.Add(2 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := o.IsActive(tt.at); got != tt.want {
				t.Errorf("IsActive(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestActiveOverride_IsActive_Indefinite(t *testing.T) {
	start := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	o := &ActiveOverride{
		Context:                 OverrideContext{Kind: ContextLegacyWorkout},
		TargetRange:             DoubleRange{Min: 130, Max: 150},
		InsulinNeedsScaleFactor: 1,
		StartDate:               start,
		Duration:                Indefinite,
	}

	for _, at := range []time.Time{start, start.Add(time.Hour), start.AddDate(10, 0, 0)} {
		if !o.IsActive(at) {
			t.Errorf("indefinite override inactive at %v", at)
		}
	}
	if o.IsActive(start.Add(-time.Second)) {
		t.Error("indefinite override active before its start")
	}
	if _, ok := o.EndDate(); ok {
		t.Error("indefinite override reported an end date")
	}
}

func TestActiveOverride_IsPendingAndExpired(t *testing.T) {
	start := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	o := &ActiveOverride{StartDate: start, Duration: time.Hour, InsulinNeedsScaleFactor: 1}

	if !o.IsPending(start.Add(-time.Minute)) {
		t.Error("override not pending before start")
	}
	if o.IsPending(start) {
		t.Error("override pending at start")
	}
	if o.IsExpired(start.Add(59 * time.Minute)) {
		t.Error("override expired before end")
	}
	if !o.IsExpired(start.Add(time.Hour)) {
		t.Error("override not expired at end")
	}
}

func TestActiveOverride_RemainingSeconds(t *testing.T) {
	start := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	o := &ActiveOverride{StartDate: start, Duration: time.Hour, InsulinNeedsScaleFactor: 1}

	remaining, finite := o.RemainingSeconds(start.Add(45 * time.Minute))
	if !finite || remaining != 900 {
		t.Errorf("RemainingSeconds = %v, %v, want 900, true", remaining, finite)
	}

	// Clamped to zero past the end, never negative
	remaining, finite = o.RemainingSeconds(start.Add(2 * time.Hour))
	if !finite || remaining != 0 {
		t.Errorf("RemainingSeconds past end = %v, %v, want 0, true", remaining, finite)
	}

	indefinite := &ActiveOverride{StartDate: start, Duration: Indefinite, InsulinNeedsScaleFactor: 1}
	if _, finite := indefinite.RemainingSeconds(start); finite {
		t.Error("indefinite override reported a remaining duration")
	}
}

func TestActiveOverride_DisplayName(t *testing.T) {
	presets := []OverridePreset{
		{Name: "Soccer", Symbol: "⚽️", TargetRange: DoubleRange{Min: 140, Max: 160}, InsulinNeedsScaleFactor: 0.7},
	}

	tests := []struct {
		name    string
		context OverrideContext
		want    string
	}{
		{"pre-meal", OverrideContext{Kind: ContextPreMeal}, "Pre-Meal"},
		{"workout", OverrideContext{Kind: ContextLegacyWorkout}, "Workout"},
		{"custom", OverrideContext{Kind: ContextCustom}, "Custom"},
		{"known preset", OverrideContext{Kind: ContextPreset, PresetID: "Soccer"}, "Soccer"},
		{"unknown preset", OverrideContext{Kind: ContextPreset, PresetID: "Gone"}, "Gone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &ActiveOverride{Context: tt.context}
			if got := o.DisplayName(presets); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOverrideTreatment(t *testing.T) {
	start := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	o := &ActiveOverride{
		Context:                 OverrideContext{Kind: ContextLegacyWorkout},
		TargetRange:             DoubleRange{Min: 130, Max: 150},
		InsulinNeedsScaleFactor: 0.8,
		StartDate:               start,
		Duration:                90 * time.Minute,
		SyncIdentifier:          "abc-123",
	}

	treatment := OverrideTreatment(o, nil, UnitMgdL, "loopbridge")

	if treatment.EventType != EventTemporaryOverride {
		t.Errorf("EventType = %q, want %q", treatment.EventType, EventTemporaryOverride)
	}
	if treatment.Duration != 90 {
		t.Errorf("Duration = %v minutes, want 90", treatment.Duration)
	}
	if treatment.TargetBottom != 130 || treatment.TargetTop != 150 {
		t.Errorf("targets = [%v, %v], want [130, 150]", treatment.TargetBottom, treatment.TargetTop)
	}
	if treatment.SyncIdentifier != "abc-123" {
		t.Errorf("SyncIdentifier = %q, want abc-123", treatment.SyncIdentifier)
	}
	if treatment.Time().IsZero() {
		t.Error("treatment timestamp did not parse back")
	}

	indefinite := &ActiveOverride{
		Context:   OverrideContext{Kind: ContextCustom},
		StartDate: start,
		Duration:  Indefinite,
	}
	if got := OverrideTreatment(indefinite, nil, UnitMgdL, "loopbridge").Duration; got != 0 {
		t.Errorf("indefinite override treatment duration = %v, want 0", got)
	}
}

func TestOverrideCancelTreatment(t *testing.T) {
	start := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	o := &ActiveOverride{StartDate: start, Duration: Indefinite, SyncIdentifier: "abc-123"}

	cancel := OverrideCancelTreatment(o, start.Add(20*time.Minute), "loopbridge")
	if cancel.EventType != EventTemporaryOverrideCancel {
		t.Errorf("EventType = %q, want %q", cancel.EventType, EventTemporaryOverrideCancel)
	}
	if cancel.Duration != 20 {
		t.Errorf("Duration = %v minutes, want 20", cancel.Duration)
	}
	if cancel.SyncIdentifier != "abc-123" {
		t.Error("cancel treatment lost the sync identifier")
	}
}

func TestUnitConversion(t *testing.T) {
	if got := MgdlToMmol(180); got < 9.98 || got > 10.0 {
		t.Errorf("MgdlToMmol(180) = %v, want ~9.99", got)
	}
	if got := MmolToMgdl(MgdlToMmol(123)); got < 122.99 || got > 123.01 {
		t.Errorf("round trip conversion = %v, want 123", got)
	}
}
