// Package models contains data structures used throughout the library
package models

// Glucose measurement units as they appear in Nightscout documents.
const (
	UnitMgdL  = "mg/dL"
	UnitMmolL = "mmol/L"
)

// mg/dL per mmol/L
const mgdlPerMmol = 18.0182

// MgdlToMmol converts a glucose value from mg/dL to mmol/L
func MgdlToMmol(mgdl float64) float64 {
	return mgdl / mgdlPerMmol
}

// MmolToMgdl converts a glucose value from mmol/L to mg/dL
func MmolToMgdl(mmol float64) float64 {
	return mmol * mgdlPerMmol
}

// DoubleRange is an inclusive [Min, Max] interval
type DoubleRange struct {
	Min float64 `json:"minValue"`
	Max float64 `json:"maxValue"`
}

// IsValid reports whether the range is ordered
func (r DoubleRange) IsValid() bool {
	return r.Min <= r.Max
}

// Contains reports whether v lies within the range (inclusive)
func (r DoubleRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// GlucoseThreshold is a glucose value paired with its unit (e.g. the suspend threshold)
type GlucoseThreshold struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}
