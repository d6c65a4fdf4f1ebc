package settings

import "github.com/mrcode/loopbridge/internal/models"

// Guardrail value generation: the pickable values for an editable setting,
// derived from the active measurement unit. An unknown unit yields an empty
// set; callers treat that as "no guardrail available".

// SensitivityGuardrail returns the allowed insulin sensitivity values for the
// unit: whole steps over [10, 500] mg/dL, tenth steps over [6.0, 27.0] mmol/L.
func SensitivityGuardrail(unit string) []float64 {
	switch unit {
	case models.UnitMgdL:
		return wholeSteps(10, 500)
	case models.UnitMmolL:
		return tenthSteps(60, 270)
	}
	return nil
}

// CorrectionRangeGuardrail returns the allowed correction-range bound values
// for the unit: whole steps over [60, 180] mg/dL, tenth steps over
// [3.3, 10.0] mmol/L.
func CorrectionRangeGuardrail(unit string) []float64 {
	switch unit {
	case models.UnitMgdL:
		return wholeSteps(60, 180)
	case models.UnitMmolL:
		return tenthSteps(33, 100)
	}
	return nil
}

func wholeSteps(min, max int) []float64 {
	out := make([]float64, 0, max-min+1)
	for v := min; v <= max; v++ {
		out = append(out, float64(v))
	}
	return out
}

// tenthSteps generates values in tenths; bounds are given scaled by ten to
// keep the step exact
func tenthSteps(min, max int) []float64 {
	out := make([]float64, 0, max-min+1)
	for v := min; v <= max; v++ {
		out = append(out, float64(v)/10)
	}
	return out
}
