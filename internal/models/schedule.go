package models

import "time"

const day = 24 * time.Hour

// RangeScheduleEntry is one slot of a daily target-range schedule
type RangeScheduleEntry struct {
	Offset time.Duration `json:"offset"` // from midnight, local time
	Range  DoubleRange   `json:"range"`
}

// RangeSchedule is a time-of-day indexed table of target glucose ranges.
// Entries must have strictly increasing offsets within [0, 24h); the schedule
// covers the full day by wraparound.
type RangeSchedule struct {
	Unit  string               `json:"unit"`
	Items []RangeScheduleEntry `json:"items"`
}

// IsValid reports whether the schedule has at least one entry, all offsets
// within a day and strictly increasing, and all ranges ordered
func (s *RangeSchedule) IsValid() bool {
	if s == nil || len(s.Items) == 0 {
		return false
	}
	for i, item := range s.Items {
		if item.Offset < 0 || item.Offset >= day {
			return false
		}
		if i > 0 && item.Offset <= s.Items[i-1].Offset {
			return false
		}
		if !item.Range.IsValid() {
			return false
		}
	}
	return true
}

// timeOfDay returns the duration since local midnight for t
func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

// Lookup returns the range in effect at t: the entry with the greatest offset
// not after t's time-of-day, wrapping to the last entry when t precedes the
// first offset.
func (s *RangeSchedule) Lookup(t time.Time) DoubleRange {
	tod := timeOfDay(t)
	if s.Items[0].Offset > tod {
		return s.Items[len(s.Items)-1].Range
	}
	idx := 0
	for i, item := range s.Items {
		if item.Offset > tod {
			break
		}
		idx = i
	}
	return s.Items[idx].Range
}

// WithRange returns a copy of the schedule with every slot's range replaced by r
func (s *RangeSchedule) WithRange(r DoubleRange) *RangeSchedule {
	if s == nil {
		return nil
	}
	out := &RangeSchedule{Unit: s.Unit, Items: make([]RangeScheduleEntry, len(s.Items))}
	for i, item := range s.Items {
		out.Items[i] = RangeScheduleEntry{Offset: item.Offset, Range: r}
	}
	return out
}

// ValueScheduleEntry is one slot of a daily single-value schedule
type ValueScheduleEntry struct {
	Offset time.Duration `json:"offset"`
	Value  float64       `json:"value"`
}

// ValueSchedule is a time-of-day indexed table of single values, used for
// basal rates, carb ratios and insulin sensitivities. Same wraparound rules
// as RangeSchedule.
type ValueSchedule struct {
	Unit  string               `json:"unit"`
	Items []ValueScheduleEntry `json:"items"`
}

// IsValid reports whether the schedule has at least one entry and strictly
// increasing offsets within a day
func (s *ValueSchedule) IsValid() bool {
	if s == nil || len(s.Items) == 0 {
		return false
	}
	for i, item := range s.Items {
		if item.Offset < 0 || item.Offset >= day {
			return false
		}
		if i > 0 && item.Offset <= s.Items[i-1].Offset {
			return false
		}
	}
	return true
}

// Lookup returns the value in effect at t, with the same wraparound policy as
// RangeSchedule.Lookup
func (s *ValueSchedule) Lookup(t time.Time) float64 {
	tod := timeOfDay(t)
	if s.Items[0].Offset > tod {
		return s.Items[len(s.Items)-1].Value
	}
	idx := 0
	for i, item := range s.Items {
		if item.Offset > tod {
			break
		}
		idx = i
	}
	return s.Items[idx].Value
}
