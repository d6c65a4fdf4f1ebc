package models

import (
	"fmt"
	"time"
)

// ProfileEntry is one (time, value) row of a Nightscout profile schedule.
// Time is "HH:MM" and TimeAsSeconds the same offset in seconds.
type ProfileEntry struct {
	Time          string  `json:"time"`
	Value         float64 `json:"value"`
	TimeAsSeconds int     `json:"timeAsSeconds"`
}

// ProfileStore is one named profile within a profile document
type ProfileStore struct {
	DIA        float64        `json:"dia"` // hours
	CarbRatio  []ProfileEntry `json:"carbratio"`
	Sens       []ProfileEntry `json:"sens"`
	Basal      []ProfileEntry `json:"basal"`
	TargetLow  []ProfileEntry `json:"target_low"`
	TargetHigh []ProfileEntry `json:"target_high"`
	Timezone   string         `json:"timezone"`
	Units      string         `json:"units"`
}

// Profile is the Nightscout profile document produced by a settings upload
type Profile struct {
	ID             string                  `json:"_id,omitempty"`
	DefaultProfile string                  `json:"defaultProfile"`
	StartDate      string                  `json:"startDate"`
	Mills          int64                   `json:"mills"`
	Units          string                  `json:"units"`
	EnteredBy      string                  `json:"enteredBy"`
	Store          map[string]ProfileStore `json:"store"`
}

func profileTime(offset time.Duration) string {
	total := int(offset / time.Minute)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// ValueEntries converts a value schedule into profile rows
func ValueEntries(s *ValueSchedule) []ProfileEntry {
	entries := make([]ProfileEntry, len(s.Items))
	for i, item := range s.Items {
		entries[i] = ProfileEntry{
			Time:          profileTime(item.Offset),
			Value:         item.Value,
			TimeAsSeconds: int(item.Offset / time.Second),
		}
	}
	return entries
}

// RangeEntries converts a target-range schedule into low and high profile rows
func RangeEntries(s *RangeSchedule) (low, high []ProfileEntry) {
	low = make([]ProfileEntry, len(s.Items))
	high = make([]ProfileEntry, len(s.Items))
	for i, item := range s.Items {
		low[i] = ProfileEntry{
			Time:          profileTime(item.Offset),
			Value:         item.Range.Min,
			TimeAsSeconds: int(item.Offset / time.Second),
		}
		high[i] = ProfileEntry{
			Time:          profileTime(item.Offset),
			Value:         item.Range.Max,
			TimeAsSeconds: int(item.Offset / time.Second),
		}
	}
	return low, high
}

// InsulinModel describes the insulin action curve carried in settings. Only
// the action duration feeds the profile document's DIA field.
type InsulinModel struct {
	Name           string        `json:"name"`
	ActionDuration time.Duration `json:"actionDuration"`
	PeakActivity   time.Duration `json:"peakActivity,omitempty"`
}
