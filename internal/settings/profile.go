package settings

import (
	"fmt"
	"time"

	"github.com/mrcode/loopbridge/internal/models"
)

// ErrIncompleteSettings is returned when the minimum configuration needed for
// a profile upload is not fully present. The upload is skipped, not retried,
// until settings become complete.
type ErrIncompleteSettings struct {
	Missing string
}

func (e ErrIncompleteSettings) Error() string {
	return fmt.Sprintf("settings incomplete: missing %s", e.Missing)
}

// NightscoutProfile builds the profile document for a settings upload. All of
// the base schedules, the insulin model, the preferred unit and the
// correction range must be present.
func (s *Store) NightscoutProfile(profileName, enteredBy, timezone string, at time.Time) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.basalRateSchedule == nil:
		return nil, ErrIncompleteSettings{Missing: "basal rate schedule"}
	case s.carbRatioSchedule == nil:
		return nil, ErrIncompleteSettings{Missing: "carb ratio schedule"}
	case s.insulinSensitivitySchedule == nil:
		return nil, ErrIncompleteSettings{Missing: "insulin sensitivity schedule"}
	case s.insulinModel == nil:
		return nil, ErrIncompleteSettings{Missing: "insulin model"}
	case s.glucoseTargetRangeSchedule == nil:
		return nil, ErrIncompleteSettings{Missing: "correction range schedule"}
	case s.glucoseUnitLocked() == "":
		return nil, ErrIncompleteSettings{Missing: "glucose unit"}
	}

	low, high := models.RangeEntries(s.glucoseTargetRangeSchedule)
	store := models.ProfileStore{
		DIA:        s.insulinModel.ActionDuration.Hours(),
		CarbRatio:  models.ValueEntries(s.carbRatioSchedule),
		Sens:       models.ValueEntries(s.insulinSensitivitySchedule),
		Basal:      models.ValueEntries(s.basalRateSchedule),
		TargetLow:  low,
		TargetHigh: high,
		Timezone:   timezone,
		Units:      s.glucoseUnitLocked(),
	}

	return &models.Profile{
		DefaultProfile: profileName,
		StartDate:      at.UTC().Format(time.RFC3339),
		Mills:          at.UnixMilli(),
		Units:          s.glucoseUnitLocked(),
		EnteredBy:      enteredBy,
		Store:          map[string]models.ProfileStore{profileName: store},
	}, nil
}
