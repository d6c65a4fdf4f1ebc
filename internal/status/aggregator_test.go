package status

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrcode/loopbridge/internal/models"
	"github.com/mrcode/loopbridge/internal/settings"
)

var testTime = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)

type fakeEngine struct {
	state LoopState
}

func (f *fakeEngine) LoopState(_ context.Context) LoopState { return f.state }

type fakeDoses struct {
	iob       models.InsulinValue
	iobErr    error
	reservoir *models.ReservoirReading
}

func (f *fakeDoses) InsulinOnBoard(_ context.Context, _ time.Time) (models.InsulinValue, error) {
	return f.iob, f.iobErr
}

func (f *fakeDoses) LastReservoirReading() *models.ReservoirReading { return f.reservoir }

type fakePump struct {
	snap *PumpSnapshot
}

func (f *fakePump) Status() *PumpSnapshot { return f.snap }

type fakeDevice struct {
	name    string
	battery *int
}

func (f *fakeDevice) Name() string         { return f.name }
func (f *fakeDevice) BatteryPercent() *int { return f.battery }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testStore() *settings.Store {
	s := settings.NewStore("")
	s.SetGlucoseTargetRangeSchedule(&models.RangeSchedule{
		Unit: models.UnitMgdL,
		Items: []models.RangeScheduleEntry{
			{Offset: 0, Range: models.DoubleRange{Min: 100, Max: 110}},
		},
	})
	s.SetPreMealTargetRange(&models.DoubleRange{Min: 80, Max: 100})
	return s
}

func newTestAggregator(engine *fakeEngine, doses *fakeDoses, pump *fakePump) (*Aggregator, *settings.Store) {
	store := testStore()
	battery := 82
	device := &fakeDevice{name: "test-rig", battery: &battery}
	agg := NewAggregator(store, engine, doses, pump, device, "Loop", "2.2.4", quietLogger())
	return agg, store
}

func TestBuildStatus_AllSubsystems(t *testing.T) {
	cob := &models.COBStatus{Timestamp: testTime, COB: 24}
	predicted := &models.PredictedGlucose{StartDate: testTime, Values: []float64{120, 118, 115}}
	bolus := 0.55
	engine := &fakeEngine{state: LoopState{
		CarbsOnBoard:     cob,
		PredictedGlucose: predicted,
		RecommendedBolus: &bolus,
	}}
	doses := &fakeDoses{
		iob:       models.InsulinValue{StartDate: testTime, Value: 1.25},
		reservoir: &models.ReservoirReading{Timestamp: testTime, Units: 112.5},
	}
	battery := 0.75
	pump := &fakePump{snap: &PumpSnapshot{
		Clock:           testTime,
		PumpID:          "123456",
		BatteryFraction: &battery,
	}}

	agg, _ := newTestAggregator(engine, doses, pump)
	record := agg.BuildStatus(context.Background(), testTime)

	if record.Device != "loop://test-rig" {
		t.Errorf("Device = %q, want loop://test-rig", record.Device)
	}
	if record.Loop == nil || record.Loop.IOB == nil || record.Loop.IOB.IOB != 1.25 {
		t.Errorf("IOB missing or wrong: %+v", record.Loop)
	}
	if record.Loop.COB != cob || record.Loop.Predicted != predicted {
		t.Error("engine snapshot fields not carried through")
	}
	if record.Loop.FailureReason != "" {
		t.Errorf("FailureReason = %q, want empty", record.Loop.FailureReason)
	}
	if record.Pump == nil || record.Pump.Battery == nil || record.Pump.Battery.Percent != 75 {
		t.Errorf("pump battery = %+v, want 75%%", record.Pump)
	}
	if record.Pump.Reservoir == nil || *record.Pump.Reservoir != 112.5 {
		t.Errorf("reservoir = %v, want 112.5", record.Pump.Reservoir)
	}
	if record.Uploader == nil || record.Uploader.Name != "test-rig" {
		t.Errorf("uploader = %+v", record.Uploader)
	}
	if record.Override == nil || record.Override.Active {
		t.Errorf("override status = %+v, want inactive", record.Override)
	}
}

func TestBuildStatus_FirstErrorWins(t *testing.T) {
	engine := &fakeEngine{state: LoopState{Err: errors.New("prediction failed")}}
	doses := &fakeDoses{iobErr: errors.New("iob failed")}
	pump := &fakePump{}

	agg, _ := newTestAggregator(engine, doses, pump)
	record := agg.BuildStatus(context.Background(), testTime)

	if record.Loop.FailureReason != "prediction failed" {
		t.Errorf("FailureReason = %q, want the engine's error", record.Loop.FailureReason)
	}
	if record.Loop.IOB != nil {
		t.Error("IOB populated despite its query failing")
	}
	// The failures must not block the rest of the record
	if record.Uploader == nil || record.Override == nil {
		t.Error("subsystem failure blocked unrelated fields")
	}
}

func TestBuildStatus_IOBErrorAlone(t *testing.T) {
	engine := &fakeEngine{}
	doses := &fakeDoses{iobErr: errors.New("iob failed")}

	agg, _ := newTestAggregator(engine, doses, &fakePump{})
	record := agg.BuildStatus(context.Background(), testTime)

	if record.Loop.FailureReason != "iob failed" {
		t.Errorf("FailureReason = %q, want iob failed", record.Loop.FailureReason)
	}
}

func TestBuildStatus_EnactedTempBasalDedup(t *testing.T) {
	tb := &models.TempBasal{Timestamp: testTime, Rate: 1.8, Duration: 30 * time.Minute}
	pump := &fakePump{snap: &PumpSnapshot{Clock: testTime, TempBasal: tb}}
	agg, _ := newTestAggregator(&fakeEngine{}, &fakeDoses{}, pump)

	first := agg.BuildStatus(context.Background(), testTime)
	if first.Loop.Enacted == nil {
		t.Fatal("new temp basal not reported as enacted")
	}
	if !first.Loop.Enacted.Received {
		t.Error("enacted entry not marked received")
	}

	// Same start time next cycle: suppressed
	second := agg.BuildStatus(context.Background(), testTime.Add(5*time.Minute))
	if second.Loop.Enacted != nil {
		t.Error("ongoing temp basal re-reported")
	}

	// A new start time is reported exactly once and moves the marker
	pump.snap.TempBasal = &models.TempBasal{Timestamp: testTime.Add(10 * time.Minute), Rate: 0.4, Duration: 30 * time.Minute}
	third := agg.BuildStatus(context.Background(), testTime.Add(10*time.Minute))
	if third.Loop.Enacted == nil || third.Loop.Enacted.Rate != 0.4 {
		t.Errorf("new temp basal not reported: %+v", third.Loop.Enacted)
	}

	fourth := agg.BuildStatus(context.Background(), testTime.Add(15*time.Minute))
	if fourth.Loop.Enacted != nil {
		t.Error("marker did not advance after reporting")
	}
}

func TestBuildStatus_NoPump(t *testing.T) {
	agg, _ := newTestAggregator(&fakeEngine{}, &fakeDoses{}, &fakePump{})
	record := agg.BuildStatus(context.Background(), testTime)

	if record.Pump != nil {
		t.Errorf("pump status = %+v, want nil while unpaired", record.Pump)
	}
	if record.Loop == nil {
		t.Error("missing pump blocked the loop status")
	}
}

func TestOverrideStatus_Active(t *testing.T) {
	agg, store := newTestAggregator(&fakeEngine{}, &fakeDoses{}, &fakePump{})
	store.EnablePreMealOverride(testTime, time.Hour)

	record := agg.BuildStatus(context.Background(), testTime.Add(15*time.Minute))

	st := record.Override
	if st == nil || !st.Active {
		t.Fatalf("override status = %+v, want active", st)
	}
	if st.Name != "Pre-Meal" {
		t.Errorf("Name = %q, want Pre-Meal", st.Name)
	}
	if st.CurrentCorrectionRange == nil || *st.CurrentCorrectionRange != (models.DoubleRange{Min: 80, Max: 100}) {
		t.Errorf("range = %+v, want [80, 100]", st.CurrentCorrectionRange)
	}
	if st.Duration == nil || *st.Duration != 2700 {
		t.Errorf("Duration = %v, want 2700 seconds", st.Duration)
	}
	if st.Multiplier == nil || *st.Multiplier != 1 {
		t.Errorf("Multiplier = %v, want 1", st.Multiplier)
	}
}

func TestOverrideStatus_IndefiniteAndExpired(t *testing.T) {
	agg, store := newTestAggregator(&fakeEngine{}, &fakeDoses{}, &fakePump{})
	store.SetLegacyWorkoutTargetRange(&models.DoubleRange{Min: 130, Max: 150})
	store.EnableLegacyWorkoutOverride(testTime, models.Indefinite)

	record := agg.BuildStatus(context.Background(), testTime.Add(time.Hour))
	if record.Override.Duration != nil {
		t.Error("indefinite override reported a remaining duration")
	}

	// Expired override: the record stays in the store but reports inactive
	store.EnableLegacyWorkoutOverride(testTime, 10*time.Minute)
	record = agg.BuildStatus(context.Background(), testTime.Add(time.Hour))
	if record.Override.Active {
		t.Error("expired override reported active")
	}
	if record.Override.Name != "" || record.Override.Duration != nil || record.Override.Multiplier != nil {
		t.Errorf("inactive override carried payload: %+v", record.Override)
	}
}

func TestBuildUploaderStatus(t *testing.T) {
	agg, _ := newTestAggregator(&fakeEngine{}, &fakeDoses{}, &fakePump{})
	record := agg.BuildUploaderStatus(testTime)

	if record.Loop != nil || record.Pump != nil {
		t.Error("uploader-only record carried pump or loop payload")
	}
	if record.Uploader == nil || record.Uploader.Name != "test-rig" {
		t.Errorf("uploader = %+v", record.Uploader)
	}
}
