package status

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrcode/loopbridge/internal/models"
	"github.com/mrcode/loopbridge/internal/settings"
)

// enactedMarker remembers the last temp basal reported as enacted, keyed by
// its start time, so an ongoing temp basal is not re-reported every cycle
type enactedMarker struct {
	startDate time.Time
	rate      float64
	duration  time.Duration
}

// Aggregator builds one device status record per invocation from the dosing
// engine, dose store, pump manager and uploader device, plus the settings
// store's current override. It is driven from a single goroutine; only the
// subsystem queries themselves run concurrently.
type Aggregator struct {
	settings *settings.Store
	engine   DosingEngine
	doses    DoseStore
	pump     PumpManager
	uploader UploaderDevice
	logger   *logrus.Logger

	loopName    string
	loopVersion string

	lastEnacted *enactedMarker
}

// NewAggregator wires the aggregator to its subsystems
func NewAggregator(store *settings.Store, engine DosingEngine, doses DoseStore, pump PumpManager, uploader UploaderDevice, loopName, loopVersion string, logger *logrus.Logger) *Aggregator {
	return &Aggregator{
		settings:    store,
		engine:      engine,
		doses:       doses,
		pump:        pump,
		uploader:    uploader,
		logger:      logger,
		loopName:    loopName,
		loopVersion: loopVersion,
	}
}

// BuildStatus assembles the record for a completed dosing cycle. Subsystem
// queries run concurrently and are joined before assembly; a failure in one
// subsystem is captured as the record's failure reason (first one wins) and
// never blocks the others.
func (a *Aggregator) BuildStatus(ctx context.Context, now time.Time) *models.DeviceStatus {
	var (
		wg     sync.WaitGroup
		ls     LoopState
		iob    models.InsulinValue
		iobErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		ls = a.engine.LoopState(ctx)
	}()
	go func() {
		defer wg.Done()
		iob, iobErr = a.doses.InsulinOnBoard(ctx, now)
	}()
	wg.Wait()

	loop := &models.LoopStatus{
		Name:                 a.loopName,
		Version:              a.loopVersion,
		Timestamp:            now,
		COB:                  ls.CarbsOnBoard,
		Predicted:            ls.PredictedGlucose,
		RecommendedTempBasal: ls.RecommendedTempBasal,
		RecommendedBolus:     ls.RecommendedBolus,
	}

	if ls.Err != nil {
		loop.FailureReason = ls.Err.Error()
		a.logger.WithError(ls.Err).Warn("dosing engine reported an error")
	}

	if iobErr == nil {
		loop.IOB = &models.IOBStatus{Timestamp: iob.StartDate, IOB: iob.Value}
	} else {
		if loop.FailureReason == "" {
			loop.FailureReason = iobErr.Error()
		}
		a.logger.WithError(iobErr).Warn("insulin on board unavailable")
	}

	pumpSnap := a.pump.Status()

	record := &models.DeviceStatus{
		Device:    deviceName(a.uploader.Name()),
		Timestamp: now,
		Loop:      loop,
		Pump:      a.pumpStatus(pumpSnap),
		Uploader:  a.uploaderStatus(now),
		Override:  a.overrideStatus(now),
	}

	if pumpSnap != nil {
		loop.Enacted = a.dedupEnacted(pumpSnap.TempBasal)
	}

	return record
}

// BuildUploaderStatus assembles an uploader-device-only telemetry record,
// carrying no pump or loop payload
func (a *Aggregator) BuildUploaderStatus(now time.Time) *models.DeviceStatus {
	return &models.DeviceStatus{
		Device:    deviceName(a.uploader.Name()),
		Timestamp: now,
		Uploader:  a.uploaderStatus(now),
		Override:  a.overrideStatus(now),
	}
}

func deviceName(uploader string) string {
	return "loop://" + uploader
}

// dedupEnacted includes the running temp basal only when its start time
// differs from the last one reported, then advances the marker
func (a *Aggregator) dedupEnacted(current *models.TempBasal) *models.TempBasal {
	if current == nil {
		return nil
	}
	if a.lastEnacted != nil && a.lastEnacted.startDate.Equal(current.Timestamp) {
		return nil
	}
	a.lastEnacted = &enactedMarker{
		startDate: current.Timestamp,
		rate:      current.Rate,
		duration:  current.Duration,
	}
	enacted := *current
	enacted.Received = true
	return &enacted
}

func (a *Aggregator) pumpStatus(snap *PumpSnapshot) *models.PumpStatus {
	if snap == nil {
		return nil
	}

	pump := &models.PumpStatus{
		Clock:          snap.Clock,
		PumpID:         snap.PumpID,
		Manufacturer:   snap.Manufacturer,
		Model:          snap.Model,
		SecondsFromGMT: snap.SecondsFromGMT,
		Bolusing:       snap.Bolusing,
		Suspended:      snap.Suspended,
	}
	if snap.BatteryFraction != nil {
		pump.Battery = &models.PumpBattery{Percent: int(*snap.BatteryFraction * 100)}
	}
	if reading := a.doses.LastReservoirReading(); reading != nil {
		units := reading.Units
		pump.Reservoir = &units
	}
	return pump
}

func (a *Aggregator) uploaderStatus(now time.Time) *models.UploaderStatus {
	return &models.UploaderStatus{
		Name:      a.uploader.Name(),
		Timestamp: now,
		Battery:   a.uploader.BatteryPercent(),
	}
}

// overrideStatus derives the override sub-record at the aggregation instant.
// Activity is always recomputed from the wall clock, never cached, so natural
// expiry is observed consistently.
func (a *Aggregator) overrideStatus(now time.Time) *models.OverrideStatus {
	override := a.settings.ActiveOverride()
	if override == nil || !override.IsActive(now) {
		return &models.OverrideStatus{Active: false}
	}

	st := &models.OverrideStatus{
		Active:    true,
		Name:      override.DisplayName(a.settings.OverridePresets()),
		Timestamp: now,
		CurrentCorrectionRange: &models.DoubleRange{
			Min: override.TargetRange.Min,
			Max: override.TargetRange.Max,
		},
	}
	multiplier := override.InsulinNeedsScaleFactor
	st.Multiplier = &multiplier

	if remaining, finite := override.RemainingSeconds(now); finite {
		st.Duration = &remaining
	}
	return st
}
