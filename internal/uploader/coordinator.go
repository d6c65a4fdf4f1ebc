// Package uploader decides whether and when finished status and settings
// documents are handed to the remote service.
package uploader

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrcode/loopbridge/internal/models"
	"github.com/mrcode/loopbridge/internal/settings"
	"github.com/mrcode/loopbridge/internal/status"
)

// deviceStatusMinInterval throttles uploader-device-only telemetry: such
// records are suppressed unless this much time has passed since the last
// device-status upload of any kind.
const deviceStatusMinInterval = 5 * time.Minute

// Transport performs a single upload attempt per call. Retry policy lives in
// the coordinator, not here.
type Transport interface {
	UploadDeviceStatus(ctx context.Context, record *models.DeviceStatus) error
	UploadProfile(ctx context.Context, profile *models.Profile) error
	UploadTreatments(ctx context.Context, treatments []models.Treatment) error
}

type eventKind int

const (
	eventCycleCompleted eventKind = iota
	eventUploaderTelemetry
)

type event struct {
	kind eventKind
	at   time.Time
}

// Coordinator owns the upload bookkeeping. All state is in-memory only and
// reset on process restart; the worst consequence is one redundant upload,
// never data loss. Every field below is touched only from the Run goroutine.
type Coordinator struct {
	aggregator *status.Aggregator
	settings   *settings.Store
	transport  Transport
	logger     *logrus.Logger

	profileName string
	enteredBy   string
	timezone    string

	events chan event
	now    func() time.Time

	lastDeviceStatusUpload time.Time
	lastSettingsUpload     time.Time
	lastSettingsUpdate     time.Time
}

// NewCoordinator wires the coordinator to the aggregator, settings store and
// transport. enteredBy names this uploader in outbound documents.
func NewCoordinator(agg *status.Aggregator, store *settings.Store, transport Transport, profileName, enteredBy, timezone string, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		aggregator:  agg,
		settings:    store,
		transport:   transport,
		logger:      logger,
		profileName: profileName,
		enteredBy:   enteredBy,
		timezone:    timezone,
		events:      make(chan event, 16),
		now:         time.Now,
	}
}

// NotifyCycleCompleted queues a device-status upload for a completed dosing
// cycle. Never blocks; a full queue drops the event and the next cycle
// reports instead.
func (c *Coordinator) NotifyCycleCompleted() {
	select {
	case c.events <- event{kind: eventCycleCompleted, at: c.now()}:
	default:
		c.logger.Warn("upload queue full, dropping cycle report")
	}
}

// NotifyUploaderTelemetry queues an uploader-device-only status upload
func (c *Coordinator) NotifyUploaderTelemetry() {
	select {
	case c.events <- event{kind: eventUploaderTelemetry, at: c.now()}:
	default:
	}
}

// Run consumes events until ctx is cancelled. It is the single consumer of
// both the event queue and the settings change feed, so a settings change is
// always observed before the next aggregation reads the store.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case ev := <-c.events:
			switch ev.kind {
			case eventCycleCompleted:
				c.handleCycleCompleted(ctx, ev.at)
			case eventUploaderTelemetry:
				c.handleUploaderTelemetry(ctx, ev.at)
			}
		case note := <-c.settings.Events():
			c.handleSettingsChanged(ctx, note)
		case <-ctx.Done():
			return
		}
	}
}

// handleCycleCompleted aggregates and uploads the cycle's device status, then
// opportunistically retries a pending settings upload
func (c *Coordinator) handleCycleCompleted(ctx context.Context, at time.Time) {
	record := c.aggregator.BuildStatus(ctx, at)
	c.uploadDeviceStatus(ctx, record)

	if c.settingsUploadPending() {
		c.attemptSettingsUpload(ctx)
	}
}

func (c *Coordinator) handleUploaderTelemetry(ctx context.Context, at time.Time) {
	c.uploadDeviceStatus(ctx, c.aggregator.BuildUploaderStatus(at))
}

// uploadDeviceStatus applies the telemetry throttle, then attempts the send.
// The last-upload timestamp advances on every attempt, not only on success,
// so transient sink unreachability cannot cause an upload storm.
func (c *Coordinator) uploadDeviceStatus(ctx context.Context, record *models.DeviceStatus) {
	now := c.now()

	if record.Pump == nil && record.Loop == nil {
		if !c.lastDeviceStatusUpload.IsZero() && now.Sub(c.lastDeviceStatusUpload) < deviceStatusMinInterval {
			c.logger.Debug("uploader telemetry throttled")
			return
		}
	}

	c.lastDeviceStatusUpload = now

	if err := c.transport.UploadDeviceStatus(ctx, record); err != nil {
		c.logger.WithError(err).Error("device status upload failed")
	}
}

// handleSettingsChanged records the update time, mirrors override transitions
// to the careportal, and attempts a settings upload when preferences changed
func (c *Coordinator) handleSettingsChanged(ctx context.Context, note settings.Notification) {
	c.lastSettingsUpdate = note.At

	if note.Context == settings.UpdateOverride {
		c.uploadOverrideTreatments(ctx, note)
	}

	c.attemptSettingsUpload(ctx)
}

func (c *Coordinator) uploadOverrideTreatments(ctx context.Context, note settings.Notification) {
	var treatments []models.Treatment
	unit := c.settings.GlucoseUnit()
	presets := c.settings.OverridePresets()

	if note.Cancelled != nil {
		treatments = append(treatments, *models.OverrideCancelTreatment(note.Cancelled, note.At, c.enteredBy))
	}
	if note.Enabled != nil {
		treatments = append(treatments, *models.OverrideTreatment(note.Enabled, presets, unit, c.enteredBy))
	}
	if len(treatments) == 0 {
		return
	}

	if err := c.transport.UploadTreatments(ctx, treatments); err != nil {
		c.logger.WithError(err).Error("override treatment upload failed")
	}
}

func (c *Coordinator) settingsUploadPending() bool {
	return c.lastSettingsUpdate.After(c.lastSettingsUpload)
}

// attemptSettingsUpload uploads the profile document when settings are
// complete. On success the upload timestamp advances to the completion time;
// on failure it is left unchanged so a future cycle retries.
func (c *Coordinator) attemptSettingsUpload(ctx context.Context) {
	if !c.settingsUploadPending() {
		return
	}

	profile, err := c.settings.NightscoutProfile(c.profileName, c.enteredBy, c.timezone, c.now())
	if err != nil {
		var incomplete settings.ErrIncompleteSettings
		if errors.As(err, &incomplete) {
			c.logger.WithField("missing", incomplete.Missing).Info("settings upload skipped")
			return
		}
		c.logger.WithError(err).Error("building profile failed")
		return
	}

	if err := c.transport.UploadProfile(ctx, profile); err != nil {
		c.logger.WithError(err).Error("settings upload failed")
		return
	}

	c.lastSettingsUpload = c.now()
}
