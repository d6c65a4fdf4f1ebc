// Package reporter wires the settings store, status aggregator and upload
// coordinator into the controller-facing service.
package reporter

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrcode/loopbridge/internal/nightscout"
	"github.com/mrcode/loopbridge/internal/settings"
	"github.com/mrcode/loopbridge/internal/status"
	"github.com/mrcode/loopbridge/internal/uploader"
)

// Config carries the service's fixed identity and connection settings
type Config struct {
	NightscoutURL string
	APISecret     string
	APIToken      string
	UseToken      bool

	ProfileName  string // Nightscout profile name, defaults to "Default"
	Timezone     string // IANA name reported in profile documents
	LoopName     string
	LoopVersion  string
	SettingsPath string // defaults to the per-user config dir

	// TelemetryInterval spaces uploader-device telemetry records; zero
	// disables them. The coordinator throttles them further.
	TelemetryInterval time.Duration
}

// Service is the configuration and status-reporting layer handed to the
// controller. The controller drives it with LoopCycleCompleted; everything
// else runs on the service's own goroutines.
type Service struct {
	settings    *settings.Store
	aggregator  *status.Aggregator
	coordinator *uploader.Coordinator
	client      *nightscout.Client
	logger      *logrus.Logger

	telemetryInterval time.Duration
	cancel            context.CancelFunc
	done              chan struct{}
}

// NewService builds the reporting layer. The dosing engine, dose store, pump
// manager and uploader device are the controller's collaborators, injected
// rather than discovered.
func NewService(cfg Config, engine status.DosingEngine, doses status.DoseStore, pump status.PumpManager, device status.UploaderDevice, logger *logrus.Logger) (*Service, error) {
	path := cfg.SettingsPath
	if path == "" {
		var err error
		path, err = settings.ConfigPath()
		if err != nil {
			return nil, err
		}
	}

	store := settings.NewStore(path)
	if err := store.Load(); err != nil {
		if errors.Is(err, settings.ErrVersionMismatch) {
			logger.Warn("settings raw form version mismatch, starting from defaults")
		} else {
			return nil, err
		}
	}

	profileName := cfg.ProfileName
	if profileName == "" {
		profileName = "Default"
	}

	client := nightscout.NewClient(cfg.NightscoutURL, cfg.APISecret, cfg.APIToken, cfg.UseToken)
	agg := status.NewAggregator(store, engine, doses, pump, device, cfg.LoopName, cfg.LoopVersion, logger)
	coord := uploader.NewCoordinator(agg, store, client, profileName, device.Name(), cfg.Timezone, logger)

	return &Service{
		settings:          store,
		aggregator:        agg,
		coordinator:       coord,
		client:            client,
		logger:            logger,
		telemetryInterval: cfg.TelemetryInterval,
	}, nil
}

// Settings exposes the settings store for the controller's UI layer
func (s *Service) Settings() *settings.Store {
	return s.settings
}

// Start launches the coordinator and telemetry goroutines
func (s *Service) Start() {
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.coordinator.Run(ctx)
	}()

	if s.telemetryInterval > 0 {
		go s.telemetryLoop(ctx)
	}
}

// Stop cancels the service's goroutines and waits for the coordinator to
// drain. In-flight uploads are not cancelled mid-request beyond the context.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
}

// LoopCycleCompleted reports that a dosing cycle finished; the resulting
// device status upload happens asynchronously
func (s *Service) LoopCycleCompleted() {
	s.coordinator.NotifyCycleCompleted()
}

// TestConnection verifies the Nightscout endpoint is reachable and accepts
// our credentials
func (s *Service) TestConnection(ctx context.Context) error {
	return s.client.TestConnection(ctx)
}

func (s *Service) telemetryLoop(ctx context.Context) {
	ticker := time.NewTicker(s.telemetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.coordinator.NotifyUploaderTelemetry()
		case <-ctx.Done():
			return
		}
	}
}
