package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"bhasha/internal/analytics"
	"bhasha/internal/capture"
	"bhasha/internal/catalog"
	"bhasha/internal/config"
	"bhasha/internal/ingest"
	"bhasha/internal/logging"
	"bhasha/internal/notifications"
	"bhasha/internal/services/assistant"
	"bhasha/internal/services/blobstore"
	"bhasha/internal/upload"
)

// Daemon owns the long-running pipeline services and enforces
// single-instance execution through a lock file.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *catalog.Store
	blobs       *blobstore.FSStore
	coordinator *upload.Coordinator
	ingest      *ingest.Service
	aggregator  *analytics.Aggregator
	assistant   *assistant.Service
	notifier    notifications.Service
	monitor     *capture.Monitor
	api         *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool   `json:"running"`
	PID           int    `json:"pid"`
	CatalogDBPath string `json:"catalogDbPath"`
	MediaDir      string `json:"mediaDir"`
	LockFilePath  string `json:"lockFilePath"`
	APIAddress    string `json:"apiAddress"`
	Device        string `json:"device"`
	DevicePresent bool   `json:"devicePresent"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	blobs, err := blobstore.NewFSStore(cfg.Paths.MediaDir)
	if err != nil {
		return nil, err
	}
	coordinator := upload.NewCoordinator(blobs, cfg, logger)
	notifier := notifications.NewService(cfg)

	d := &Daemon{
		cfg:         cfg,
		logger:      logging.WithComponent(logger, "daemon"),
		store:       store,
		blobs:       blobs,
		coordinator: coordinator,
		ingest:      ingest.New(coordinator, store, logger),
		aggregator:  analytics.New(store, cfg, logger),
		assistant:   assistant.New(assistantClient(cfg), store),
		notifier:    notifier,
		lockPath:    filepath.Join(cfg.Paths.DataDir, "bhashad.lock"),
	}
	d.lock = flock.New(d.lockPath)
	d.monitor = capture.NewMonitor(cfg.Capture.Device, logger, func(device string, present bool) {
		_ = notifier.NotifyDeviceChanged(context.Background(), device, present)
	})

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

func assistantClient(cfg *config.Config) assistant.Client {
	if client := assistant.NewHTTPClient(cfg); client != nil {
		return client
	}
	return nil
}

// Start acquires the instance lock and brings up the API server and the
// device monitor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another bhasha daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.monitor.Start(d.ctx); err != nil {
		d.releaseLock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}
	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			d.monitor.Stop()
			d.releaseLock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("bhasha daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.cfg.Paths.APIBind))
	return nil
}

// Stop shuts down background services and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.monitor.Stop()
	d.releaseLock()
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("bhasha daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon has started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddress returns the bound API address, empty before Start.
func (d *Daemon) APIAddress() string {
	if d.api == nil {
		return ""
	}
	return d.api.address()
}

// Status returns current daemon runtime information.
func (d *Daemon) Status() Status {
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		CatalogDBPath: d.store.Path(),
		MediaDir:      d.blobs.Root(),
		LockFilePath:  d.lockPath,
		APIAddress:    d.APIAddress(),
		Device:        d.cfg.Capture.Device,
		DevicePresent: d.monitor.Present(),
	}
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}
