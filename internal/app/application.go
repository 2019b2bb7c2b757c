package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eastham/mesh-adsb/internal/config"
	"github.com/eastham/mesh-adsb/internal/icao"
	"github.com/eastham/mesh-adsb/internal/inject"
	"github.com/eastham/mesh-adsb/internal/mesh"
	"github.com/eastham/mesh-adsb/internal/metrics"
	"github.com/eastham/mesh-adsb/internal/pipeline"
	"github.com/eastham/mesh-adsb/internal/share"
	"github.com/eastham/mesh-adsb/internal/tracker"
)

// Options are the command line settings layered over the config file.
type Options struct {
	ConfigPath string
	Verbose    bool
	// Test injects a synthetic fixed position every 10 seconds so the
	// injection path can be verified without mesh traffic.
	Test bool
}

// Application wires the transports, pipeline, injector, and bookkeeping
// together and owns their lifecycles.
type Application struct {
	opts     Options
	cfg      config.Config
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	pipeline *pipeline.Pipeline
	injector *inject.Client
	sender   *share.Sender
	trackers *tracker.Queue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApplication loads configuration and constructs all components.
func NewApplication(opts Options) (*Application, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logrus.New()
	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	m := metrics.New()
	resolver := icao.NewResolver(cfg.ICAO.Table())

	app := &Application{
		opts:     opts,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		pipeline: pipeline.New(resolver, cfg.ICAO.DefaultAltFt, m, logger),
		trackers: tracker.NewQueue(cfg.Tracker.MaxSize),
	}
	app.ctx, app.cancel = context.WithCancel(context.Background())

	app.injector = inject.NewClient(cfg.Readsb.Addr(), inject.Options{
		ConnectTimeout: cfg.Readsb.ConnectTimeout,
		WriteTimeout:   cfg.Readsb.WriteTimeout,
		Repeat:         cfg.Readsb.Repeat,
	}, m, logger)

	if cfg.Share.OutputAddr != "" {
		app.sender, err = share.NewSender(cfg.Share.OutputAddr, m, logger)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Tracker.Path != "" {
		if err := app.trackers.Load(cfg.Tracker.Path); err != nil {
			logger.WithError(err).Warn("Could not load tracker history")
		}
	}

	return app, nil
}

// Start runs the service until a shutdown signal arrives.
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version": Version,
		"readsb":  app.cfg.Readsb.Addr(),
	}).Info("Starting mesh-adsb")

	events := make(chan pipeline.PositionEvent, 64)

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		if err := app.metrics.Serve(app.ctx, app.cfg.Metrics.Listen, app.logger); err != nil {
			app.logger.WithError(err).Error("Metrics endpoint failed")
		}
	}()

	if app.cfg.Mesh.Broker != "" {
		source := mesh.NewSource(app.cfg.Mesh.Broker, app.cfg.Mesh.Topic,
			app.cfg.Mesh.ClientID, app.logger)
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := source.Run(app.ctx, events); err != nil {
				app.logger.WithError(err).Error("Mesh source failed")
			}
		}()
	}

	if app.cfg.Share.InputPort != 0 {
		receiver, err := share.NewReceiver(app.cfg.Share.InputPort,
			app.cfg.Share.Whitelist, app.metrics, app.logger)
		if err != nil {
			return err
		}
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			receiver.Run(app.ctx, events)
		}()
	}

	if app.opts.Test {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.runTestTicker(events)
		}()
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.consume(events)
	}()

	if app.cfg.Tracker.Path != "" {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.persistTrackers()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	app.logger.Info("Received shutdown signal")
	app.shutdown()

	return nil
}

// consume is the single pipeline loop: it serializes access to the
// per-device state and performs the blocking injection write only after
// frame construction has finished.
func (app *Application) consume(events <-chan pipeline.PositionEvent) {
	for {
		select {
		case <-app.ctx.Done():
			return
		case ev := <-events:
			app.handleEvent(ev)
		}
	}
}

func (app *Application) handleEvent(ev pipeline.PositionEvent) {
	pair, err := app.pipeline.Handle(ev)
	if err != nil {
		app.logger.WithError(err).WithField("device", ev.DeviceID).
			Error("Dropping position with unencodable fields")
		return
	}
	if pair == nil {
		return
	}

	app.trackers.Add(tracker.Status{
		MeshID:   ev.DeviceID,
		Name:     pair.Name,
		LastSeen: time.Now().Unix(),
		Shared:   !ev.Local(),
	})

	if err := app.injector.SendPair(pair.Frames()); err != nil {
		app.logger.WithError(err).Info("Dropped frame pair")
	}

	// Relay only positions we heard ourselves; relaying relayed
	// positions would loop them between peers.
	if ev.Local() && app.sender != nil {
		rec := share.NewRecord(app.cfg.Share.Department, pair.Unit, pair.Name,
			ev.Latitude, ev.Longitude, pair.AltFt, ev.Timestamp)
		if err := app.sender.Send(rec); err != nil {
			app.logger.WithError(err).Info("Location share send failed")
		}
	}
}

// runTestTicker feeds a fixed synthetic position through the full path.
func (app *Application) runTestTicker(events chan<- pipeline.PositionEvent) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			events <- pipeline.PositionEvent{
				DeviceID:    "!cafebabe",
				Latitude:    40.7859839,
				Longitude:   -119.2470743,
				AltitudeFt:  4000,
				HasAltitude: true,
				Timestamp:   time.Now(),
			}
		}
	}
}

func (app *Application) persistTrackers() {
	ticker := time.NewTicker(app.cfg.Tracker.SaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			if err := app.trackers.Save(app.cfg.Tracker.Path); err != nil {
				app.logger.WithError(err).Warn("Tracker save failed")
			}
		}
	}
}

// shutdown stops accepting new events and lets in-flight ones drain, with
// a bounded wait.
func (app *Application) shutdown() {
	app.logger.Info("Shutting down")
	app.cancel()

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		app.logger.Warn("Shutdown timeout, forcing exit")
	}

	if app.cfg.Tracker.Path != "" {
		if err := app.trackers.Save(app.cfg.Tracker.Path); err != nil {
			app.logger.WithError(err).Warn("Tracker save failed")
		}
	}
	if app.sender != nil {
		_ = app.sender.Close()
	}
	app.injector.Close()
	app.logger.Info("Shutdown completed")
}
