package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gwillem/armsim/pkg/logging"
	"github.com/gwillem/armsim/pkg/robot"
	"github.com/gwillem/armsim/pkg/sim"
	"github.com/gwillem/armsim/pkg/status"
	"github.com/gwillem/armsim/pkg/telemetry"
)

// app wires a simulator to the I/O named in the configuration file.
type app struct {
	cfg     *robot.Config
	logger  *zap.Logger
	sim     *sim.Simulator
	closers []func()
}

// newApp loads the configuration, builds the logger and connects the optional
// mirror arm and MQTT publisher. Status lines go to sink and to the log.
func newApp(logCfg func(*logging.Config), sink status.Sink) (*app, error) {
	cfg, err := robot.LoadConfigOrDefault(configPath())
	if err != nil {
		return nil, err
	}
	if logCfg != nil {
		logCfg(&cfg.Logging)
	}

	logger, err := logging.New(cfg.Logging, "armsim")
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	sinks := []status.Sink{status.NewLogSink(logger.Named("status"))}
	if sink != nil {
		sinks = append(sinks, sink)
	}
	var simOpts []sim.Option

	if cfg.MQTT.Enabled() {
		pub, err := telemetry.Connect(cfg.MQTT, logger.Named("mqtt"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })
		sinks = append(sinks, pub)
		simOpts = append(simOpts, sim.WithObserver(pub))
	}

	if cfg.Mirror.Enabled() {
		if !cfg.Mirror.IsCalibrated() {
			a.Close()
			return nil, fmt.Errorf("mirror on %s is not calibrated, run 'armsim detect' first", cfg.Mirror.Port)
		}
		cal, err := cfg.Mirror.LoadCalibration()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("mirror on %s: %w", cfg.Mirror.Port, err)
		}
		arm, err := robot.NewArm(cfg.Mirror.Port, cal, cfg.Motion)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("mirror on %s: %w", cfg.Mirror.Port, err)
		}
		logger.Info("mirroring to follower arm", zap.String("port", cfg.Mirror.Port))
		a.closers = append(a.closers, func() { _ = arm.Close() })
		simOpts = append(simOpts, sim.WithMirror(arm))
	}

	sc, err := cfg.SimConfig()
	if err != nil {
		a.Close()
		return nil, err
	}

	simOpts = append(simOpts,
		sim.WithLogger(logger.Named("sim")),
		sim.WithSink(status.Multi(sinks...)),
	)
	a.sim = sim.New(sc, simOpts...)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
