// Package sim hosts the arm simulation: it owns every component, runs the
// tick loop and exposes the command and query surface.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"github.com/gwillem/armsim/pkg/automation"
	"github.com/gwillem/armsim/pkg/grasp"
	"github.com/gwillem/armsim/pkg/kinematics"
	"github.com/gwillem/armsim/pkg/motion"
	"github.com/gwillem/armsim/pkg/playback"
	"github.com/gwillem/armsim/pkg/status"
)

// Driver is the component currently allowed to write joint targets on its own.
type Driver int

const (
	DriverNone Driver = iota
	DriverAutomation
	DriverPlayback
)

func (d Driver) String() string {
	switch d {
	case DriverAutomation:
		return "automation"
	case DriverPlayback:
		return "playback"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Driver) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Mirror receives the simulated pose after every tick, for example a real arm.
type Mirror interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	WriteState(ctx context.Context, angles kinematics.Angles, aperture float64) error
}

// Observer is notified with the state after every tick.
type Observer interface {
	Observe(st State)
}

// Status is the query surface for UI reflection.
type Status struct {
	AutomationState automation.State   `json:"automationState"`
	GripperState    motion.GripperPhase `json:"gripperState"`
	HoldingObject   bool               `json:"holdingObject"`
	StepIndex       int                `json:"stepIndex"`
	TotalSteps      int                `json:"totalSteps"`
	Active          bool               `json:"active"`
	Driver          Driver             `json:"driver"`
	PlaybackIndex   int                `json:"playbackIndex"`
	SavedPoses      int                `json:"savedPoses"`
}

// State is a snapshot of the simulation after a tick.
type State struct {
	Angles         kinematics.Angles `json:"angles"`
	Targets        kinematics.Angles `json:"targets"`
	Aperture       float64           `json:"aperture"`
	ApertureTarget float64           `json:"apertureTarget"`
	Speed          float64           `json:"speed"`
	EndEffector    r3.Vector         `json:"endEffector"`
	Object         r3.Vector         `json:"object"`
	Status         Status            `json:"status"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Config holds the configuration of every component.
type Config struct {
	Motion     motion.Config
	Grasp      grasp.Config
	Automation automation.Config
	Playback   playback.Config
	Routine    automation.Routine
	Hz         int
}

// DefaultConfig returns the canonical simulation configuration.
func DefaultConfig() Config {
	return Config{
		Motion:     motion.DefaultConfig(),
		Grasp:      grasp.DefaultConfig(),
		Automation: automation.DefaultConfig(),
		Playback:   playback.DefaultConfig(),
		Routine:    automation.DefaultRoutine(),
		Hz:         60,
	}
}

// Simulator owns the motion controller, grasp detector, sequencer and pose
// recorder and ticks them in a fixed order. It is safe for concurrent use.
type Simulator struct {
	hz        int
	clock     clock.Clock
	logger    *zap.Logger
	sink      status.Sink
	mirror    Mirror
	observers []Observer

	mu      sync.Mutex
	ctrl    *motion.Controller
	det     *grasp.Detector
	obj     *grasp.Object
	seq     *automation.Sequencer
	rec     *playback.Recorder
	running bool
	stateCh chan State
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(s *Simulator) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithSink sets the status sink shared by all components.
func WithSink(sink status.Sink) Option {
	return func(s *Simulator) { s.sink = sink }
}

// WithMirror streams every tick's pose to m.
func WithMirror(m Mirror) Option {
	return func(s *Simulator) { s.mirror = m }
}

// WithObserver adds an observer of tick states.
func WithObserver(o Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

// New creates a simulator with the arm at its initial pose and the object at
// its start position.
func New(cfg Config, opts ...Option) *Simulator {
	s := &Simulator{
		hz:      cfg.Hz,
		clock:   clock.New(),
		logger:  zap.NewNop(),
		sink:    status.Discard,
		stateCh: make(chan State, 1),
	}
	for _, o := range opts {
		o(s)
	}
	if s.hz <= 0 {
		s.hz = 60
	}

	s.ctrl = motion.NewController(cfg.Motion, s.sink)
	s.det = grasp.NewDetector(cfg.Grasp, s.sink)
	s.obj = grasp.NewObject(cfg.Automation.ObjectStart, cfg.Automation.ObjectSize)
	s.seq = automation.NewSequencer(cfg.Automation, cfg.Routine, s.ctrl, effector{s},
		automation.WithClock(s.clock),
		automation.WithLogger(s.logger.Named("automation")),
		automation.WithSink(s.sink))
	s.rec = playback.NewRecorder(cfg.Playback, s.ctrl, s.sink)
	return s
}

// effector lets the sequencer move the object. Its methods run with s.mu held.
type effector struct{ s *Simulator }

func (e effector) AttachObject() {
	e.s.obj.Owner = grasp.HeldAutomatic
	e.s.obj.Position = e.s.endEffector()
}

func (e effector) ReleaseObject() {
	e.s.obj.Owner = grasp.Free
	e.s.obj.Position = e.s.endEffector()
}

func (e effector) ResetObject(p r3.Vector) {
	e.s.obj.Reset(p)
}

func (s *Simulator) endEffector() r3.Vector {
	return kinematics.EndEffectorPosition(s.ctrl.Angles())
}

// Hz returns the tick rate of Run.
func (s *Simulator) Hz() int {
	return s.hz
}

// States returns a channel that receives the latest state after each tick.
func (s *Simulator) States() <-chan State {
	return s.stateCh
}

// Tick advances the simulation by one frame: the controller integrates, the
// grasp detector reads the new end-effector position, then the sequencer and
// the recorder check their waits.
func (s *Simulator) Tick(dtScale float64) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctrl.Tick(dtScale)
	s.det.Update(s.endEffector(), s.ctrl.GripperAperture(), s.obj)
	s.seq.Tick()
	s.rec.Tick()
	return s.snapshot()
}

// Run ticks the simulation at Hz until ctx is done. It returns an error if
// the simulation is already running.
func (s *Simulator) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.Enable(ctx); err != nil {
			s.logger.Warn("failed to enable mirror", zap.Error(err))
		} else {
			s.logger.Info("mirror arm: torque enabled")
		}
	}
	s.logger.Info("simulation started", zap.Int("hz", s.hz))

	ticker := s.clock.Ticker(time.Second / time.Duration(s.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case <-ticker.C:
			s.step(ctx)
		}
	}
}

func (s *Simulator) step(ctx context.Context) {
	st := s.Tick(1)

	if s.mirror != nil {
		if err := s.mirror.WriteState(ctx, st.Angles, st.Aperture); err != nil {
			s.logger.Debug("mirror write failed", zap.Error(err))
		}
	}
	for _, o := range s.observers {
		o.Observe(st)
	}
	s.sendState(st)
}

func (s *Simulator) sendState(st State) {
	select {
	case s.stateCh <- st:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-s.stateCh:
		default:
		}
		s.stateCh <- st
	}
}

func (s *Simulator) shutdown() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.Disable(context.Background()); err != nil {
			s.logger.Warn("failed to disable mirror", zap.Error(err))
		} else {
			s.logger.Info("mirror arm: torque disabled")
		}
	}
	s.logger.Info("simulation stopped")
}

func (s *Simulator) driver() Driver {
	switch {
	case s.seq.Active():
		return DriverAutomation
	case s.rec.Active():
		return DriverPlayback
	default:
		return DriverNone
	}
}

func (s *Simulator) status() Status {
	seq := s.seq.Status()
	return Status{
		AutomationState: seq.State,
		GripperState:    s.ctrl.GripperPhase(),
		HoldingObject:   s.obj.Attached(),
		StepIndex:       seq.StepIndex,
		TotalSteps:      seq.TotalSteps,
		Active:          seq.Active,
		Driver:          s.driver(),
		PlaybackIndex:   s.rec.Index(),
		SavedPoses:      s.rec.Len(),
	}
}

func (s *Simulator) snapshot() State {
	return State{
		Angles:         s.ctrl.Angles(),
		Targets:        s.ctrl.Targets(),
		Aperture:       s.ctrl.GripperAperture(),
		ApertureTarget: s.ctrl.GripperTarget(),
		Speed:          s.ctrl.SpeedMultiplier(),
		EndEffector:    s.endEffector(),
		Object:         s.obj.Position,
		Status:         s.status(),
		Timestamp:      s.clock.Now(),
	}
}

// Status returns the query surface. It has no side effects.
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status()
}

// State returns a snapshot without ticking.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Driver returns the component that owns the joint targets.
func (s *Simulator) Driver() Driver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver()
}

// Object returns a copy of the manipulated object.
func (s *Simulator) Object() grasp.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.obj
}

// StartAutomation starts the routine unless playback owns the joints or the
// routine is already running.
func (s *Simulator) StartAutomation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec.Active() {
		s.sink.Report("Playback running, stop it before starting automation")
		return false
	}
	return s.seq.Start()
}

// StopAutomation stops the routine where it is.
func (s *Simulator) StopAutomation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq.Stop()
}

// ResetToHome stops automation and playback and sends the arm home.
func (s *Simulator) ResetToHome() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec.Active() {
		s.rec.Stop()
	}
	s.seq.ResetToHome()
}

// RecordPose saves the current targets.
func (s *Simulator) RecordPose() playback.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Record()
}

// ClearPoses forgets every saved pose.
func (s *Simulator) ClearPoses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Clear()
	s.sink.Report("Saved poses cleared")
}

// TogglePlayback stops a running playback or starts one. Playback does not
// start while automation owns the joints. It returns whether playback is on.
func (s *Simulator) TogglePlayback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec.Active() {
		s.rec.Stop()
		return false
	}
	if s.seq.Active() {
		s.sink.Report("Automation running, stop it before starting playback")
		return false
	}
	return s.rec.Start()
}

// OpenGripper targets the widest aperture.
func (s *Simulator) OpenGripper() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.OpenGripper()
}

// CloseGripper targets the narrowest aperture.
func (s *Simulator) CloseGripper() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.CloseGripper()
}

// ToggleGripper opens a closed gripper or closes an open one.
func (s *Simulator) ToggleGripper() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.ToggleGripper()
}

// SetSpeedMultiplier sets the speed of joints and gripper.
func (s *Simulator) SetSpeedMultiplier(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.SetSpeedMultiplier(v)
}

// AdjustSpeed changes the speed by whole speed steps.
func (s *Simulator) AdjustSpeed(steps int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.AdjustSpeed(steps)
}

// SetJointTarget sets a joint's target, clamped to its limits.
func (s *Simulator) SetJointTarget(j kinematics.Joint, degrees float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.SetJointTarget(j, degrees)
}

// NudgeJoint moves a joint's target by a scaled delta.
func (s *Simulator) NudgeJoint(j kinematics.Joint, delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.NudgeJoint(j, delta)
}

// SetGripperTarget sets the gripper target, clamped to its limits.
func (s *Simulator) SetGripperTarget(aperture float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.SetGripperTarget(aperture)
}

// NudgeGripper moves the gripper target by delta.
func (s *Simulator) NudgeGripper(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.NudgeGripper(delta)
}

// SetGripperPercent sets the gripper target as a percentage of its range.
func (s *Simulator) SetGripperPercent(percent float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.SetGripperPercent(percent)
}

// AttachObject puts the object in the gripper on the operator's behalf.
func (s *Simulator) AttachObject() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.det.ManualAttach(s.endEffector(), s.obj)
}

// DetachObject drops the object at the gripper on the operator's behalf.
func (s *Simulator) DetachObject() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.det.ManualDetach(s.endEffector(), s.obj)
}

// ToggleObject attaches a loose object or drops a held one.
func (s *Simulator) ToggleObject() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.det.Toggle(s.endEffector(), s.obj)
}
