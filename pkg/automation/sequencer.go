// Package automation runs scripted routines on the arm as a state machine
// polled once per tick.
package automation

import (
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"github.com/gwillem/armsim/pkg/kinematics"
	"github.com/gwillem/armsim/pkg/status"
)

// Arm is the target-setting contract the sequencer drives.
type Arm interface {
	SetJointTarget(j kinematics.Joint, degrees float64) float64
	JointTarget(j kinematics.Joint) float64
	OpenGripper()
	CloseGripper()
	IsAtTarget(tolerance float64) bool
	Angles() kinematics.Angles
	Targets() kinematics.Angles
}

// Effector changes the manipulated object on behalf of grasp and release steps.
type Effector interface {
	// AttachObject puts the object in the gripper.
	AttachObject()
	// ReleaseObject drops the object where the gripper is.
	ReleaseObject()
	// ResetObject frees the object and moves it to position.
	ResetObject(position r3.Vector)
}

// State is the sequencer's externally visible state.
type State string

const (
	Idle      State = "idle"
	Starting  State = "starting"
	Moving    State = "moving"
	Grasping  State = "grasping"
	Releasing State = "releasing"
)

// Config holds the routine timing.
type Config struct {
	StartupDelay time.Duration `yaml:"startup_delay"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
	GraspDelay   time.Duration `yaml:"grasp_delay"`
	ReleaseDelay time.Duration `yaml:"release_delay"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MoveTimeout  time.Duration `yaml:"move_timeout"`

	// Tolerance in degrees for move convergence.
	Tolerance float64 `yaml:"tolerance"`

	Home        kinematics.Angles `yaml:"home"`
	ObjectStart r3.Vector         `yaml:"object_start"`
	ObjectSize  r3.Vector         `yaml:"object_size"`
}

// DefaultConfig returns the canonical routine timing.
func DefaultConfig() Config {
	return Config{
		StartupDelay: time.Second,
		SettleDelay:  500 * time.Millisecond,
		GraspDelay:   time.Second,
		ReleaseDelay: time.Second,
		PollInterval: 50 * time.Millisecond,
		MoveTimeout:  10 * time.Second,
		Tolerance:    1.0,
		Home:         HomePose,
		ObjectStart:  r3.Vector{X: 5, Y: 0.5, Z: 0},
		ObjectSize:   r3.Vector{X: 0.5, Y: 0.5, Z: 0.5},
	}
}

// Validate checks the timing values.
func (c Config) Validate() error {
	if c.StartupDelay < 0 || c.SettleDelay < 0 || c.GraspDelay < 0 || c.ReleaseDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.MoveTimeout <= 0 {
		return fmt.Errorf("move timeout must be positive, got %s", c.MoveTimeout)
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %.3f", c.Tolerance)
	}
	return nil
}

// Status is a side-effect free snapshot of a run.
type Status struct {
	State      State
	Active     bool
	StepIndex  int
	TotalSteps int
}

type phase int

const (
	phaseNone phase = iota
	phaseStartup
	phaseConverge
	phaseHold
	phaseSettle
)

// Sequencer executes a routine against an Arm. Waits are expressed as phases
// with a start time, checked on every Tick; nothing blocks.
//
// Sequencer is not safe for concurrent use; the host serializes access.
type Sequencer struct {
	cfg     Config
	routine Routine
	arm     Arm
	eff     Effector

	clock  clock.Clock
	logger *zap.Logger
	sink   status.Sink

	state      State
	active     bool
	step       int
	phase      phase
	phaseStart time.Time
	lastPoll   time.Time
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithClock sets the time source. Tests pass a clock.Mock.
func WithClock(c clock.Clock) Option {
	return func(s *Sequencer) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sequencer) { s.logger = l }
}

// WithSink sets the status sink.
func WithSink(sink status.Sink) Option {
	return func(s *Sequencer) { s.sink = sink }
}

// NewSequencer creates an idle sequencer for routine.
func NewSequencer(cfg Config, routine Routine, arm Arm, eff Effector, opts ...Option) *Sequencer {
	s := &Sequencer{
		cfg:     cfg,
		routine: routine,
		arm:     arm,
		eff:     eff,
		clock:   clock.New(),
		logger:  zap.NewNop(),
		sink:    status.Discard,
		state:   Idle,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routine returns the routine being run.
func (s *Sequencer) Routine() Routine { return s.routine }

// Active reports whether a run is in progress.
func (s *Sequencer) Active() bool { return s.active }

// Status returns the current run state.
func (s *Sequencer) Status() Status {
	return Status{
		State:      s.state,
		Active:     s.active,
		StepIndex:  s.step,
		TotalSteps: s.routine.Len(),
	}
}

func (s *Sequencer) title() string {
	return strings.ToUpper(s.routine.Name())
}

func (s *Sequencer) enter(p phase) {
	s.phase = p
	s.phaseStart = s.clock.Now()
	s.lastPoll = s.phaseStart
}

// Start begins the routine from step 0. It returns false, and changes
// nothing, when a run is already in progress.
func (s *Sequencer) Start() bool {
	if s.active {
		s.sink.Report("Automation already running")
		return false
	}
	s.active = true
	s.step = 0
	s.state = Starting

	if s.eff != nil {
		s.eff.ResetObject(s.cfg.ObjectStart)
	}
	s.arm.OpenGripper()
	status.Reportf(s.sink, "=== STARTING %s ROUTINE ===", s.title())
	s.logger.Debug("routine started", zap.String("routine", s.routine.Name()), zap.Int("steps", s.routine.Len()))

	s.enter(phaseStartup)
	return true
}

// AdvanceStep dispatches the current step, or completes the run when every
// step has been executed. It is a no-op when no run is active.
func (s *Sequencer) AdvanceStep() {
	if !s.active {
		return
	}
	if s.step >= s.routine.Len() {
		s.active = false
		s.state = Idle
		s.phase = phaseNone
		status.Reportf(s.sink, "=== %s ROUTINE COMPLETED! ===", s.title())
		s.logger.Debug("routine completed", zap.String("routine", s.routine.Name()))
		return
	}

	st := s.routine.Step(s.step)
	status.Reportf(s.sink, "[Step %d/%d] %s", s.step+1, s.routine.Len(), st.Description)
	s.logger.Debug("executing step",
		zap.Int("step", s.step),
		zap.Stringer("kind", st.Kind),
		zap.String("description", st.Description))

	switch st.Kind {
	case StepMove:
		s.state = Moving
		for _, j := range kinematics.AllJoints() {
			s.arm.SetJointTarget(j, st.Target[j])
		}
		s.enter(phaseConverge)
	case StepLift:
		s.state = Moving
		s.arm.SetJointTarget(kinematics.LowerArm, s.arm.JointTarget(kinematics.LowerArm)+st.Delta)
		s.enter(phaseConverge)
	case StepGrasp:
		s.state = Grasping
		s.arm.CloseGripper()
		s.enter(phaseHold)
	case StepRelease:
		s.state = Releasing
		s.arm.OpenGripper()
		s.enter(phaseHold)
	default:
		status.Reportf(s.sink, "Skipping unknown step %v", st.Kind)
		s.finishStep()
	}
}

func (s *Sequencer) finishStep() {
	s.step++
	s.enter(phaseSettle)
}

// Tick checks the pending wait and moves on when it is over. Call it once per
// frame after the motion controller has advanced.
func (s *Sequencer) Tick() {
	if !s.active {
		return
	}
	now := s.clock.Now()
	elapsed := now.Sub(s.phaseStart)

	switch s.phase {
	case phaseStartup:
		if elapsed >= s.cfg.StartupDelay {
			s.AdvanceStep()
		}

	case phaseConverge:
		if now.Sub(s.lastPoll) < s.cfg.PollInterval {
			return
		}
		s.lastPoll = now
		if s.arm.IsAtTarget(s.cfg.Tolerance) {
			s.logger.Debug("arm reached target", zap.Int("step", s.step), zap.Duration("elapsed", elapsed))
			s.finishStep()
			return
		}
		if elapsed >= s.cfg.MoveTimeout {
			a, t := s.arm.Angles(), s.arm.Targets()
			s.logger.Warn("movement timeout",
				zap.Int("step", s.step),
				zap.Float64s("angles", a[:]),
				zap.Float64s("targets", t[:]))
			status.Reportf(s.sink, "Movement timeout at step %d, continuing", s.step+1)
			s.finishStep()
		}

	case phaseHold:
		st := s.routine.Step(s.step)
		if st.Kind == StepGrasp && elapsed >= s.cfg.GraspDelay {
			if s.eff != nil {
				s.eff.AttachObject()
			}
			s.sink.Report("✓ Object successfully grasped")
			s.finishStep()
		} else if st.Kind == StepRelease && elapsed >= s.cfg.ReleaseDelay {
			if s.eff != nil {
				s.eff.ReleaseObject()
			}
			s.sink.Report("✓ Object released")
			s.finishStep()
		}

	case phaseSettle:
		if elapsed >= s.cfg.SettleDelay {
			s.AdvanceStep()
		}
	}
}

// Stop ends the run immediately without undoing any motion.
func (s *Sequencer) Stop() {
	s.active = false
	s.state = Idle
	s.phase = phaseNone
	s.sink.Report("Automation stopped")
}

// ResetToHome stops the run, sends the arm home with the gripper open and
// puts the object back at its start position.
func (s *Sequencer) ResetToHome() {
	s.Stop()
	for _, j := range kinematics.AllJoints() {
		s.arm.SetJointTarget(j, s.cfg.Home[j])
	}
	s.arm.OpenGripper()
	if s.eff != nil {
		s.eff.ResetObject(s.cfg.ObjectStart)
	}
	s.sink.Report("Arm reset to home position")
}
