// Package playback records operator poses and replays them in a loop.
package playback

import (
	"fmt"

	"github.com/gwillem/armsim/pkg/kinematics"
	"github.com/gwillem/armsim/pkg/status"
)

// Pose is a snapshot of the joint and gripper targets.
type Pose struct {
	Joints   kinematics.Angles `json:"joints" yaml:"joints"`
	Aperture float64           `json:"aperture" yaml:"aperture"`
}

// Arm is the part of the motion controller the recorder reads and drives.
type Arm interface {
	Targets() kinematics.Angles
	GripperTarget() float64
	IsAtTarget(tolerance float64) bool
	GripperAtTarget(tolerance float64) bool
	SetJointTarget(j kinematics.Joint, degrees float64) float64
	SetGripperTarget(aperture float64) float64
}

// Config holds the playback tolerances.
type Config struct {
	JointTolerance   float64 `yaml:"joint_tolerance"`
	GripperTolerance float64 `yaml:"gripper_tolerance"`
	// HoldTicks is how many converged ticks a pose is held before moving on.
	HoldTicks int `yaml:"hold_ticks"`
}

// DefaultConfig returns the canonical playback tolerances.
func DefaultConfig() Config {
	return Config{
		JointTolerance:   0.1,
		GripperTolerance: 0.01,
		HoldTicks:        10,
	}
}

// Validate checks the tolerances.
func (c Config) Validate() error {
	if c.JointTolerance <= 0 || c.GripperTolerance <= 0 {
		return fmt.Errorf("playback tolerances must be positive")
	}
	if c.HoldTicks < 0 {
		return fmt.Errorf("hold ticks must not be negative, got %d", c.HoldTicks)
	}
	return nil
}

// Recorder keeps the recorded poses and the playback cursor.
type Recorder struct {
	cfg    Config
	arm    Arm
	sink   status.Sink
	poses  []Pose
	active bool
	index  int
	hold   int
}

// NewRecorder creates an empty recorder for arm.
func NewRecorder(cfg Config, arm Arm, sink status.Sink) *Recorder {
	if sink == nil {
		sink = status.Discard
	}
	return &Recorder{cfg: cfg, arm: arm, sink: sink}
}

// Record snapshots the arm's current targets and appends them.
func (r *Recorder) Record() Pose {
	p := Pose{Joints: r.arm.Targets(), Aperture: r.arm.GripperTarget()}
	r.poses = append(r.poses, p)
	status.Reportf(r.sink, "Saved pose #%d", len(r.poses))
	return p
}

// Apply sends a pose's targets to the arm.
func (r *Recorder) Apply(p Pose) {
	for _, j := range kinematics.AllJoints() {
		r.arm.SetJointTarget(j, p.Joints[j])
	}
	r.arm.SetGripperTarget(p.Aperture)
}

// Len returns the number of recorded poses.
func (r *Recorder) Len() int { return len(r.poses) }

// Clear stops playback and forgets every pose.
func (r *Recorder) Clear() {
	r.active = false
	r.poses = nil
	r.index = 0
	r.hold = 0
}

// Active reports whether playback is looping.
func (r *Recorder) Active() bool { return r.active }

// Index returns the pose being played.
func (r *Recorder) Index() int { return r.index }

// Start begins looping from the first pose. It returns false when there is
// nothing to play.
func (r *Recorder) Start() bool {
	if len(r.poses) == 0 {
		r.sink.Report("Play Mode: no saved poses")
		return false
	}
	r.active = true
	r.index = 0
	r.hold = 0
	r.Apply(r.poses[0])
	r.sink.Report("Play Mode: ON (loop)")
	return true
}

// Stop leaves playback; targets stay where they are.
func (r *Recorder) Stop() {
	r.active = false
	r.sink.Report("Play Mode: OFF")
}

func (r *Recorder) reached() bool {
	return r.arm.IsAtTarget(r.cfg.JointTolerance) && r.arm.GripperAtTarget(r.cfg.GripperTolerance)
}

// Tick holds a reached pose for the configured number of ticks, then applies
// the next one, wrapping around at the end.
func (r *Recorder) Tick() {
	if !r.active || len(r.poses) == 0 || !r.reached() {
		return
	}
	if r.hold < r.cfg.HoldTicks {
		r.hold++
		return
	}
	r.hold = 0
	r.index = (r.index + 1) % len(r.poses)
	r.Apply(r.poses[r.index])
	status.Reportf(r.sink, "Play pose #%d", r.index+1)
}
