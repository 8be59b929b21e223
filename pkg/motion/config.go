package motion

import (
	"fmt"

	"github.com/gwillem/armsim/pkg/kinematics"
)

// Limits is an inclusive range.
type Limits struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Clamp returns v limited to [Min, Max].
func (l Limits) Clamp(v float64) float64 {
	if v < l.Min {
		return l.Min
	}
	if v > l.Max {
		return l.Max
	}
	return v
}

// Contains reports whether v lies within the limits.
func (l Limits) Contains(v float64) bool {
	return v >= l.Min && v <= l.Max
}

// Mid returns the center of the range.
func (l Limits) Mid() float64 {
	return (l.Min + l.Max) / 2
}

// JointLimits holds per-joint angle limits in degrees.
type JointLimits struct {
	Base     Limits `yaml:"base"`
	LowerArm Limits `yaml:"lower_arm"`
	UpperArm Limits `yaml:"upper_arm"`
}

// For returns the limits of joint j.
func (l JointLimits) For(j kinematics.Joint) Limits {
	switch j {
	case kinematics.LowerArm:
		return l.LowerArm
	case kinematics.UpperArm:
		return l.UpperArm
	default:
		return l.Base
	}
}

// Config holds the tunables of the motion controller.
type Config struct {
	JointLimits   JointLimits `yaml:"joint_limits"`
	GripperLimits Limits      `yaml:"gripper_limits"`

	// Fraction of the remaining distance covered per tick at 1x speed.
	JointSmoothing   float64 `yaml:"joint_smoothing"`
	GripperSmoothing float64 `yaml:"gripper_smoothing"`

	// Below these deltas the current value snaps onto the target.
	JointEpsilon   float64 `yaml:"joint_epsilon"`
	GripperEpsilon float64 `yaml:"gripper_epsilon"`

	SpeedRange Limits  `yaml:"speed_range"`
	Speed      float64 `yaml:"speed"`
	SpeedStep  float64 `yaml:"speed_step"`

	// MotionScale scales keyboard nudges.
	MotionScale float64 `yaml:"motion_scale"`

	InitialPose     kinematics.Angles `yaml:"initial_pose"`
	InitialAperture float64           `yaml:"initial_aperture"`
}

// DefaultConfig returns the canonical motion tunables.
func DefaultConfig() Config {
	return Config{
		JointLimits: JointLimits{
			Base:     Limits{Min: -180, Max: 180},
			LowerArm: Limits{Min: -150, Max: 150},
			UpperArm: Limits{Min: -150, Max: 150},
		},
		GripperLimits:    Limits{Min: 0.15, Max: 0.75},
		JointSmoothing:   0.15,
		GripperSmoothing: 0.12,
		JointEpsilon:     0.05,
		GripperEpsilon:   0.005,
		SpeedRange:       Limits{Min: 0.25, Max: 3.0},
		Speed:            1.0,
		SpeedStep:        0.25,
		MotionScale:      0.5,
		InitialPose:      kinematics.Angles{75, 35, 90},
		InitialAperture:  0.55,
	}
}

// Validate checks the configuration for inconsistent values.
func (c Config) Validate() error {
	for _, j := range kinematics.AllJoints() {
		if l := c.JointLimits.For(j); l.Min > l.Max {
			return fmt.Errorf("%s limits inverted: min %.1f > max %.1f", j, l.Min, l.Max)
		}
	}
	if c.GripperLimits.Min > c.GripperLimits.Max {
		return fmt.Errorf("gripper limits inverted: min %.3f > max %.3f", c.GripperLimits.Min, c.GripperLimits.Max)
	}
	if c.JointSmoothing <= 0 || c.GripperSmoothing <= 0 {
		return fmt.Errorf("smoothing factors must be positive")
	}
	if c.JointEpsilon <= 0 || c.GripperEpsilon <= 0 {
		return fmt.Errorf("snap epsilons must be positive")
	}
	if c.SpeedRange.Min <= 0 || c.SpeedRange.Min > c.SpeedRange.Max {
		return fmt.Errorf("invalid speed range [%.2f, %.2f]", c.SpeedRange.Min, c.SpeedRange.Max)
	}
	return nil
}
