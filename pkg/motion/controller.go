// Package motion smooths the arm's joints and gripper toward their targets.
package motion

import (
	"fmt"
	"math"

	"github.com/gwillem/armsim/pkg/kinematics"
	"github.com/gwillem/armsim/pkg/status"
)

// JointState is the current and commanded angle of one joint, in degrees.
type JointState struct {
	Angle  float64
	Target float64
	Limits Limits
}

// GripperState is the current and commanded jaw aperture.
type GripperState struct {
	Aperture float64
	Target   float64
	Limits   Limits
}

// GripperPhase describes what the gripper is doing.
type GripperPhase string

// Gripper phases.
const (
	GripperOpen    GripperPhase = "open"
	GripperClosed  GripperPhase = "closed"
	GripperOpening GripperPhase = "opening"
	GripperClosing GripperPhase = "closing"
)

// Controller owns the joint and gripper state and is the only writer of
// current values. Callers move the arm by setting targets and calling Tick.
//
// Controller is not safe for concurrent use; the host serializes access.
type Controller struct {
	cfg     Config
	joints  [kinematics.NumJoints]JointState
	gripper GripperState
	speed   float64
	sink    status.Sink
}

// NewController creates a controller resting at the configured initial pose.
func NewController(cfg Config, sink status.Sink) *Controller {
	if sink == nil {
		sink = status.Discard
	}
	c := &Controller{
		cfg:  cfg,
		sink: sink,
	}
	for _, j := range kinematics.AllJoints() {
		c.joints[j].Limits = cfg.JointLimits.For(j)
	}
	c.gripper.Limits = cfg.GripperLimits
	c.speed = cfg.SpeedRange.Clamp(cfg.Speed)
	c.snap(cfg.InitialPose, cfg.InitialAperture)
	return c
}

func (c *Controller) report(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.sink.Report(fmt.Sprintf("%s | Base: %.1f° Lower: %.1f° Upper: %.1f°", msg,
		c.joints[kinematics.Base].Angle,
		c.joints[kinematics.LowerArm].Angle,
		c.joints[kinematics.UpperArm].Angle))
}

func (c *Controller) snap(a kinematics.Angles, aperture float64) {
	for _, j := range kinematics.AllJoints() {
		v := c.joints[j].Limits.Clamp(a[j])
		c.joints[j].Angle = v
		c.joints[j].Target = v
	}
	ap := c.gripper.Limits.Clamp(aperture)
	c.gripper.Aperture = ap
	c.gripper.Target = ap
}

// SetInitialPose places the arm at the given pose immediately, without smoothing.
func (c *Controller) SetInitialPose(a kinematics.Angles, aperture float64) {
	c.snap(a, aperture)
}

// SetJointTarget clamps degrees to the joint's limits and stores it as the
// joint's target. It returns the stored value.
func (c *Controller) SetJointTarget(j kinematics.Joint, degrees float64) float64 {
	if !j.Valid() || math.IsNaN(degrees) {
		c.report("Ignored target %v for %s", degrees, j)
		if j.Valid() {
			return c.joints[j].Target
		}
		return 0
	}
	js := &c.joints[j]
	js.Target = js.Limits.Clamp(degrees)
	c.report("%s target = %.1f°", j, js.Target)
	return js.Target
}

// NudgeJoint moves a joint's target by delta scaled with the configured motion scale.
func (c *Controller) NudgeJoint(j kinematics.Joint, delta float64) float64 {
	if !j.Valid() {
		return 0
	}
	return c.SetJointTarget(j, c.joints[j].Target+delta*c.cfg.MotionScale)
}

// JointTarget returns the target angle of joint j.
func (c *Controller) JointTarget(j kinematics.Joint) float64 {
	if !j.Valid() {
		return 0
	}
	return c.joints[j].Target
}

// Joint returns a copy of joint j's state.
func (c *Controller) Joint(j kinematics.Joint) JointState {
	if !j.Valid() {
		return JointState{}
	}
	return c.joints[j]
}

// Angles returns the current joint angles.
func (c *Controller) Angles() kinematics.Angles {
	var a kinematics.Angles
	for j := range c.joints {
		a[j] = c.joints[j].Angle
	}
	return a
}

// Targets returns the target joint angles.
func (c *Controller) Targets() kinematics.Angles {
	var a kinematics.Angles
	for j := range c.joints {
		a[j] = c.joints[j].Target
	}
	return a
}

// SetGripperTarget clamps aperture to the gripper limits and stores it as the target.
func (c *Controller) SetGripperTarget(aperture float64) float64 {
	if math.IsNaN(aperture) {
		c.report("Ignored grip target %v", aperture)
		return c.gripper.Target
	}
	c.gripper.Target = c.gripper.Limits.Clamp(aperture)
	c.report("Grip target = %.2f", c.gripper.Target)
	return c.gripper.Target
}

// NudgeGripper moves the gripper target by delta.
func (c *Controller) NudgeGripper(delta float64) float64 {
	return c.SetGripperTarget(c.gripper.Target + delta)
}

// SetGripperPercent maps 0..100% onto the gripper limits.
func (c *Controller) SetGripperPercent(percent float64) float64 {
	p := Limits{Min: 0, Max: 100}.Clamp(percent) / 100
	l := c.gripper.Limits
	return c.SetGripperTarget(l.Min + p*(l.Max-l.Min))
}

// OpenGripper targets the widest aperture.
func (c *Controller) OpenGripper() {
	c.gripper.Target = c.gripper.Limits.Max
	c.report("Gripper opening")
}

// CloseGripper targets the narrowest aperture.
func (c *Controller) CloseGripper() {
	c.gripper.Target = c.gripper.Limits.Min
	c.report("Gripper closing")
}

// ToggleGripper closes an open gripper and opens a closed one, judged by the
// current aperture against the midpoint of the limits.
func (c *Controller) ToggleGripper() {
	if c.gripper.Aperture > c.gripper.Limits.Mid() {
		c.CloseGripper()
	} else {
		c.OpenGripper()
	}
}

// Gripper returns a copy of the gripper state.
func (c *Controller) Gripper() GripperState {
	return c.gripper
}

// GripperAperture returns the current jaw gap.
func (c *Controller) GripperAperture() float64 {
	return c.gripper.Aperture
}

// GripperTarget returns the commanded jaw gap.
func (c *Controller) GripperTarget() float64 {
	return c.gripper.Target
}

// GripperPhase derives the gripper's phase from its current and target aperture.
func (c *Controller) GripperPhase() GripperPhase {
	g := c.gripper
	switch {
	case g.Aperture == g.Target && g.Target > g.Limits.Mid():
		return GripperOpen
	case g.Aperture == g.Target:
		return GripperClosed
	case g.Target > g.Aperture:
		return GripperOpening
	default:
		return GripperClosing
	}
}

// SpeedMultiplier returns the current speed multiplier.
func (c *Controller) SpeedMultiplier() float64 {
	return c.speed
}

// SetSpeedMultiplier clamps v to the configured speed range and applies it to
// joints and gripper alike.
func (c *Controller) SetSpeedMultiplier(v float64) float64 {
	if math.IsNaN(v) {
		return c.speed
	}
	c.speed = c.cfg.SpeedRange.Clamp(v)
	c.report("Speed multiplier = %.2fx", c.speed)
	return c.speed
}

// AdjustSpeed changes the speed multiplier by steps of the configured speed step.
func (c *Controller) AdjustSpeed(steps int) float64 {
	return c.SetSpeedMultiplier(c.speed + float64(steps)*c.cfg.SpeedStep)
}

// Tick advances joints and gripper one step toward their targets. dtScale
// scales the step, 1 being one nominal frame; non-positive values are ignored.
func (c *Controller) Tick(dtScale float64) {
	if !(dtScale > 0) {
		return
	}
	jk := math.Min(1, c.cfg.JointSmoothing*c.speed*dtScale)
	for j := range c.joints {
		js := &c.joints[j]
		js.Angle = converge(js.Angle, js.Target, jk, c.cfg.JointEpsilon)
	}
	gk := math.Min(1, c.cfg.GripperSmoothing*c.speed*dtScale)
	c.gripper.Aperture = converge(c.gripper.Aperture, c.gripper.Target, gk, c.cfg.GripperEpsilon)
}

func converge(value, target, k, epsilon float64) float64 {
	diff := target - value
	if math.Abs(diff) < epsilon {
		return target
	}
	return value + diff*k
}

// IsAtTarget reports whether every joint is strictly within tolerance
// degrees of its target.
func (c *Controller) IsAtTarget(tolerance float64) bool {
	for j := range c.joints {
		if !(math.Abs(c.joints[j].Angle-c.joints[j].Target) < tolerance) {
			return false
		}
	}
	return true
}

// GripperAtTarget reports whether the aperture is strictly within tolerance of its target.
func (c *Controller) GripperAtTarget(tolerance float64) bool {
	return math.Abs(c.gripper.Aperture-c.gripper.Target) < tolerance
}
