package motion

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/armsim/pkg/kinematics"
	"github.com/gwillem/armsim/pkg/status"
)

func newTestController(t *testing.T) (*Controller, *status.Recorder) {
	t.Helper()
	rec := &status.Recorder{}
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	return NewController(cfg, rec), rec
}

func TestNewController_InitialPose(t *testing.T) {
	c, _ := newTestController(t)
	assert.Equal(t, kinematics.Angles{75, 35, 90}, c.Angles())
	assert.Equal(t, c.Angles(), c.Targets())
	assert.Equal(t, 0.55, c.GripperAperture())
	assert.Equal(t, 1.0, c.SpeedMultiplier())
	assert.True(t, c.IsAtTarget(1.0))
}

func TestSetJointTarget_Clamps(t *testing.T) {
	c, rec := newTestController(t)

	tests := []struct {
		joint kinematics.Joint
		in    float64
		want  float64
	}{
		{kinematics.Base, 1000, 180},
		{kinematics.Base, -1000, -180},
		{kinematics.LowerArm, 151, 150},
		{kinematics.UpperArm, -200, -150},
		{kinematics.UpperArm, 12.5, 12.5},
	}

	for _, tt := range tests {
		got := c.SetJointTarget(tt.joint, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.want, c.JointTarget(tt.joint))
		assert.True(t, strings.HasPrefix(rec.Last(), tt.joint.String()+" target = "), rec.Last())
	}
}

func TestSetJointTarget_InvalidInput(t *testing.T) {
	c, _ := newTestController(t)
	before := c.Targets()

	c.SetJointTarget(kinematics.Joint(9), 10)
	c.SetJointTarget(kinematics.Base, math.NaN())

	assert.Equal(t, before, c.Targets())
}

func TestSetGripperTarget_Clamps(t *testing.T) {
	c, rec := newTestController(t)

	assert.Equal(t, 0.75, c.SetGripperTarget(2))
	assert.Equal(t, 0.15, c.SetGripperTarget(-1))
	assert.Equal(t, 0.4, c.SetGripperTarget(0.4))
	assert.Contains(t, rec.Last(), "Grip target = 0.40")

	assert.InDelta(t, 0.45, c.SetGripperPercent(50), 1e-12)
	assert.Equal(t, 0.75, c.SetGripperPercent(250))
}

func TestTick_NeverLeavesLimits(t *testing.T) {
	c, _ := newTestController(t)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		j := kinematics.Joint(rng.Intn(kinematics.NumJoints))
		c.SetJointTarget(j, rng.Float64()*1000-500)
		c.SetSpeedMultiplier(rng.Float64() * 4)
		for n := rng.Intn(20); n > 0; n-- {
			c.Tick(1)
			for _, jj := range kinematics.AllJoints() {
				s := c.Joint(jj)
				require.True(t, s.Limits.Contains(s.Angle), "%s angle %f outside %+v", jj, s.Angle, s.Limits)
			}
			g := c.Gripper()
			require.True(t, g.Limits.Contains(g.Aperture))
		}
	}
}

func TestTick_Converges(t *testing.T) {
	c, _ := newTestController(t)
	c.SetJointTarget(kinematics.Base, -170)
	c.SetJointTarget(kinematics.LowerArm, 120)
	c.SetJointTarget(kinematics.UpperArm, -90)
	c.CloseGripper()

	for i := 0; i < 500; i++ {
		c.Tick(1)
	}

	assert.True(t, c.IsAtTarget(1.0))
	// The snap epsilon guarantees exact arrival in finite ticks.
	assert.Equal(t, c.Targets(), c.Angles())
	assert.Equal(t, c.GripperTarget(), c.GripperAperture())
	assert.Equal(t, GripperClosed, c.GripperPhase())
}

func TestTick_ExponentialStep(t *testing.T) {
	c, _ := newTestController(t)
	c.SetInitialPose(kinematics.Angles{0, 0, 0}, 0.55)
	c.SetJointTarget(kinematics.Base, 100)

	c.Tick(1)
	assert.InDelta(t, 15, c.Angles()[kinematics.Base], 1e-9)

	c.SetSpeedMultiplier(2)
	c.Tick(1)
	assert.InDelta(t, 15+85*0.3, c.Angles()[kinematics.Base], 1e-9)
}

func TestTick_SnapsBelowEpsilon(t *testing.T) {
	c, _ := newTestController(t)
	c.SetInitialPose(kinematics.Angles{10, 0, 0}, 0.55)
	c.SetJointTarget(kinematics.Base, 10.04)
	c.SetGripperTarget(0.554)

	c.Tick(1)

	assert.Equal(t, 10.04, c.Angles()[kinematics.Base])
	assert.Equal(t, 0.554, c.GripperAperture())
}

func TestTick_IgnoresNonPositiveScale(t *testing.T) {
	c, _ := newTestController(t)
	c.SetJointTarget(kinematics.Base, 0)
	before := c.Angles()

	c.Tick(0)
	c.Tick(-1)
	c.Tick(math.NaN())

	assert.Equal(t, before, c.Angles())
}

func TestIsAtTarget_StrictBoundary(t *testing.T) {
	c, _ := newTestController(t)
	c.SetInitialPose(kinematics.Angles{0, 0, 0}, 0.55)

	c.SetJointTarget(kinematics.UpperArm, 1.0)
	assert.False(t, c.IsAtTarget(1.0), "delta equal to tolerance is not at target")
	assert.True(t, c.IsAtTarget(1.0001))

	c.SetJointTarget(kinematics.UpperArm, 0.5)
	assert.True(t, c.IsAtTarget(1.0))
	c.SetJointTarget(kinematics.Base, -3)
	assert.False(t, c.IsAtTarget(1.0))
}

func TestSpeedMultiplier(t *testing.T) {
	c, rec := newTestController(t)

	assert.Equal(t, 3.0, c.SetSpeedMultiplier(10))
	assert.Equal(t, 0.25, c.SetSpeedMultiplier(0))
	assert.Equal(t, "Speed multiplier = 0.25x", strings.SplitN(rec.Last(), " |", 2)[0])

	c.SetSpeedMultiplier(1)
	assert.Equal(t, 1.5, c.AdjustSpeed(2))
	assert.Equal(t, 1.25, c.AdjustSpeed(-1))
}

func TestNudgeJoint(t *testing.T) {
	c, _ := newTestController(t)
	c.SetInitialPose(kinematics.Angles{0, 0, 0}, 0.55)

	assert.Equal(t, 5.0, c.NudgeJoint(kinematics.LowerArm, 10))
	assert.Equal(t, 4.5, c.NudgeJoint(kinematics.LowerArm, -1))
	assert.InDelta(t, 0.63, c.NudgeGripper(0.08), 1e-12)
}

func TestGripperPhase(t *testing.T) {
	c, _ := newTestController(t)

	tests := []struct {
		name     string
		aperture float64
		target   float64
		want     GripperPhase
	}{
		{"resting wide", 0.55, 0.55, GripperOpen},
		{"resting narrow", 0.3, 0.3, GripperClosed},
		{"closing", 0.55, 0.15, GripperClosing},
		{"opening", 0.2, 0.75, GripperOpening},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.SetInitialPose(c.Angles(), tt.aperture)
			c.SetGripperTarget(tt.target)
			assert.Equal(t, tt.want, c.GripperPhase())
		})
	}
}

func TestToggleGripper(t *testing.T) {
	c, _ := newTestController(t)

	c.ToggleGripper()
	assert.Equal(t, 0.15, c.GripperTarget())
	assert.Equal(t, GripperClosing, c.GripperPhase())

	c.SetInitialPose(c.Angles(), 0.15)
	c.ToggleGripper()
	assert.Equal(t, 0.75, c.GripperTarget())
	assert.Equal(t, GripperOpening, c.GripperPhase())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JointLimits.LowerArm = Limits{Min: 10, Max: -10}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.SpeedRange = Limits{Min: 0, Max: 3}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.JointEpsilon = 0
	assert.Error(t, cfg.Validate())
}
