package kinematics

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

const posTolerance = 1e-9

func assertNear(t *testing.T, want, got r3.Vector) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, posTolerance, "x")
	assert.InDelta(t, want.Y, got.Y, posTolerance, "y")
	assert.InDelta(t, want.Z, got.Z, posTolerance, "z")
}

func TestEndEffectorPosition(t *testing.T) {
	top := BaseHeight + Reach()

	tests := []struct {
		name   string
		angles Angles
		want   r3.Vector
	}{
		{"straight up", Angles{0, 0, 0}, r3.Vector{Y: top}},
		{"base yaw does not move a vertical arm", Angles{135, 0, 0}, r3.Vector{Y: top}},
		{"lower arm horizontal", Angles{0, 90, 0}, r3.Vector{X: -Reach(), Y: BaseHeight}},
		{"lower arm horizontal, base quarter turn", Angles{90, 90, 0}, r3.Vector{Y: BaseHeight, Z: Reach()}},
		{"elbow bent back down", Angles{0, 90, 90}, r3.Vector{X: -LowerArmLength, Y: BaseHeight - UpperArmLength - JawOffset}},
		{"negative lower arm", Angles{0, -90, 0}, r3.Vector{X: Reach(), Y: BaseHeight}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertNear(t, tt.want, EndEffectorPosition(tt.angles))
		})
	}
}

func TestEndEffectorPosition_PickPose(t *testing.T) {
	a := Angles{0, 75, -30}
	lower := 75 * math.Pi / 180
	upper := 45 * math.Pi / 180
	want := r3.Vector{
		X: -LowerArmLength*math.Sin(lower) - (UpperArmLength+JawOffset)*math.Sin(upper),
		Y: BaseHeight + LowerArmLength*math.Cos(lower) + (UpperArmLength+JawOffset)*math.Cos(upper),
	}
	assertNear(t, want, EndEffectorPosition(a))
}

func TestEndEffectorPosition_Stateless(t *testing.T) {
	a := Angles{12, -40, 77}
	first := EndEffectorPosition(a)
	EndEffectorPosition(Angles{90, 90, 90})
	assert.Equal(t, first, EndEffectorPosition(a))
}

func TestEndEffectorPosition_DistanceFromShoulder(t *testing.T) {
	shoulder := r3.Vector{Y: BaseHeight}
	for _, a := range []Angles{{0, 0, 0}, {33, 61, 0}, {-120, -15, 0}} {
		assert.InDelta(t, Reach(), EndEffectorPosition(a).Distance(shoulder), posTolerance)
	}
}

func TestJointString(t *testing.T) {
	assert.Equal(t, "base", Base.String())
	assert.Equal(t, "lower_arm", LowerArm.String())
	assert.Equal(t, "upper_arm", UpperArm.String())
	assert.Equal(t, "joint(7)", Joint(7).String())
	assert.False(t, Joint(-1).Valid())
	assert.Len(t, AllJoints(), NumJoints)
}
