// Package kinematics maps joint angles of the three-joint arm to world space.
package kinematics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// Joint identifies one rotational degree of freedom in the serial chain.
type Joint int

// Joints of the arm, ordered from the base outwards.
const (
	Base Joint = iota
	LowerArm
	UpperArm
)

// NumJoints is the number of joints in the chain.
const NumJoints = 3

// AllJoints returns all joints in chain order.
func AllJoints() []Joint {
	return []Joint{Base, LowerArm, UpperArm}
}

// String returns the joint name used in status lines and config keys.
func (j Joint) String() string {
	switch j {
	case Base:
		return "base"
	case LowerArm:
		return "lower_arm"
	case UpperArm:
		return "upper_arm"
	default:
		return fmt.Sprintf("joint(%d)", int(j))
	}
}

// Valid reports whether j is one of the chain's joints.
func (j Joint) Valid() bool {
	return j >= Base && j <= UpperArm
}

// Angles holds one angle in degrees per joint, indexed by Joint.
type Angles [NumJoints]float64

// Link dimensions in world units.
const (
	BaseHeight     = 2.0
	LowerArmLength = 5.0
	UpperArmLength = 5.0

	// GripperMountYaw turns the gripper to face forward at the end of the upper arm.
	GripperMountYaw = -90.0
	// JawOffset is the distance from the gripper mount to the center of the jaws.
	JawOffset = 0.2
)

// ChainTransform composes the homogeneous transform from world space to the
// center of the gripper jaws.
func ChainTransform(a Angles) mgl64.Mat4 {
	m := mgl64.Ident4()
	m = m.Mul4(mgl64.HomogRotate3DY(mgl64.DegToRad(a[Base])))
	m = m.Mul4(mgl64.Translate3D(0, BaseHeight, 0))
	m = m.Mul4(mgl64.HomogRotate3DZ(mgl64.DegToRad(a[LowerArm])))
	m = m.Mul4(mgl64.Translate3D(0, LowerArmLength, 0))
	m = m.Mul4(mgl64.HomogRotate3DZ(mgl64.DegToRad(a[UpperArm])))
	m = m.Mul4(mgl64.Translate3D(0, UpperArmLength, 0))
	m = m.Mul4(mgl64.HomogRotate3DY(mgl64.DegToRad(GripperMountYaw)))
	m = m.Mul4(mgl64.Translate3D(0, JawOffset, 0))
	return m
}

// EndEffectorPosition returns the world-space attachment point of the gripper.
func EndEffectorPosition(a Angles) r3.Vector {
	t := ChainTransform(a).Col(3)
	return r3.Vector{X: t[0], Y: t[1], Z: t[2]}
}

// Reach is the distance from the shoulder pivot to the jaw center with the arm fully extended.
func Reach() float64 {
	return LowerArmLength + UpperArmLength + JawOffset
}
