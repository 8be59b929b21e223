// Package robot connects the simulation to its configuration file and to a
// real SO-101 follower arm that mirrors the simulated pose.
package robot

import "github.com/gwillem/armsim/pkg/kinematics"

// MotorName identifies a motor in the arm.
type MotorName string

// Motor names for the SO-101 arm.
const (
	ShoulderPan  MotorName = "shoulder_pan"
	ShoulderLift MotorName = "shoulder_lift"
	ElbowFlex    MotorName = "elbow_flex"
	WristFlex    MotorName = "wrist_flex"
	WristRoll    MotorName = "wrist_roll"
	Gripper      MotorName = "gripper"
)

// AllMotors returns all motor names in order (matching servo IDs 1-6).
func AllMotors() []MotorName {
	return []MotorName{
		ShoulderPan,
		ShoulderLift,
		ElbowFlex,
		WristFlex,
		WristRoll,
		Gripper,
	}
}

// JointMotor returns the SO-101 motor that plays the role of a simulated joint.
func JointMotor(j kinematics.Joint) MotorName {
	switch j {
	case kinematics.LowerArm:
		return ShoulderLift
	case kinematics.UpperArm:
		return ElbowFlex
	default:
		return ShoulderPan
	}
}

// MirroredMotors returns the motors driven by the simulation: one per joint
// plus the gripper. The wrist motors are left alone.
func MirroredMotors() []MotorName {
	out := make([]MotorName, 0, kinematics.NumJoints+1)
	for _, j := range kinematics.AllJoints() {
		out = append(out, JointMotor(j))
	}
	return append(out, Gripper)
}
