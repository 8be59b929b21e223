package automation

import (
	"fmt"

	"github.com/gwillem/armsim/pkg/kinematics"
)

// StepKind tags a routine step.
type StepKind int

const (
	StepMove StepKind = iota
	StepGrasp
	StepRelease
	StepLift
)

var stepKindNames = map[StepKind]string{
	StepMove:    "move",
	StepGrasp:   "grasp",
	StepRelease: "release",
	StepLift:    "lift",
}

func (k StepKind) String() string {
	if s, ok := stepKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("step(%d)", int(k))
}

// ParseStepKind maps a configuration name onto a StepKind.
func ParseStepKind(s string) (StepKind, error) {
	for k, name := range stepKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown step type %q", s)
}

// Step is one entry of a routine. Target is used by move steps and Delta,
// in degrees added to the lower arm target, by lift steps.
type Step struct {
	Kind        StepKind
	Target      kinematics.Angles
	Delta       float64
	Description string
}

// Move returns a step that drives all joints to target.
func Move(target kinematics.Angles, desc string) Step {
	return Step{Kind: StepMove, Target: target, Description: desc}
}

// Grasp returns a step that closes the gripper and takes the object.
func Grasp(desc string) Step {
	return Step{Kind: StepGrasp, Description: desc}
}

// Release returns a step that opens the gripper and lets go of the object.
func Release(desc string) Step {
	return Step{Kind: StepRelease, Description: desc}
}

// Lift returns a step that raises or lowers the lower arm by delta degrees.
func Lift(delta float64, desc string) Step {
	return Step{Kind: StepLift, Delta: delta, Description: desc}
}

// Routine is an immutable, ordered list of steps.
type Routine struct {
	name  string
	steps []Step
}

// NewRoutine creates a routine from a copy of steps.
func NewRoutine(name string, steps ...Step) Routine {
	return Routine{name: name, steps: append([]Step(nil), steps...)}
}

// Name returns the routine's name.
func (r Routine) Name() string { return r.name }

// Len returns the number of steps.
func (r Routine) Len() int { return len(r.steps) }

// Step returns step i.
func (r Routine) Step(i int) Step { return r.steps[i] }

// Steps returns a copy of all steps.
func (r Routine) Steps() []Step { return append([]Step(nil), r.steps...) }

// Pick-and-place waypoints.
var (
	PickPose  = kinematics.Angles{0, 75, -30}
	LiftPose  = kinematics.Angles{0, 45, 0}
	PlacePose = kinematics.Angles{180, 75, -30}
	HomePose  = kinematics.Angles{0, 35, 45}
)

// DefaultRoutine picks the object up in front of the arm and puts it down
// behind it.
func DefaultRoutine() Routine {
	return NewRoutine("pick-and-place",
		Move(PickPose, "Moving to pick position"),
		Grasp("Grasping object"),
		Move(LiftPose, "Lifting object"),
		Move(PlacePose, "Moving to place position"),
		Release("Releasing object"),
		Move(HomePose, "Returning to home"),
	)
}
