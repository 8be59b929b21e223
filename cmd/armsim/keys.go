package main

import (
	"strings"

	"github.com/gwillem/armsim/pkg/kinematics"
	"github.com/gwillem/armsim/pkg/sim"
)

// Nudge sizes per key press. Shifted keys use the precision sizes.
const (
	jointStep          = 10.0
	jointStepPrecision = 1.0
	gripStep           = 0.08
	gripStepPrecision  = 0.02
)

type binding struct {
	keys   []string
	help   string
	action func(s *sim.Simulator)
	// record bindings are refused unless record mode is on.
	record bool
}

func nudge(j kinematics.Joint, delta float64) func(*sim.Simulator) {
	return func(s *sim.Simulator) { s.NudgeJoint(j, delta) }
}

func grip(delta float64) func(*sim.Simulator) {
	return func(s *sim.Simulator) { s.NudgeGripper(delta) }
}

var bindings = []binding{
	{[]string{"a"}, "base +", nudge(kinematics.Base, jointStep)},
	{[]string{"A"}, "", nudge(kinematics.Base, jointStepPrecision)},
	{[]string{"d"}, "base -", nudge(kinematics.Base, -jointStep)},
	{[]string{"D"}, "", nudge(kinematics.Base, -jointStepPrecision)},
	{[]string{"s"}, "lower +", nudge(kinematics.LowerArm, jointStep)},
	{[]string{"S"}, "", nudge(kinematics.LowerArm, jointStepPrecision)},
	{[]string{"w"}, "lower -", nudge(kinematics.LowerArm, -jointStep)},
	{[]string{"W"}, "", nudge(kinematics.LowerArm, -jointStepPrecision)},
	{[]string{"f"}, "upper +", nudge(kinematics.UpperArm, jointStep)},
	{[]string{"F"}, "", nudge(kinematics.UpperArm, jointStepPrecision)},
	{[]string{"r"}, "upper -", nudge(kinematics.UpperArm, -jointStep)},
	{[]string{"R"}, "", nudge(kinematics.UpperArm, -jointStepPrecision)},
	{[]string{"o"}, "grip open", grip(gripStep)},
	{[]string{"O"}, "", grip(gripStepPrecision)},
	{[]string{"p"}, "grip close", grip(-gripStep)},
	{[]string{"P"}, "", grip(-gripStepPrecision)},
	{[]string{"t"}, "toggle grip", (*sim.Simulator).ToggleGripper},
	{keys: []string{"x", " ", "space"}, help: "save pose", action: func(s *sim.Simulator) { s.RecordPose() }, record: true},
	{[]string{"c"}, "clear poses", (*sim.Simulator).ClearPoses},
	{[]string{"v"}, "playback", func(s *sim.Simulator) { s.TogglePlayback() }},
	{[]string{"+", "="}, "faster", func(s *sim.Simulator) { s.AdjustSpeed(1) }},
	{[]string{"-", "_"}, "slower", func(s *sim.Simulator) { s.AdjustSpeed(-1) }},
	{[]string{"1"}, "start", func(s *sim.Simulator) { s.StartAutomation() }},
	{[]string{"2"}, "stop", (*sim.Simulator).StopAutomation},
	{[]string{"3"}, "home", (*sim.Simulator).ResetToHome},
	{[]string{"4"}, "open", (*sim.Simulator).OpenGripper},
	{[]string{"5"}, "close", (*sim.Simulator).CloseGripper},
	{[]string{"6"}, "pick/drop", (*sim.Simulator).ToggleObject},
}

// keyActions indexes bindings by key.
func keyActions() map[string]binding {
	out := make(map[string]binding)
	for _, b := range bindings {
		for _, k := range b.keys {
			out[k] = b
		}
	}
	return out
}

// helpLine lists the documented bindings. Precision variants are implied by shift.
func helpLine() string {
	items := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if b.help == "" {
			continue
		}
		items = append(items, b.keys[0]+" "+b.help)
	}
	items = append(items, "g record mode", "shift precision", "q quit")
	return strings.Join(items, " · ")
}
