package main

import (
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/armsim/pkg/kinematics"
	"github.com/gwillem/armsim/pkg/motion"
	"github.com/gwillem/armsim/pkg/robot"
	"github.com/gwillem/armsim/pkg/sim"
	"github.com/gwillem/armsim/pkg/status"
)

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel() (runModel, *sim.Simulator) {
	s := sim.New(sim.DefaultConfig())
	return newRunModel(s, status.NewChannel(10, clock.NewMock()), motion.DefaultConfig()), s
}

func TestKeyActions_EveryBindingIsIndexed(t *testing.T) {
	actions := keyActions()
	for _, b := range bindings {
		for _, k := range b.keys {
			require.Contains(t, actions, k)
			assert.NotNil(t, actions[k].action, "key %q", k)
		}
	}
	assert.NotContains(t, actions, "q", "quit is handled by the model")
}

func TestRunModel_Keys(t *testing.T) {
	tests := []struct {
		name  string
		keys  []string
		check func(t *testing.T, s *sim.Simulator)
	}{
		{
			name: "nudge base",
			keys: []string{"a", "a", "D"},
			check: func(t *testing.T, s *sim.Simulator) {
				assert.InDelta(t, 75+5+5-0.5, s.State().Targets[kinematics.Base], 1e-9)
			},
		},
		{
			name: "arm joints",
			keys: []string{"w", "f"},
			check: func(t *testing.T, s *sim.Simulator) {
				targets := s.State().Targets
				assert.InDelta(t, 30.0, targets[kinematics.LowerArm], 1e-9)
				assert.InDelta(t, 95.0, targets[kinematics.UpperArm], 1e-9)
			},
		},
		{
			name: "gripper",
			keys: []string{"p", "P"},
			check: func(t *testing.T, s *sim.Simulator) {
				assert.InDelta(t, 0.55-0.08-0.02, s.State().ApertureTarget, 1e-9)
			},
		},
		{
			name: "record with space",
			keys: []string{"g", "x", " "},
			check: func(t *testing.T, s *sim.Simulator) {
				assert.Equal(t, 2, s.Status().SavedPoses)
			},
		},
		{
			name: "record refused while record mode is off",
			keys: []string{"x", "g", "x", "g", " "},
			check: func(t *testing.T, s *sim.Simulator) {
				assert.Equal(t, 1, s.Status().SavedPoses)
			},
		},
		{
			name: "speed",
			keys: []string{"+", "+", "-"},
			check: func(t *testing.T, s *sim.Simulator) {
				assert.InDelta(t, 1.25, s.State().Speed, 1e-9)
			},
		},
		{
			name: "start automation",
			keys: []string{"1"},
			check: func(t *testing.T, s *sim.Simulator) {
				assert.True(t, s.Status().Active)
				assert.Equal(t, sim.DriverAutomation, s.Driver())
			},
		},
		{
			name: "start then stop",
			keys: []string{"1", "2"},
			check: func(t *testing.T, s *sim.Simulator) {
				assert.False(t, s.Status().Active)
			},
		},
		{
			name: "unbound key is ignored",
			keys: []string{"z"},
			check: func(t *testing.T, s *sim.Simulator) {
				assert.Equal(t, kinematics.Angles{75, 35, 90}, s.State().Targets)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, s := newTestModel()
			var model tea.Model = m
			for _, k := range tt.keys {
				model, _ = model.Update(key(k))
			}
			tt.check(t, s)
		})
	}
}

// drain returns the status lines queued on the model's channel.
func drain(m runModel) []string {
	var out []string
	for {
		select {
		case l := <-m.lines.Lines():
			out = append(out, l[strings.Index(l, "] ")+2:])
		default:
			return out
		}
	}
}

func TestRunModel_RecordMode(t *testing.T) {
	m, s := newTestModel()
	var model tea.Model = m

	model, _ = model.Update(key("x"))
	assert.Equal(t, []string{"Record Mode is OFF (press G)"}, drain(m))
	assert.Equal(t, 0, s.Status().SavedPoses)
	assert.False(t, model.(runModel).record)

	model, _ = model.Update(key("g"))
	assert.True(t, model.(runModel).record)
	assert.Contains(t, model.View(), "REC")
	model, _ = model.Update(key("x"))
	assert.Equal(t, 1, s.Status().SavedPoses)
	lines := drain(m)
	require.NotEmpty(t, lines)
	assert.Equal(t, "Record Mode: ON", lines[0])
	assert.NotContains(t, lines, "Record Mode is OFF (press G)")

	model, _ = model.Update(key("g"))
	assert.False(t, model.(runModel).record)
	assert.Contains(t, drain(m), "Record Mode: OFF")

	// Other bindings work regardless of record mode.
	model.Update(key("c"))
	assert.Equal(t, 0, s.Status().SavedPoses)
}

func TestRunModel_Quit(t *testing.T) {
	m, _ := newTestModel()
	model, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.True(t, model.(runModel).quitting)
	assert.Equal(t, "Simulation stopped.\n", model.View())
}

func TestRunModel_StateAndLogs(t *testing.T) {
	m, s := newTestModel()

	model, cmd := m.Update(stateMsg(s.Tick(1)))
	assert.NotNil(t, cmd, "keeps waiting for states")
	rm := model.(runModel)
	assert.Len(t, rm.last, len(robot.MirroredMotors()))
	assert.False(t, rm.hasMovement(rm.last))

	for i := 0; i < maxLogs+2; i++ {
		model, _ = model.Update(logMsg("line"))
	}
	assert.Len(t, model.(runModel).logs, maxLogs)

	view := model.View()
	assert.Contains(t, view, "armsim")
	assert.Contains(t, view, "lower_arm")
	assert.Contains(t, view, "automation")
}

func TestSeriesLabel(t *testing.T) {
	assert.Equal(t, "base", seriesLabel(robot.ShoulderPan))
	assert.Equal(t, "upper_arm", seriesLabel(robot.ElbowFlex))
	assert.Equal(t, "gripper", seriesLabel(robot.Gripper))
}

func TestHelpLine(t *testing.T) {
	help := helpLine()
	assert.Contains(t, help, "a base +")
	assert.Contains(t, help, "x save pose")
	assert.Contains(t, help, "g record mode")
	assert.Contains(t, help, "q quit")
	assert.NotContains(t, help, "A ")
}

func TestCalibrationModel(t *testing.T) {
	motors := []robot.MotorName{robot.ShoulderPan, robot.Gripper}
	m := calibrationModel{
		motors:       motors,
		curPositions: map[robot.MotorName]int{robot.ShoulderPan: 2000, robot.Gripper: 2500},
		minPositions: map[robot.MotorName]int{robot.ShoulderPan: 2000, robot.Gripper: 2500},
		maxPositions: map[robot.MotorName]int{robot.ShoulderPan: 2000, robot.Gripper: 2500},
	}

	m.track(robot.ShoulderPan, 900)
	m.track(robot.ShoulderPan, 3100)
	m.track(robot.ShoulderPan, 2200)
	m.track(robot.Gripper, 2600)

	cal := m.calibration()
	assert.Equal(t, robot.MotorCalibration{ID: 1, RangeMin: 900, RangeMax: 3100}, cal[robot.ShoulderPan])
	assert.Equal(t, robot.MotorCalibration{ID: 2, RangeMin: 2500, RangeMax: 2600}, cal[robot.Gripper])
	assert.Equal(t, 2200, m.curPositions[robot.ShoulderPan])
	assert.Contains(t, m.View(), "Press Enter when done")
}
