package sim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/armsim/pkg/automation"
	"github.com/gwillem/armsim/pkg/grasp"
	"github.com/gwillem/armsim/pkg/kinematics"
	"github.com/gwillem/armsim/pkg/status"
)

func newSim(t *testing.T, opts ...Option) (*Simulator, *clock.Mock, *status.Recorder) {
	t.Helper()
	clk := clock.NewMock()
	rec := &status.Recorder{}
	opts = append([]Option{WithClock(clk), WithSink(rec)}, opts...)
	return New(DefaultConfig(), opts...), clk, rec
}

// advance ticks the simulation n frames of 1/60 s each.
func advance(s *Simulator, clk *clock.Mock, n int) State {
	var st State
	for i := 0; i < n; i++ {
		clk.Add(time.Second / 60)
		st = s.Tick(1)
	}
	return st
}

func TestNew_InitialState(t *testing.T) {
	s, _, _ := newSim(t)
	st := s.State()

	assert.Equal(t, kinematics.Angles{75, 35, 90}, st.Angles)
	assert.Equal(t, 0.55, st.Aperture)
	assert.Equal(t, 5.0, st.Object.X)
	assert.Equal(t, Status{
		AutomationState: automation.Idle,
		GripperState:    "open",
		TotalSteps:      6,
		Driver:          DriverNone,
	}, st.Status)
}

func TestStatusHasNoSideEffects(t *testing.T) {
	s, _, rec := newSim(t)
	s.SetJointTarget(kinematics.Base, 10)
	before := s.State()
	lines := len(rec.Lines())

	for i := 0; i < 5; i++ {
		s.Status()
	}

	assert.Equal(t, before.Angles, s.State().Angles)
	assert.Len(t, rec.Lines(), lines)
}

func TestAutomationRunsToCompletion(t *testing.T) {
	s, clk, rec := newSim(t)
	require.True(t, s.StartAutomation())
	assert.Equal(t, DriverAutomation, s.Driver())

	var holding bool
	for i := 0; i < 60*60 && s.Status().Active; i++ {
		st := advance(s, clk, 1)
		if st.Status.HoldingObject {
			holding = true
			assert.InDelta(t, 0, st.Object.Distance(st.EndEffector), 1e-3, "held object follows the gripper")
		}
	}

	st := s.State()
	assert.False(t, st.Status.Active)
	assert.True(t, holding, "object was carried")
	assert.False(t, st.Status.HoldingObject)
	assert.Equal(t, DriverNone, st.Status.Driver)
	assert.Equal(t, "=== PICK-AND-PLACE ROUTINE COMPLETED! ===", rec.Last())
	assert.InDelta(t, 0, st.Angles[kinematics.Base], 1.0)
}

func TestDriverExclusion(t *testing.T) {
	s, clk, rec := newSim(t)

	s.RecordPose()
	require.True(t, s.TogglePlayback())
	assert.Equal(t, DriverPlayback, s.Driver())

	assert.False(t, s.StartAutomation())
	assert.Equal(t, "Playback running, stop it before starting automation", rec.Last())
	assert.False(t, s.Status().Active)

	assert.False(t, s.TogglePlayback(), "second toggle stops playback")
	require.True(t, s.StartAutomation())
	advance(s, clk, 3)

	assert.False(t, s.TogglePlayback())
	assert.Equal(t, "Automation running, stop it before starting playback", rec.Last())
	assert.Equal(t, DriverAutomation, s.Driver())

	s.StopAutomation()
	assert.Equal(t, DriverNone, s.Driver())
}

func TestResetToHomeIdempotent(t *testing.T) {
	s, clk, _ := newSim(t)
	s.StartAutomation()
	advance(s, clk, 200)

	s.ResetToHome()
	first := s.State()
	s.ResetToHome()
	second := s.State()

	assert.Equal(t, automation.HomePose, first.Targets)
	assert.Equal(t, first.Targets, second.Targets)
	assert.Equal(t, first.ApertureTarget, second.ApertureTarget)
	assert.False(t, second.Status.HoldingObject)
	assert.Equal(t, grasp.Free, s.Object().Owner)
}

func TestResetToHomeStopsPlayback(t *testing.T) {
	s, _, _ := newSim(t)
	s.RecordPose()
	s.TogglePlayback()

	s.ResetToHome()
	assert.Equal(t, DriverNone, s.Driver())
}

func TestToggleObject(t *testing.T) {
	s, clk, _ := newSim(t)

	s.ToggleObject()
	obj := s.Object()
	assert.Equal(t, grasp.HeldManual, obj.Owner)

	// A manual hold survives the gripper opening.
	s.OpenGripper()
	st := advance(s, clk, 60)
	assert.True(t, st.Status.HoldingObject)
	assert.Equal(t, st.EndEffector, st.Object)

	s.ToggleObject()
	assert.Equal(t, grasp.ReleasedManual, s.Object().Owner)

	// Closing the gripper on the dropped object does not grab it again.
	s.CloseGripper()
	st = advance(s, clk, 60)
	assert.False(t, st.Status.HoldingObject)
}

func TestOperatorCommands(t *testing.T) {
	s, _, rec := newSim(t)

	assert.Equal(t, 180.0, s.SetJointTarget(kinematics.Base, 500))
	assert.Equal(t, 0.75, s.SetGripperTarget(3))
	assert.Equal(t, 0.15, s.SetGripperPercent(0))
	assert.InDelta(t, 0.23, s.NudgeGripper(0.08), 1e-12)
	assert.Equal(t, 36.0, s.NudgeJoint(kinematics.LowerArm, 2))
	assert.Equal(t, 2.0, s.SetSpeedMultiplier(2))
	assert.Equal(t, 2.25, s.AdjustSpeed(1))
	assert.Contains(t, rec.Last(), "Speed multiplier = 2.25x | Base: 75.0° Lower: 35.0° Upper: 90.0°")

	s.ToggleGripper()
	assert.Equal(t, 0.15, s.State().ApertureTarget, "0.55 is above the midpoint so toggling closes")

	s.RecordPose()
	s.ClearPoses()
	assert.Zero(t, s.Status().SavedPoses)
}

type fakeMirror struct {
	mu       sync.Mutex
	enabled  bool
	disabled bool
	writes   int
	err      error
}

func (m *fakeMirror) Enable(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
	return nil
}

func (m *fakeMirror) Disable(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled = true
	return nil
}

func (m *fakeMirror) WriteState(context.Context, kinematics.Angles, float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	return m.err
}

type observerFunc func(State)

func (f observerFunc) Observe(st State) { f(st) }

func TestRun(t *testing.T) {
	mirror := &fakeMirror{err: errors.New("bus timeout")}
	observed := make(chan State, 100)
	s, clk, _ := newSim(t,
		WithMirror(mirror),
		WithObserver(observerFunc(func(st State) {
			select {
			case observed <- st:
			default:
			}
		})))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var st State
	require.Eventually(t, func() bool {
		clk.Add(time.Second / 60)
		select {
		case st = <-s.States():
			return true
		default:
			return false
		}
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, 1.0, st.Speed)

	assert.Error(t, s.Run(ctx), "second Run is rejected")

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	assert.True(t, mirror.enabled)
	assert.True(t, mirror.disabled)
	assert.Positive(t, mirror.writes, "write errors do not stop the loop")
	assert.NotEmpty(t, observed)
}
