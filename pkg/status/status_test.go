package status

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMulti(t *testing.T) {
	var a, b Recorder
	s := Multi(&a, nil, &b)
	s.Report("hello")
	Reportf(s, "step %d/%d", 1, 6)

	assert.Equal(t, []string{"hello", "step 1/6"}, a.Lines())
	assert.Equal(t, []string{"hello", "step 1/6"}, b.Lines())
}

func TestReportfNilSink(t *testing.T) {
	assert.NotPanics(t, func() { Reportf(nil, "x") })
}

func TestChannel_DropsWhenFull(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 1, 1, 9, 30, 5, 0, time.Local))
	c := NewChannel(2, clk)

	c.Report("one")
	c.Report("two")
	c.Report("three")

	require.Len(t, c.Lines(), 2)
	assert.Equal(t, "[09:30:05] one", <-c.Lines())
	assert.Equal(t, "[09:30:05] two", <-c.Lines())
}

func TestChannel_StampsWithClock(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 1, 1, 23, 59, 58, 0, time.Local))
	c := NewChannel(4, clk)

	c.Report("before")
	clk.Add(3 * time.Second)
	c.Report("after")

	assert.Equal(t, "[23:59:58] before", <-c.Lines())
	assert.Equal(t, "[00:00:01] after", <-c.Lines())
}

func TestChannel_NilClockUsesWallClock(t *testing.T) {
	c := NewChannel(1, nil)
	c.Report("now")
	assert.Regexp(t, `^\[\d{2}:\d{2}:\d{2}\] now$`, <-c.Lines())
}

func TestRecorder(t *testing.T) {
	var r Recorder
	assert.Equal(t, "", r.Last())
	r.Report("a")
	r.Report("b")
	assert.Equal(t, "b", r.Last())
	r.Reset()
	assert.Empty(t, r.Lines())
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	NewLogSink(zap.New(core)).Report("Gripper opening")

	entries := logs.FilterMessage("Gripper opening").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "status", entries[0].ContextMap()["source"])
}
