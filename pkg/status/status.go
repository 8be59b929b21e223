// Package status carries human-readable status lines from the motion core
// to whatever shell surfaces them.
package status

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Sink receives status lines. Report must not block and never fails.
type Sink interface {
	Report(msg string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(msg string)

// Report calls f(msg).
func (f SinkFunc) Report(msg string) { f(msg) }

// Discard drops every status line.
var Discard Sink = SinkFunc(func(string) {})

// Multi fans a status line out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return SinkFunc(func(msg string) {
		for _, s := range out {
			s.Report(msg)
		}
	})
}

// Reportf formats a status line and sends it to s.
func Reportf(s Sink, format string, args ...any) {
	if s == nil {
		return
	}
	s.Report(fmt.Sprintf(format, args...))
}

// NewLogSink writes status lines to logger at info level.
func NewLogSink(logger *zap.Logger) Sink {
	return SinkFunc(func(msg string) {
		logger.Info(msg, zap.String("source", "status"))
	})
}

// Channel buffers timestamped status lines for a consumer goroutine, such
// as a terminal UI. Lines are dropped when the buffer is full.
type Channel struct {
	ch    chan string
	clock clock.Clock
}

// NewChannel creates a Channel with room for size pending lines, stamped
// with clk. A nil clk uses the wall clock.
func NewChannel(size int, clk clock.Clock) *Channel {
	if clk == nil {
		clk = clock.New()
	}
	return &Channel{ch: make(chan string, size), clock: clk}
}

// Report implements Sink.
func (c *Channel) Report(msg string) {
	line := fmt.Sprintf("[%s] %s", c.clock.Now().Format("15:04:05"), msg)
	select {
	case c.ch <- line:
	default:
		// Drop if channel full
	}
}

// Lines returns the channel that receives status lines.
func (c *Channel) Lines() <-chan string {
	return c.ch
}

// Recorder keeps every status line in memory. It is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// Report implements Sink.
func (r *Recorder) Report(msg string) {
	r.mu.Lock()
	r.lines = append(r.lines, msg)
	r.mu.Unlock()
}

// Lines returns a copy of the recorded lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Last returns the most recent line, or "" if none were recorded.
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) == 0 {
		return ""
	}
	return r.lines[len(r.lines)-1]
}

// Reset forgets all recorded lines.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.lines = nil
	r.mu.Unlock()
}
