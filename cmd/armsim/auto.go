package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type AutoCommand struct {
	Loops   int           `long:"loops" default:"1" description:"Number of routine runs (0 runs until interrupted)"`
	Timeout time.Duration `long:"timeout" default:"5m" description:"Give up after this long (0 disables)"`
}

func (c *AutoCommand) Execute(args []string) error {
	a, err := newApp(nil, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErr := make(chan error, 1)
	go func() { runErr <- a.sim.Run(runCtx) }()

	if !a.sim.StartAutomation() {
		return fmt.Errorf("automation did not start")
	}

	runs := 0
	for {
		select {
		case <-ctx.Done():
			cancelRun()
			<-runErr
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("routine not finished after %v", c.Timeout)
			}
			a.logger.Info("interrupted", zap.Int("runs", runs))
			return nil

		case err := <-runErr:
			return err

		case st := <-a.sim.States():
			// States may lag a start, so ask the live status.
			if a.sim.Status().Active {
				continue
			}
			runs++
			a.logger.Info("routine finished",
				zap.Int("run", runs),
				zap.Float64s("object", []float64{st.Object.X, st.Object.Y, st.Object.Z}))
			if c.Loops > 0 && runs >= c.Loops {
				cancelRun()
				<-runErr
				return nil
			}
			a.sim.StartAutomation()
		}
	}
}
