package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/armsim/pkg/robot"
)

type InfoCommand struct{}

func (c *InfoCommand) Execute(args []string) error {
	cfg, err := robot.LoadConfigOrDefault(configPath())
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("armsim configuration"))
	fmt.Printf("  Config:   %s\n", configPath())
	fmt.Printf("  Routine:  %s (%d steps)\n", cfg.RoutineName, len(cfg.Routine))
	fmt.Printf("  Loop:     %d Hz\n", cfg.Loop.Hz)
	if cfg.MQTT.Enabled() {
		fmt.Printf("  MQTT:     %s (prefix %s)\n", cfg.MQTT.Broker, cfg.MQTT.TopicPrefix)
	} else {
		fmt.Println("  MQTT:     " + dimStyle.Render("disabled"))
	}

	if !cfg.Mirror.Enabled() {
		fmt.Println("  Mirror:   " + dimStyle.Render("disabled (run 'armsim detect')"))
		return nil
	}
	if !cfg.Mirror.IsCalibrated() {
		fmt.Printf("  Mirror:   %s %s\n", cfg.Mirror.Port, dimStyle.Render("(not calibrated, run 'armsim detect')"))
		return nil
	}
	fmt.Printf("  Mirror:   %s\n\n", cfg.Mirror.Port)

	cal, err := cfg.Mirror.LoadCalibration()
	if err != nil {
		return err
	}
	arm, err := robot.NewArm(cfg.Mirror.Port, cal, cfg.Motion)
	if err != nil {
		return err
	}
	defer arm.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	positions, err := arm.ReadPositions(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(positions))
	for _, name := range robot.MirroredMotors() {
		pos, ok := positions[name]
		value := "-"
		if ok {
			value = fmt.Sprintf("%.1f", pos)
		}
		rows = append(rows, []string{string(name), seriesLabel(name), value})
	}

	fmt.Println(table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Motor", "Drives", "Position").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headStyle
			}
			return cellStyle
		}).
		Render())
	return nil
}
