package main

import (
	"fmt"

	"github.com/gwillem/armsim/pkg/robot"
)

type InitCommand struct {
	Force bool `short:"f" long:"force" description:"Overwrite an existing configuration file"`
}

func (c *InitCommand) Execute(args []string) error {
	if robot.ConfigExists(configPath()) && !c.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath())
	}

	if err := robot.DefaultConfig().SaveTo(configPath()); err != nil {
		return err
	}
	fmt.Printf("Default configuration written to %s\n", configPath())
	return nil
}
