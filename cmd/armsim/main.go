package main

import (
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/armsim/pkg/robot"
)

type Options struct {
	Config string `short:"c" long:"config" description:"Configuration file (default: armsim.yaml)"`

	Init   InitCommand   `command:"init" description:"Write the default configuration file"`
	Run    RunCommand    `command:"run" description:"Start the simulation with the terminal UI"`
	Auto   AutoCommand   `command:"auto" description:"Run the automation routine headless"`
	Detect DetectCommand `command:"detect" description:"Find an SO-101 arm and calibrate it as mirror"`
	Info   InfoCommand   `command:"info" description:"Show the configuration and the mirror arm's positions"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

// configPath returns the --config flag or the default config file.
func configPath() string {
	if opts.Config == "" {
		return robot.DefaultConfigFile
	}
	return opts.Config
}

func main() {
	parser.LongDescription = "armsim - Simulated 3-joint robot arm with pick-and-place automation"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
