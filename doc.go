// Package armsim simulates a three-joint robot arm with a gripper that can
// pick up and place an object on its own.
//
// # Installation
//
//	go install github.com/gwillem/armsim/cmd/armsim@latest
//
// # Usage
//
// Write a configuration file and start the terminal UI:
//
//	armsim init
//	armsim run
//
// Run the pick-and-place routine without a UI, for example to feed MQTT:
//
//	armsim auto --loops 3
//
// Optionally mirror the simulation on a real SO-101 follower arm:
//
//	armsim detect
//
// # Packages
//
//   - cmd/armsim: CLI with init, run, auto, detect and info commands
//   - pkg/kinematics: forward kinematics of the joint chain
//   - pkg/motion: joint and gripper smoothing controller
//   - pkg/grasp: proximity based attach and release of the object
//   - pkg/automation: routines and the sequencer that runs them
//   - pkg/playback: pose recording and looped playback
//   - pkg/sim: tick loop and command surface over all of the above
//   - pkg/robot: configuration file, calibration and the mirror arm
//   - pkg/status, pkg/logging, pkg/telemetry: status lines, zap and MQTT
package armsim
