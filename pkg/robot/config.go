package robot

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/gwillem/armsim/pkg/automation"
	"github.com/gwillem/armsim/pkg/grasp"
	"github.com/gwillem/armsim/pkg/kinematics"
	"github.com/gwillem/armsim/pkg/logging"
	"github.com/gwillem/armsim/pkg/motion"
	"github.com/gwillem/armsim/pkg/playback"
	"github.com/gwillem/armsim/pkg/sim"
	"github.com/gwillem/armsim/pkg/telemetry"
)

// DefaultConfigFile is used when no config path is given.
const DefaultConfigFile = "armsim.yaml"

// Environment variables that override the I/O settings of the config file.
const (
	EnvLogLevel   = "ARMSIM_LOG_LEVEL"
	EnvMirrorPort = "ARMSIM_MIRROR_PORT"
	EnvMQTTBroker = "ARMSIM_MQTT_BROKER"
)

// Config holds the whole armsim configuration.
type Config struct {
	Motion      motion.Config     `yaml:"motion"`
	Grasp       grasp.Config      `yaml:"grasp"`
	Automation  automation.Config `yaml:"automation"`
	RoutineName string            `yaml:"routine_name"`
	Routine     []StepConfig      `yaml:"routine"`
	Playback    playback.Config   `yaml:"playback"`
	Loop        LoopConfig        `yaml:"loop"`
	Logging     logging.Config    `yaml:"logging"`
	Mirror      MirrorConfig      `yaml:"mirror"`
	MQTT        telemetry.Config  `yaml:"mqtt"`
}

// StepConfig is one routine step as written in the config file.
type StepConfig struct {
	Type        string  `yaml:"type"`
	Base        float64 `yaml:"base,omitempty"`
	Lower       float64 `yaml:"lower,omitempty"`
	Upper       float64 `yaml:"upper,omitempty"`
	Delta       float64 `yaml:"delta,omitempty"`
	Description string  `yaml:"description"`
}

// LoopConfig holds the tick loop settings.
type LoopConfig struct {
	Hz int `yaml:"hz"`
}

// MirrorConfig holds the optional follower arm that mirrors the simulation.
type MirrorConfig struct {
	Port            string      `yaml:"port"`
	CalibrationFile string      `yaml:"calibration_file,omitempty"`
	Calibration     Calibration `yaml:"calibration,omitempty"`
}

// Enabled reports whether a mirror port is configured.
func (m *MirrorConfig) Enabled() bool {
	return m.Port != ""
}

// IsCalibrated returns true if the mirror has calibration data inline or on disk.
func (m *MirrorConfig) IsCalibrated() bool {
	return len(m.Calibration) > 0 || m.CalibrationFile != ""
}

// LoadCalibration returns the inline calibration, or reads CalibrationFile.
func (m *MirrorConfig) LoadCalibration() (Calibration, error) {
	if len(m.Calibration) > 0 {
		return m.Calibration, nil
	}
	if m.CalibrationFile == "" {
		return nil, errors.New("mirror has no calibration")
	}
	return LoadCalibration(m.CalibrationFile)
}

// StepsFromRoutine converts a routine into its config form.
func StepsFromRoutine(r automation.Routine) []StepConfig {
	steps := make([]StepConfig, 0, r.Len())
	for _, st := range r.Steps() {
		sc := StepConfig{Type: st.Kind.String(), Description: st.Description}
		switch st.Kind {
		case automation.StepMove:
			sc.Base = st.Target[kinematics.Base]
			sc.Lower = st.Target[kinematics.LowerArm]
			sc.Upper = st.Target[kinematics.UpperArm]
		case automation.StepLift:
			sc.Delta = st.Delta
		}
		steps = append(steps, sc)
	}
	return steps
}

// BuildRoutine parses the configured steps.
func (c *Config) BuildRoutine() (automation.Routine, error) {
	steps := make([]automation.Step, 0, len(c.Routine))
	for i, sc := range c.Routine {
		kind, err := automation.ParseStepKind(strings.ToLower(sc.Type))
		if err != nil {
			return automation.Routine{}, errors.Wrapf(err, "routine step %d", i+1)
		}
		switch kind {
		case automation.StepMove:
			steps = append(steps, automation.Move(kinematics.Angles{sc.Base, sc.Lower, sc.Upper}, sc.Description))
		case automation.StepLift:
			steps = append(steps, automation.Lift(sc.Delta, sc.Description))
		case automation.StepGrasp:
			steps = append(steps, automation.Grasp(sc.Description))
		case automation.StepRelease:
			steps = append(steps, automation.Release(sc.Description))
		}
	}
	return automation.NewRoutine(c.RoutineName, steps...), nil
}

// SimConfig returns the simulation configuration.
func (c *Config) SimConfig() (sim.Config, error) {
	routine, err := c.BuildRoutine()
	if err != nil {
		return sim.Config{}, err
	}
	return sim.Config{
		Motion:     c.Motion,
		Grasp:      c.Grasp,
		Automation: c.Automation,
		Playback:   c.Playback,
		Routine:    routine,
		Hz:         c.Loop.Hz,
	}, nil
}

// DefaultConfig returns the canonical configuration with the pick-and-place routine.
func DefaultConfig() *Config {
	r := automation.DefaultRoutine()
	return &Config{
		Motion:      motion.DefaultConfig(),
		Grasp:       grasp.DefaultConfig(),
		Automation:  automation.DefaultConfig(),
		RoutineName: r.Name(),
		Routine:     StepsFromRoutine(r),
		Playback:    playback.DefaultConfig(),
		Loop:        LoopConfig{Hz: 60},
		Logging:     logging.DefaultConfig(),
		MQTT:        telemetry.DefaultConfig(),
	}
}

// LoadConfigFrom reads path on top of the defaults, applies environment
// overrides and validates the result.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of the defaults, applies environment
// overrides and validates the result. Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "parse config file")
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return cfg, nil
}

// LoadConfigOrDefault loads path if it exists and returns the defaults,
// with environment overrides, otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if !ConfigExists(path) {
		cfg := DefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, cfg.Validate()
	}
	return LoadConfigFrom(path)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvMirrorPort); v != "" {
		cfg.Mirror.Port = v
	}
	if v := os.Getenv(EnvMQTTBroker); v != "" {
		cfg.MQTT.Broker = v
	}
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string
	check := func(section string, err error) {
		if err != nil {
			errs = append(errs, section+": "+err.Error())
		}
	}

	check("motion", c.Motion.Validate())
	check("grasp", c.Grasp.Validate())
	check("automation", c.Automation.Validate())
	check("playback", c.Playback.Validate())
	check("logging", c.Logging.Validate())
	check("mqtt", c.MQTT.Validate())

	gl := c.Motion.GripperLimits
	if !gl.Contains(c.Grasp.CloseThreshold) || !gl.Contains(c.Grasp.OpenThreshold) {
		errs = append(errs, "grasp: thresholds must lie within the gripper limits")
	}
	if len(c.Routine) == 0 {
		errs = append(errs, "routine: at least one step is required")
	}
	if _, err := c.BuildRoutine(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Loop.Hz <= 0 || c.Loop.Hz > 1000 {
		errs = append(errs, "loop.hz must be between 1 and 1000")
	}

	if len(errs) > 0 {
		return errors.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "write config file")
}

// ConfigExists reports whether a config file exists at path.
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
