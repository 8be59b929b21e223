package robot

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// MotorCalibration holds calibration data for a single motor, in the
// lerobot calibration file format.
type MotorCalibration struct {
	ID           int `json:"id" yaml:"id"`
	DriveMode    int `json:"drive_mode" yaml:"drive_mode"`
	HomingOffset int `json:"homing_offset" yaml:"homing_offset"`
	RangeMin     int `json:"range_min" yaml:"range_min"`
	RangeMax     int `json:"range_max" yaml:"range_max"`
}

// Calibration holds calibration data for all motors, keyed by motor name.
type Calibration map[MotorName]MotorCalibration

// LoadCalibration loads calibration data from a lerobot JSON file.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read calibration file")
	}

	var raw map[string]MotorCalibration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse calibration JSON")
	}

	cal := make(Calibration, len(raw))
	for name, mc := range raw {
		cal[MotorName(name)] = mc
	}
	return cal, nil
}

// Save writes the calibration as lerobot JSON.
func (c Calibration) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode calibration")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "write calibration file")
}

// Missing returns the motors in names that have no calibration.
func (c Calibration) Missing(names ...MotorName) []MotorName {
	var out []MotorName
	for _, n := range names {
		if _, ok := c[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// Normalize converts a raw servo position to a normalized value in the range [-100, 100].
func (c MotorCalibration) Normalize(raw int) float64 {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	if rangeSize == 0 {
		return 0
	}
	return (float64(raw-c.RangeMin)/rangeSize)*200 - 100
}

// Denormalize converts a normalized value to a raw servo position. Values
// outside [-100, 100] are clamped so the servo never leaves its calibrated range.
func (c MotorCalibration) Denormalize(norm float64) int {
	if norm < -100 {
		norm = -100
	}
	if norm > 100 {
		norm = 100
	}
	rangeSize := float64(c.RangeMax - c.RangeMin)
	return int((norm+100)/200*rangeSize) + c.RangeMin
}

// IDsFor returns the servo IDs of the calibrated motors among names, in order.
func (c Calibration) IDsFor(names ...MotorName) []int {
	ids := make([]int, 0, len(names))
	for _, name := range names {
		if mc, ok := c[name]; ok {
			ids = append(ids, mc.ID)
		}
	}
	return ids
}

// ByID returns motor name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (MotorName, MotorCalibration, bool) {
	for name, mc := range c {
		if mc.ID == id {
			return name, mc, true
		}
	}
	return "", MotorCalibration{}, false
}
