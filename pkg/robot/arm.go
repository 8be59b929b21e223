package robot

import (
	"context"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"

	"github.com/gwillem/armsim/pkg/kinematics"
	"github.com/gwillem/armsim/pkg/motion"
)

// BaudRate is the SO-101 bus speed.
const BaudRate = 1_000_000

// Arm is a follower arm that mirrors the simulated joints and gripper.
type Arm struct {
	bus         *feetech.Bus
	group       *feetech.ServoGroup
	calibration Calibration
	joints      motion.JointLimits
	gripper     motion.Limits
}

// NewArm opens the serial bus and prepares a sync group for the mirrored motors.
func NewArm(port string, cal Calibration, m motion.Config) (*Arm, error) {
	if missing := cal.Missing(MirroredMotors()...); len(missing) > 0 {
		return nil, errors.Errorf("calibration missing motors %v", missing)
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  50 * time.Millisecond,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open bus")
	}

	group := feetech.NewServoGroupByIDs(bus, cal.IDsFor(MirroredMotors()...)...)

	return &Arm{
		bus:         bus,
		group:       group,
		calibration: cal,
		joints:      m.JointLimits,
		gripper:     m.GripperLimits,
	}, nil
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	return a.bus.Close()
}

// Enable enables torque on the mirrored servos.
func (a *Arm) Enable(ctx context.Context) error {
	return a.group.EnableAll(ctx)
}

// Disable disables torque on the mirrored servos.
func (a *Arm) Disable(ctx context.Context) error {
	return a.group.DisableAll(ctx)
}

// ReadPositions reads current positions of the mirrored motors, normalized
// to [-100, 100].
func (a *Arm) ReadPositions(ctx context.Context) (map[MotorName]float64, error) {
	rawPositions, err := a.group.Positions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read positions")
	}

	positions := make(map[MotorName]float64, len(rawPositions))
	for id, raw := range rawPositions {
		name, cal, ok := a.calibration.ByID(id)
		if !ok {
			continue
		}
		positions[name] = cal.Normalize(raw)
	}
	return positions, nil
}

// WriteState sends the simulated pose to the servos in one sync write.
func (a *Arm) WriteState(ctx context.Context, angles kinematics.Angles, aperture float64) error {
	norm := MirrorPositions(angles, aperture, a.joints, a.gripper)

	rawPositions := make(feetech.PositionMap, len(norm))
	for name, v := range norm {
		cal, ok := a.calibration[name]
		if !ok {
			continue
		}
		rawPositions[cal.ID] = cal.Denormalize(v)
	}

	return errors.Wrap(a.group.SetPositions(ctx, rawPositions), "write positions")
}

// MirrorPositions maps simulated joint angles and aperture onto the normalized
// [-100, 100] range of the motors, using the simulation limits as the range.
func MirrorPositions(angles kinematics.Angles, aperture float64, joints motion.JointLimits, gripper motion.Limits) map[MotorName]float64 {
	out := make(map[MotorName]float64, kinematics.NumJoints+1)
	for _, j := range kinematics.AllJoints() {
		out[JointMotor(j)] = normalize(angles[j], joints.For(j))
	}
	out[Gripper] = normalize(aperture, gripper)
	return out
}

func normalize(v float64, l motion.Limits) float64 {
	span := l.Max - l.Min
	if span == 0 {
		return 0
	}
	return (l.Clamp(v)-l.Min)/span*200 - 100
}
