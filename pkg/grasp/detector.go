// Package grasp decides when the manipulated object attaches to or detaches
// from the gripper.
package grasp

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/gwillem/armsim/pkg/status"
)

// Ownership says who, if anyone, holds the object.
type Ownership int

const (
	// Free objects are positioned independently and may be grabbed automatically.
	Free Ownership = iota
	// HeldAutomatic objects were attached by the proximity rule or the sequencer
	// and are released by the open rule.
	HeldAutomatic
	// HeldManual objects were attached by the operator and only the operator
	// releases them.
	HeldManual
	// ReleasedManual objects were dropped by the operator. The attach rule
	// ignores them until the end-effector leaves the grab radius.
	ReleasedManual
)

func (o Ownership) String() string {
	switch o {
	case Free:
		return "free"
	case HeldAutomatic:
		return "held_automatic"
	case HeldManual:
		return "held_manual"
	case ReleasedManual:
		return "released_manual"
	default:
		return fmt.Sprintf("ownership(%d)", int(o))
	}
}

// Object is the single manipulated object in the scene.
type Object struct {
	Position r3.Vector
	Size     r3.Vector
	Owner    Ownership
}

// NewObject creates a free object at position.
func NewObject(position, size r3.Vector) *Object {
	return &Object{Position: position, Size: size}
}

// Attached reports whether the object is held by the gripper.
func (o *Object) Attached() bool {
	return o.Owner == HeldAutomatic || o.Owner == HeldManual
}

// Reset frees the object and puts it at start.
func (o *Object) Reset(start r3.Vector) {
	o.Position = start
	o.Owner = Free
}

// Decision is the outcome of evaluating the grasp rules.
type Decision int

const (
	None Decision = iota
	Attach
	Detach
)

func (d Decision) String() string {
	switch d {
	case Attach:
		return "attach"
	case Detach:
		return "detach"
	default:
		return "none"
	}
}

// Config holds the grasp thresholds.
type Config struct {
	// GrabRadius is the largest end-effector to object distance that still grabs.
	GrabRadius float64 `yaml:"grab_radius"`
	// Apertures below CloseThreshold grab, apertures above OpenThreshold release.
	CloseThreshold float64 `yaml:"close_threshold"`
	OpenThreshold  float64 `yaml:"open_threshold"`
	// SyncEpsilon is the smallest position change written to a held object.
	SyncEpsilon float64 `yaml:"sync_epsilon"`
}

// DefaultConfig returns the canonical grasp thresholds.
func DefaultConfig() Config {
	return Config{
		GrabRadius:     0.65,
		CloseThreshold: 0.30,
		OpenThreshold:  0.50,
		SyncEpsilon:    1e-4,
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if c.GrabRadius <= 0 {
		return fmt.Errorf("grab radius must be positive, got %.3f", c.GrabRadius)
	}
	if c.CloseThreshold >= c.OpenThreshold {
		return fmt.Errorf("close threshold %.3f must be below open threshold %.3f", c.CloseThreshold, c.OpenThreshold)
	}
	if c.SyncEpsilon < 0 {
		return fmt.Errorf("sync epsilon must not be negative")
	}
	return nil
}

// Detector applies the automatic grasp rules and the operator overrides.
type Detector struct {
	cfg  Config
	sink status.Sink
}

// NewDetector creates a Detector reporting to sink.
func NewDetector(cfg Config, sink status.Sink) *Detector {
	if sink == nil {
		sink = status.Discard
	}
	return &Detector{cfg: cfg, sink: sink}
}

// InReach reports whether ee is within the grab radius of the object.
func (d *Detector) InReach(ee r3.Vector, obj *Object) bool {
	return ee.Distance(obj.Position) < d.cfg.GrabRadius
}

// Evaluate returns what the automatic rules would do to obj. It does not
// modify obj.
func (d *Detector) Evaluate(ee r3.Vector, aperture float64, obj *Object) Decision {
	if obj == nil {
		return None
	}
	switch obj.Owner {
	case Free:
		if aperture < d.cfg.CloseThreshold && d.InReach(ee, obj) {
			return Attach
		}
	case HeldAutomatic:
		if aperture > d.cfg.OpenThreshold {
			return Detach
		}
	}
	return None
}

// Update runs one detection step after the controller has ticked: it re-arms
// a manually released object once the gripper has moved away from it, applies
// the automatic decision and keeps a held object on the end-effector.
func (d *Detector) Update(ee r3.Vector, aperture float64, obj *Object) Decision {
	if obj == nil {
		return None
	}
	if obj.Owner == ReleasedManual && !d.InReach(ee, obj) {
		obj.Owner = Free
	}

	dec := d.Evaluate(ee, aperture, obj)
	switch dec {
	case Attach:
		obj.Owner = HeldAutomatic
		obj.Position = ee
		d.sink.Report("Object grasped")
	case Detach:
		obj.Owner = Free
		obj.Position = ee
		d.sink.Report("Object released")
	}

	d.Track(ee, obj)
	return dec
}

// Track moves a held object onto ee when it drifted by more than the sync
// epsilon. It reports whether the position was written.
func (d *Detector) Track(ee r3.Vector, obj *Object) bool {
	if obj == nil || !obj.Attached() {
		return false
	}
	if ee.Distance(obj.Position) <= d.cfg.SyncEpsilon {
		return false
	}
	obj.Position = ee
	return true
}

// ManualAttach puts obj in the gripper on the operator's behalf, regardless
// of distance or aperture.
func (d *Detector) ManualAttach(ee r3.Vector, obj *Object) {
	obj.Owner = HeldManual
	obj.Position = ee
	d.sink.Report("Manual pick: attached to gripper")
}

// ManualDetach drops obj at ee on the operator's behalf.
func (d *Detector) ManualDetach(ee r3.Vector, obj *Object) {
	if !obj.Attached() {
		return
	}
	obj.Owner = ReleasedManual
	obj.Position = ee
	d.sink.Report("Manual release: dropped at gripper position")
}

// Toggle attaches a loose object or drops a held one.
func (d *Detector) Toggle(ee r3.Vector, obj *Object) {
	if obj.Attached() {
		d.ManualDetach(ee, obj)
	} else {
		d.ManualAttach(ee, obj)
	}
}
