package actuator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

var (
	// ErrBadState is returned when the state reply cannot be read
	ErrBadState = errors.New("malformed arm state")
	// ErrUnknownDirection is returned for a move outside up/down/left/right
	ErrUnknownDirection = errors.New("unknown direction")
	// ErrUnknownLocation is returned for a drop-off location that is not configured
	ErrUnknownLocation = errors.New("unknown drop-off location")
)

// Position is a cartesian point in the arm frame, millimetres
type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Pose is a full joint pose in degrees
type Pose struct {
	Base     float64 `yaml:"base"`
	Shoulder float64 `yaml:"shoulder"`
	Elbow    float64 `yaml:"elbow"`
	Hand     float64 `yaml:"hand"`
}

// State is the arm feedback: cartesian position plus joint angles in radians
type State struct {
	Position
	Base     float64
	Shoulder float64
	Elbow    float64
	Hand     float64
}

// Range is an inclusive [Min, Max] interval
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (r Range) clamp(v float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, v))
}

// Limits bounds every command sent to the arm
type Limits struct {
	X      Range         `yaml:"x"`
	Y      Range         `yaml:"y"`
	Z      Range         `yaml:"z"`
	Joints map[int]Range `yaml:"joints"`
}

// DefaultLimits returns the reachable envelope of the RoArm-M2
func DefaultLimits() Limits {
	return Limits{
		X: Range{-500, 500},
		Y: Range{-650, 650},
		Z: Range{-250, 450},
		Joints: map[int]Range{
			JointBase:     {-180, 180},
			JointShoulder: {-90, 90},
			JointElbow:    {-60, 180},
			JointHand:     {45, 180},
		},
	}
}

func (l Limits) clampPosition(p Position) (Position, bool) {
	out := Position{X: l.X.clamp(p.X), Y: l.Y.clamp(p.Y), Z: l.Z.clamp(p.Z)}
	return out, out != p
}

func (l Limits) clampJoint(joint int, angle float64) (float64, bool) {
	r, ok := l.Joints[joint]
	if !ok {
		return angle, false
	}
	out := r.clamp(angle)
	return out, out != angle
}

// Options configures motion parameters and named locations
type Options struct {
	Speed        int
	Acceleration int
	// cartesian move speed, arm units
	MoveSpeed float64
	// degrees per manual go_* action
	Step float64
	// hand angle in radians sent with cartesian moves
	HandAngle float64
	GripOpen   float64
	GripClosed float64
	// approach height above a pick-up target and lift height after grabbing
	Hover  float64
	Lift   float64
	Settle time.Duration
	Travel time.Duration

	PickupStart Pose
	Locations   map[string]Position
	Limits      Limits
}

// DefaultOptions returns the settings used on the bench
func DefaultOptions() Options {
	return Options{
		Speed:        20,
		Acceleration: 10,
		MoveSpeed:    0.25,
		Step:         10,
		HandAngle:    3.14,
		GripOpen:     90,
		GripClosed:   180,
		Hover:        80,
		Lift:         150,
		Settle:       3 * time.Second,
		Travel:       5 * time.Second,
		PickupStart:  Pose{Base: 0, Shoulder: 0, Elbow: 160, Hand: 180},
		Locations: map[string]Position{
			"left":  {X: -100, Y: 600, Z: 200},
			"right": {X: -100, Y: -600, Z: 200},
		},
		Limits: DefaultLimits(),
	}
}

// jointDirection maps a relative move onto one joint
type jointDirection struct {
	field string
	sign  float64
	joint int
}

var directions = map[string]jointDirection{
	"up":    {field: "e", sign: -1, joint: JointElbow},
	"down":  {field: "e", sign: +1, joint: JointElbow},
	"left":  {field: "b", sign: +1, joint: JointBase},
	"right": {field: "b", sign: -1, joint: JointBase},
}

// Arm drives the robotic arm. Every command is serialised by mu so only one
// is outstanding on the transport at a time.
type Arm struct {
	transport Transport
	opts      Options

	mu sync.Mutex
}

// NewArm wraps a transport and probes the arm with a state query
func NewArm(ctx context.Context, transport Transport, opts Options) (*Arm, error) {
	a := &Arm{transport: transport, opts: opts}
	st, err := a.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("arm probe failed: %w", err)
	}
	log.Infof("Arm online at (%.1f, %.1f, %.1f)", st.X, st.Y, st.Z)
	return a, nil
}

// Options returns the configured motion options
func (a *Arm) Options() Options {
	return a.opts
}

func (a *Arm) send(ctx context.Context, cmd []byte) ([]byte, error) {
	log.Debugf("-> %s", cmd)
	reply, err := a.transport.Do(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// State queries the arm feedback
func (a *Arm) State(ctx context.Context) (State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, _, err := a.state(ctx)
	return st, err
}

func (a *Arm) state(ctx context.Context) (State, []byte, error) {
	reply, err := a.send(ctx, stateCmd())
	if err != nil {
		return State{}, nil, err
	}
	st, err := ParseState(reply)
	return st, reply, err
}

// ParseState reads a T:105 feedback reply
func ParseState(reply []byte) (State, error) {
	if !gjson.ValidBytes(reply) {
		return State{}, fmt.Errorf("%w: %q", ErrBadState, reply)
	}
	r := gjson.ParseBytes(reply)
	for _, f := range []string{"b", "s", "e"} {
		if !r.Get(f).Exists() {
			return State{}, fmt.Errorf("%w: missing %q", ErrBadState, f)
		}
	}
	return State{
		Position: Position{X: r.Get("x").Float(), Y: r.Get("y").Float(), Z: r.Get("z").Float()},
		Base:     r.Get("b").Float(),
		Shoulder: r.Get("s").Float(),
		Elbow:    r.Get("e").Float(),
		Hand:     r.Get("t").Float(),
	}, nil
}

// Reset returns the arm to its initial pose
func (a *Arm) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.send(ctx, resetCmd())
	return err
}

// Move turns one joint relative to its current angle. Direction is
// up, down, left or right; degrees is the magnitude.
func (a *Arm) Move(ctx context.Context, direction string, degrees float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.move(ctx, direction, degrees)
}

func (a *Arm) move(ctx context.Context, direction string, degrees float64) error {
	dir, ok := directions[strings.ToLower(direction)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDirection, direction)
	}

	_, reply, err := a.state(ctx)
	if err != nil {
		return err
	}
	current := gjson.GetBytes(reply, dir.field).Float() * 180 / math.Pi
	return a.setJoint(ctx, dir.joint, current+dir.sign*degrees)
}

// SetJoint moves one joint to an absolute angle in degrees
func (a *Arm) SetJoint(ctx context.Context, joint int, angle float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.setJoint(ctx, joint, angle)
}

func (a *Arm) setJoint(ctx context.Context, joint int, angle float64) error {
	clamped, changed := a.opts.Limits.clampJoint(joint, angle)
	if changed {
		log.Warnf("Joint %d angle clamped: %.1f -> %.1f", joint, angle, clamped)
	}
	_, err := a.send(ctx, jointCmd(joint, clamped, a.opts.Speed, a.opts.Acceleration))
	return err
}

// MoveTo moves the end effector to a cartesian position with the given hand angle
func (a *Arm) MoveTo(ctx context.Context, p Position, hand float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.moveTo(ctx, p, hand)
}

func (a *Arm) moveTo(ctx context.Context, p Position, hand float64) error {
	clamped, changed := a.opts.Limits.clampPosition(p)
	if changed {
		log.Warnf("Target clamped: (%.1f,%.1f,%.1f) -> (%.1f,%.1f,%.1f)",
			p.X, p.Y, p.Z, clamped.X, clamped.Y, clamped.Z)
	}
	_, err := a.send(ctx, moveXYZCmd(clamped, hand, a.opts.MoveSpeed))
	return err
}

// SetPose moves all joints at once
func (a *Arm) SetPose(ctx context.Context, pose Pose) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.setPose(ctx, pose)
}

func (a *Arm) setPose(ctx context.Context, pose Pose) error {
	_, err := a.send(ctx, jointsCmd(pose, a.opts.Speed, a.opts.Acceleration))
	return err
}

// Grab closes the gripper
func (a *Arm) Grab(ctx context.Context) error {
	return a.SetJoint(ctx, JointHand, a.opts.GripClosed)
}

// Release opens the gripper
func (a *Arm) Release(ctx context.Context) error {
	return a.SetJoint(ctx, JointHand, a.opts.GripOpen)
}

// Light switches the LED fully on or off
func (a *Arm) Light(ctx context.Context, on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	level := 0
	if on {
		level = 255
	}
	_, err := a.send(ctx, lightCmd(level))
	return err
}

// PickupStart moves to the pose the pick-up flows start from
func (a *Arm) PickupStart(ctx context.Context) error {
	return a.SetPose(ctx, a.opts.PickupStart)
}

// Close closes the transport
func (a *Arm) Close() error {
	return a.transport.Close()
}

// pause waits d or until ctx ends
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
