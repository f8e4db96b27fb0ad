package actuator

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Action is a named arm operation a user can request directly
type Action string

const (
	GoUp        Action = "go_up"
	GoDown      Action = "go_down"
	GoLeft      Action = "go_left"
	GoRight     Action = "go_right"
	ResetArm    Action = "reset"
	Grab        Action = "grab"
	Release     Action = "release"
	LightOn     Action = "light_on"
	LightOff    Action = "light_off"
	PickupStart Action = "pickup_start"
)

var actions = map[Action]func(ctx context.Context, a *Arm) error{
	GoUp:        func(ctx context.Context, a *Arm) error { return a.Move(ctx, "up", a.opts.Step) },
	GoDown:      func(ctx context.Context, a *Arm) error { return a.Move(ctx, "down", a.opts.Step) },
	GoLeft:      func(ctx context.Context, a *Arm) error { return a.Move(ctx, "left", a.opts.Step) },
	GoRight:     func(ctx context.Context, a *Arm) error { return a.Move(ctx, "right", a.opts.Step) },
	ResetArm:    func(ctx context.Context, a *Arm) error { return a.Reset(ctx) },
	Grab:        func(ctx context.Context, a *Arm) error { return a.Grab(ctx) },
	Release:     func(ctx context.Context, a *Arm) error { return a.Release(ctx) },
	LightOn:     func(ctx context.Context, a *Arm) error { return a.Light(ctx, true) },
	LightOff:    func(ctx context.Context, a *Arm) error { return a.Light(ctx, false) },
	PickupStart: func(ctx context.Context, a *Arm) error { return a.PickupStart(ctx) },
}

// Actions returns every action name, sorted
func Actions() []Action {
	names := lo.Keys(actions)
	slices.Sort(names)
	return names
}

// ParseAction reports whether s names an action
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	_, ok := actions[a]
	return a, ok
}

// Perform runs a named action
func (a *Arm) Perform(ctx context.Context, action Action) error {
	fn, ok := actions[action]
	if !ok {
		return fmt.Errorf("unknown action %q", action)
	}
	log.Infof("Performing %s", action)
	return fn(ctx, a)
}
