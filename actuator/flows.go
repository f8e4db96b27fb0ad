package actuator

import (
	"context"
	"fmt"
	"strings"
)

// PickUp grabs an object at target: release, approach from above, descend,
// grab and lift. The arm lock is held for the whole sequence.
func (a *Arm) PickUp(ctx context.Context, target Position) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	log.Infof("Picking up at (%.1f, %.1f, %.1f)", target.X, target.Y, target.Z)

	above := target
	above.Z += a.opts.Hover
	lifted := target
	lifted.Z += a.opts.Lift

	steps := []struct {
		name string
		run  func() error
	}{
		{"release", func() error { return a.setJoint(ctx, JointHand, a.opts.GripOpen) }},
		{"approach", func() error { return a.moveTo(ctx, above, a.opts.HandAngle) }},
		{"descend", func() error { return a.moveTo(ctx, target, a.opts.HandAngle) }},
		{"grab", func() error { return a.setJoint(ctx, JointHand, a.opts.GripClosed) }},
		{"lift", func() error { return a.moveTo(ctx, lifted, a.opts.HandAngle) }},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			return fmt.Errorf("pick-up %s: %w", s.name, err)
		}
		if err := pause(ctx, a.opts.Settle); err != nil {
			return err
		}
	}
	return nil
}

// DropOff carries a held object to a named location, releases it and
// returns to the pick-up start pose
func (a *Arm) DropOff(ctx context.Context, location string) error {
	dest, ok := a.opts.Locations[strings.ToLower(strings.TrimSpace(location))]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLocation, location)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	log.Infof("Dropping off at %s (%.1f, %.1f, %.1f)", location, dest.X, dest.Y, dest.Z)

	if err := a.move(ctx, "up", 90); err != nil {
		return fmt.Errorf("drop-off raise: %w", err)
	}
	if err := pause(ctx, a.opts.Settle); err != nil {
		return err
	}
	if err := a.moveTo(ctx, dest, a.opts.HandAngle); err != nil {
		return fmt.Errorf("drop-off move: %w", err)
	}
	if err := pause(ctx, a.opts.Travel); err != nil {
		return err
	}
	if err := a.setJoint(ctx, JointHand, a.opts.GripOpen); err != nil {
		return fmt.Errorf("drop-off release: %w", err)
	}
	if err := a.setPose(ctx, a.opts.PickupStart); err != nil {
		return fmt.Errorf("drop-off return: %w", err)
	}
	return nil
}
