package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shurvir/hailo-robot/actuator"
	"github.com/shurvir/hailo-robot/calibration"
	"github.com/shurvir/hailo-robot/chat"
	"github.com/shurvir/hailo-robot/detection"
	"github.com/shurvir/hailo-robot/pipeline"
	"github.com/shurvir/hailo-robot/pkg/clip"
	"github.com/shurvir/hailo-robot/speech"
)

// ErrMalformedResponse is returned when the collaborator answer cannot be parsed
var ErrMalformedResponse = errors.New("malformed collaborator response")

// Arm is the part of the actuator the dispatcher drives
type Arm interface {
	Mover
	Perform(ctx context.Context, action actuator.Action) error
	MoveTo(ctx context.Context, p actuator.Position, hand float64) error
	PickUp(ctx context.Context, target actuator.Position) error
	DropOff(ctx context.Context, location string) error
}

// Messenger is the outbound side of the messaging front end
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendImage(ctx context.Context, chatID int64, image []byte, caption string) error
	SendVideo(ctx context.Context, chatID int64, video []byte, caption string) error
}

// Reply is the outcome of one instruction. Failure is set when the flow
// failed, in which case Text is the message shown to the user.
type Reply struct {
	Kind    Kind
	Text    string
	Image   []byte
	Video   []byte
	Failure error
}

// Failed reports whether the flow failed
func (r Reply) Failed() bool { return r.Failure != nil }

// Options tunes the dispatcher flows
type Options struct {
	// Vocabulary is the set of directly callable arm actions
	Vocabulary []actuator.Action
	// hand angle in radians for the find-object move
	FindHand     float64
	ClipFPS      float64
	FrameTimeout time.Duration
}

// DefaultOptions returns the options used on the bench
func DefaultOptions() Options {
	return Options{
		Vocabulary:   actuator.Actions(),
		FindHand:     1.5,
		ClipFPS:      clip.DefaultFPS,
		FrameTimeout: 5 * time.Second,
	}
}

// Dispatcher resolves instructions and runs the matching flow. Handle is safe
// for concurrent use; arm commands are serialised by the arm itself.
type Dispatcher struct {
	Arm          Arm
	Frames       *pipeline.Context
	Locator      *calibration.Locator
	Collaborator chat.Collaborator
	Sessions     *Sessions
	// optional
	Speaker    speech.Speaker
	Transcoder *clip.Transcoder

	Options
}

// Handle resolves text and runs it
func (d *Dispatcher) Handle(ctx context.Context, text string) Reply {
	ins := Resolve(text, d.Vocabulary)
	log.Debugf("Resolved %q as %s (%s)", text, ins.Kind, ins.Command)
	return d.Dispatch(ctx, ins)
}

// HandleVoice transcribes an ogg voice note and handles the transcript
func (d *Dispatcher) HandleVoice(ctx context.Context, audio []byte) Reply {
	transcript, err := d.Collaborator.Generate(ctx, "Transcribe this audio.", "audio/ogg", audio)
	if err != nil {
		return failure(KindChat, err, "Sorry, I could not understand that voice note.")
	}
	log.Infof("Voice note: %q", transcript)
	return d.Handle(ctx, transcript)
}

// Dispatch runs the flow for a resolved instruction. It never panics on
// flow errors; failures come back as a Reply.
func (d *Dispatcher) Dispatch(ctx context.Context, ins Instruction) Reply {
	var r Reply
	switch ins.Kind {
	case KindAction:
		r = d.perform(ctx, ins.Action)
	case KindPickUp:
		r = d.pickUp(ctx, ins.Object)
	case KindDropOff:
		r = d.dropOff(ctx, ins.Location)
	case KindDescribe:
		r = d.describe(ctx, false)
	case KindVideo:
		r = d.describe(ctx, true)
	case KindSnapshot:
		r = d.snapshot(ctx)
	case KindFind:
		r = d.find(ctx, ins.Object)
	case KindTrack:
		r = d.track(ctx, ins.Object, ins.TrackID)
	case KindStop:
		r = d.stopTracking()
	default:
		r = d.chat(ctx, ins.Text)
	}
	r.Kind = ins.Kind
	if r.Failed() {
		log.Warnf("%s %q failed: %v", ins.Kind, ins.Command, r.Failure)
	}
	return r
}

// Deliver sends a reply to a chat: video, then image, then plain text
func Deliver(ctx context.Context, m Messenger, chatID int64, r Reply) error {
	switch {
	case len(r.Video) > 0:
		return m.SendVideo(ctx, chatID, r.Video, r.Text)
	case len(r.Image) > 0:
		return m.SendImage(ctx, chatID, r.Image, r.Text)
	default:
		return m.SendText(ctx, chatID, r.Text)
	}
}

func failure(kind Kind, err error, text string) Reply {
	return Reply{Kind: kind, Text: text, Failure: err}
}

// lookupFailure words a locator error for the user
func lookupFailure(kind Kind, object string, err error) Reply {
	switch {
	case errors.Is(err, detection.ErrUnknownClass):
		return failure(kind, err, fmt.Sprintf("I don't know what a %s is.", object))
	case errors.Is(err, calibration.ErrNotVisible):
		return failure(kind, err, fmt.Sprintf("I can't see a %s right now.", object))
	default:
		return failure(kind, err, fmt.Sprintf("Sorry, I could not look for the %s.", object))
	}
}
