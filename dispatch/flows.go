package dispatch

import (
	"context"
	"errors"
	"fmt"
	"image/color"

	"github.com/samber/lo"
	"gocv.io/x/gocv"

	"github.com/shurvir/hailo-robot/actuator"
	"github.com/shurvir/hailo-robot/pipeline"
	"github.com/shurvir/hailo-robot/pkg/clip"
	"github.com/shurvir/hailo-robot/speech"
)

func (d *Dispatcher) perform(ctx context.Context, action actuator.Action) Reply {
	if err := d.Arm.Perform(ctx, action); err != nil {
		return failure(KindAction, err, fmt.Sprintf("Sorry, %s failed.", action))
	}
	return Reply{Text: fmt.Sprintf("Done: %s", action)}
}

// latest waits up to FrameTimeout for the current snapshot
func (d *Dispatcher) latest(ctx context.Context) (*pipeline.Snapshot, error) {
	if d.FrameTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.FrameTimeout)
		defer cancel()
	}
	return d.Frames.Live.Latest(ctx)
}

func (d *Dispatcher) pickUp(ctx context.Context, object string) Reply {
	snap, err := d.latest(ctx)
	if err != nil {
		return failure(KindPickUp, err, "Sorry, the camera has no picture yet.")
	}
	target, err := d.Locator.Target(object, snap.Detections, snap.Image.Cols(), snap.Image.Rows())
	snap.Release()
	if err != nil {
		return lookupFailure(KindPickUp, object, err)
	}

	log.Infof("Picking up %s at (%.1f, %.1f, %.1f)", object, target.X, target.Y, target.Z)
	if err := d.Arm.PickUp(ctx, actuator.Position(target)); err != nil {
		return failure(KindPickUp, err, fmt.Sprintf("Sorry, I could not pick up the %s.", object))
	}
	return Reply{Text: fmt.Sprintf("Picked up the %s.", object)}
}

func (d *Dispatcher) dropOff(ctx context.Context, location string) Reply {
	if err := d.Arm.DropOff(ctx, location); err != nil {
		if errors.Is(err, actuator.ErrUnknownLocation) {
			return failure(KindDropOff, err, fmt.Sprintf("I don't know where %s is.", location))
		}
		return failure(KindDropOff, err, fmt.Sprintf("Sorry, I could not drop it off on the %s.", location))
	}
	return Reply{Text: fmt.Sprintf("Dropped it off on the %s.", location)}
}

// describe turns the recent history into a clip and asks for a description
func (d *Dispatcher) describe(ctx context.Context, attach bool) Reply {
	kind := lo.Ternary(attach, KindVideo, KindDescribe)

	video, err := d.recentClip(ctx)
	if err != nil {
		return failure(kind, err, "Sorry, I could not put a video together.")
	}
	text, err := d.Collaborator.GenerateFromVideo(ctx, "Describe this video.", video)
	if err != nil {
		r := failure(kind, err, "Sorry, I could not describe the video.")
		if attach {
			r.Video = video
		}
		return r
	}

	r := Reply{Text: text}
	if attach {
		r.Video = video
	} else {
		d.say(ctx, text)
	}
	return r
}

// recentClip drains the history sink in capture order and encodes it
func (d *Dispatcher) recentClip(ctx context.Context) ([]byte, error) {
	if d.FrameTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.FrameTimeout)
		defer cancel()
	}
	snaps, err := d.Frames.History.Drain(ctx)
	if err != nil {
		return nil, err
	}
	defer pipeline.ReleaseAll(snaps)

	frames := lo.Map(snaps, func(s *pipeline.Snapshot, _ int) gocv.Mat { return s.Image })
	video, err := clip.Encode(frames, d.ClipFPS)
	if err != nil {
		return nil, err
	}
	log.Infof("Encoded %d frames into a %d byte clip", len(frames), len(video))

	if d.Transcoder != nil {
		h264, err := d.Transcoder.Transcode(ctx, video)
		if err != nil {
			log.Warnf("Transcode failed, sending mp4v clip: %v", err)
			return video, nil
		}
		return h264, nil
	}
	return video, nil
}

func (d *Dispatcher) snapshot(ctx context.Context) Reply {
	snap, err := d.latest(ctx)
	if err != nil {
		return failure(KindSnapshot, err, "Sorry, the camera has no picture yet.")
	}
	png, err := encodePNG(snap.Image)
	snap.Release()
	if err != nil {
		return failure(KindSnapshot, err, "Sorry, I could not take a picture.")
	}

	text, err := d.Collaborator.Generate(ctx, "Describe this image.", "image/png", png)
	if err != nil {
		r := failure(KindSnapshot, err, "Sorry, I could not describe the picture.")
		r.Image = png
		return r
	}
	return Reply{Text: text, Image: png}
}

// find asks the collaborator where an object is and moves the arm over it.
// The reply carries the frame with the returned box drawn in.
func (d *Dispatcher) find(ctx context.Context, object string) Reply {
	snap, err := d.latest(ctx)
	if err != nil {
		return failure(KindFind, err, "Sorry, the camera has no picture yet.")
	}
	defer snap.Release()

	png, err := encodePNG(snap.Image)
	if err != nil {
		return failure(KindFind, err, "Sorry, I could not take a picture.")
	}
	width, height := snap.Image.Cols(), snap.Image.Rows()
	answer, err := d.Collaborator.Generate(ctx, FindPrompt(object, width, height), "image/png", png)
	if err != nil {
		return failure(KindFind, err, fmt.Sprintf("Sorry, I could not ask about the %s.", object))
	}
	box, err := ParseBox(answer, width, height)
	if err != nil {
		return failure(KindFind, err, fmt.Sprintf("Sorry, I could not work out where the %s is.", object))
	}

	marked := snap.Image.Clone()
	defer marked.Close()
	gocv.Rectangle(&marked, box.Rect(), color.RGBA{R: 255, A: 255}, 2)
	png, err = encodePNG(marked)
	if err != nil {
		png = nil
	}

	target := d.Locator.Place(box, width, height)
	log.Infof("Found %s at %v, moving to (%.1f, %.1f, %.1f)", object, box.Rect(), target.X, target.Y, target.Z)
	if err := d.Arm.MoveTo(ctx, actuator.Position(target), d.FindHand); err != nil {
		r := failure(KindFind, err, fmt.Sprintf("Sorry, I could not move to the %s.", object))
		r.Image = png
		return r
	}
	return Reply{Text: fmt.Sprintf("Found the %s.", object), Image: png}
}

func (d *Dispatcher) track(ctx context.Context, object string, trackID int) Reply {
	if _, err := d.Locator.Classes.Lookup(object); err != nil {
		return lookupFailure(KindTrack, object, err)
	}
	s := d.Sessions.Start(ctx, object, trackID)
	if trackID != 0 {
		return Reply{Text: fmt.Sprintf("Tracking %s #%d (session %s).", object, trackID, s.ID)}
	}
	return Reply{Text: fmt.Sprintf("Tracking the %s (session %s).", object, s.ID)}
}

func (d *Dispatcher) stopTracking() Reply {
	if d.Sessions.Stop() {
		return Reply{Text: "Stopped tracking."}
	}
	return Reply{Text: "I was not tracking anything."}
}

func (d *Dispatcher) chat(ctx context.Context, text string) Reply {
	answer, err := d.Collaborator.Send(ctx, text)
	if err != nil {
		return failure(KindChat, err, "Sorry, I could not reach my brain just now.")
	}
	d.say(ctx, answer)
	return Reply{Text: answer}
}

// say speaks text in the background so the reply is not held up
func (d *Dispatcher) say(ctx context.Context, text string) {
	if d.Speaker == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := d.Speaker.Say(ctx, speech.Clean(text)); err != nil {
			log.Warnf("Speech failed: %v", err)
		}
	}()
}

func encodePNG(img gocv.Mat) ([]byte, error) {
	if img.Empty() {
		return nil, errors.New("empty frame")
	}
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
