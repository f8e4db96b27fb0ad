package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shurvir/hailo-robot/actuator"
	"github.com/shurvir/hailo-robot/calibration"
	"github.com/shurvir/hailo-robot/chat"
	"github.com/shurvir/hailo-robot/detection"
	"github.com/shurvir/hailo-robot/pipeline"
)

type fixture struct {
	d      *Dispatcher
	arm    *fakeArm
	collab *fakeCollaborator
	frames *pipeline.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		arm:    &fakeArm{},
		collab: &fakeCollaborator{answer: "ok"},
		frames: pipeline.NewContext(8),
	}
	t.Cleanup(f.frames.Close)

	locator := testLocator(t)
	opts := DefaultOptions()
	opts.FrameTimeout = 100 * time.Millisecond
	f.d = &Dispatcher{
		Arm:          f.arm,
		Frames:       f.frames,
		Locator:      locator,
		Collaborator: f.collab,
		Sessions:     NewSessions(f.frames.Live, f.arm, locator, time.Millisecond, 25),
		Options:      opts,
	}
	t.Cleanup(func() { f.d.Sessions.Stop() })
	return f
}

func (f *fixture) publish(dets []detection.Record) {
	s := testSnapshot(dets)
	f.frames.Publish(s)
	s.Release()
}

func TestDispatcher_Action(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	r := f.d.Handle(context.Background(), "go_up")
	require.False(t, r.Failed())
	assert.Equal(t, KindAction, r.Kind)
	assert.Equal(t, []string{"perform go_up"}, f.arm.Calls())
}

func TestDispatcher_ActionFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.arm.err = actuator.ErrTransport

	r := f.d.Handle(context.Background(), "grab")
	require.True(t, r.Failed())
	assert.ErrorIs(t, r.Failure, actuator.ErrTransport)
	assert.NotEmpty(t, r.Text)
}

func TestDispatcher_PickUp(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.publish([]detection.Record{ball})

	r := f.d.Handle(context.Background(), "pick up red ball")
	require.False(t, r.Failed(), r.Text)
	assert.Equal(t, KindPickUp, r.Kind)
	assert.Equal(t, []string{"pick_up 32 0 -75"}, f.arm.Calls())
}

func TestDispatcher_PickUpUsesCapturedFrameSize(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := sizedSnapshot(2*frameSize, frameSize, []detection.Record{ball})
	f.frames.Publish(s)
	s.Release()

	r := f.d.Handle(context.Background(), "pick up red ball")
	require.False(t, r.Failed(), r.Text)
	assert.Equal(t, []string{"pick_up 32 32 -75"}, f.arm.Calls())
}

func TestDispatcher_PickUpLookupFailures(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.publish([]detection.Record{ball})

	r := f.d.Handle(context.Background(), "pick up banana")
	require.True(t, r.Failed())
	assert.ErrorIs(t, r.Failure, detection.ErrUnknownClass)
	assert.Contains(t, r.Text, "don't know")

	r = f.d.Handle(context.Background(), "pick up person")
	require.True(t, r.Failed())
	assert.ErrorIs(t, r.Failure, calibration.ErrNotVisible)
	assert.False(t, errors.Is(r.Failure, detection.ErrUnknownClass))
	assert.Contains(t, r.Text, "can't see")

	assert.Empty(t, f.arm.Calls())
}

func TestDispatcher_PickUpWithoutFrame(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	r := f.d.Handle(context.Background(), "pick up red ball")
	require.True(t, r.Failed())
	assert.ErrorIs(t, r.Failure, context.DeadlineExceeded)
}

func TestDispatcher_DropOff(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	r := f.d.Handle(context.Background(), "drop off left")
	require.False(t, r.Failed())
	assert.Equal(t, []string{"drop_off left"}, f.arm.Calls())

	r = f.d.Handle(context.Background(), "drop off kitchen")
	require.True(t, r.Failed())
	assert.ErrorIs(t, r.Failure, actuator.ErrUnknownLocation)
}

func TestDispatcher_Snapshot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.publish(nil)
	f.collab.answer = "A dark room."

	r := f.d.Handle(context.Background(), "what do you see?")
	require.False(t, r.Failed(), r.Text)
	assert.Equal(t, "A dark room.", r.Text)
	assert.NotEmpty(t, r.Image)
	assert.Equal(t, []string{"Describe this image."}, f.collab.prompts)
	assert.Equal(t, []string{"image/png"}, f.collab.mimes)
}

func TestDispatcher_Find(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.publish(nil)
	f.collab.answer = "16, 16, 48, 48"

	r := f.d.Handle(context.Background(), "find red ball")
	require.False(t, r.Failed(), r.Text)
	assert.NotEmpty(t, r.Image)
	assert.Equal(t, []string{"move_to 32 0 -75 1.5"}, f.arm.Calls())
	require.Len(t, f.collab.prompts, 1)
	assert.Equal(t, FindPrompt("red ball", frameSize, frameSize), f.collab.prompts[0])
}

func TestDispatcher_FindMalformedAnswer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.publish(nil)
	f.collab.answer = "I cannot see a red ball."

	r := f.d.Handle(context.Background(), "find red ball")
	require.True(t, r.Failed())
	assert.ErrorIs(t, r.Failure, ErrMalformedResponse)
	assert.Empty(t, f.arm.Calls())
}

func TestDispatcher_TrackAndStop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.publish([]detection.Record{ball})

	r := f.d.Handle(context.Background(), "track red ball #7")
	require.False(t, r.Failed(), r.Text)
	s := f.d.Sessions.Current()
	require.NotNil(t, s)
	assert.Equal(t, 7, s.TrackID)
	assert.Contains(t, r.Text, s.ID)

	r = f.d.Handle(context.Background(), "stop")
	require.False(t, r.Failed())
	assert.Equal(t, "Stopped tracking.", r.Text)
	assert.False(t, s.Active())

	r = f.d.Handle(context.Background(), "track unicorn")
	require.True(t, r.Failed())
	assert.ErrorIs(t, r.Failure, detection.ErrUnknownClass)
}

func TestDispatcher_ChatIsSpoken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	speaker := &fakeSpeaker{said: make(chan string, 1)}
	f.d.Speaker = speaker
	f.collab.answer = "I am *Sharkie*."

	r := f.d.Handle(context.Background(), "who are you?")
	require.False(t, r.Failed())
	assert.Equal(t, "I am *Sharkie*.", r.Text)
	assert.Equal(t, []string{"who are you?"}, f.collab.prompts)

	select {
	case said := <-speaker.said:
		assert.Equal(t, "I am Sharkie.", said)
	case <-time.After(5 * time.Second):
		t.Fatal("reply was not spoken")
	}
}

func TestDispatcher_ChatFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.collab.err = chat.ErrAPI

	r := f.d.Handle(context.Background(), "hello there")
	require.True(t, r.Failed())
	assert.ErrorIs(t, r.Failure, chat.ErrAPI)
	assert.NotEmpty(t, r.Text)
}

func TestDispatcher_VoiceIsTranscribedThenResolved(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.collab.answer = "go down"

	r := f.d.HandleVoice(context.Background(), []byte("ogg"))
	require.False(t, r.Failed())
	assert.Equal(t, []string{"Transcribe this audio."}, f.collab.prompts)
	assert.Equal(t, []string{"audio/ogg"}, f.collab.mimes)

	// "go down" normalizes to go_down
	assert.Equal(t, []string{"perform go_down"}, f.arm.Calls())
}

func TestDispatcher_DescribeWithoutHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	r := f.d.Handle(context.Background(), "describe")
	require.True(t, r.Failed())
	assert.ErrorIs(t, r.Failure, context.DeadlineExceeded)
	assert.Empty(t, f.collab.prompts)
}

type recordingMessenger struct {
	kind, text string
	size       int
}

func (m *recordingMessenger) SendText(_ context.Context, _ int64, text string) error {
	m.kind, m.text = "text", text
	return nil
}

func (m *recordingMessenger) SendImage(_ context.Context, _ int64, image []byte, caption string) error {
	m.kind, m.text, m.size = "image", caption, len(image)
	return nil
}

func (m *recordingMessenger) SendVideo(_ context.Context, _ int64, video []byte, caption string) error {
	m.kind, m.text, m.size = "video", caption, len(video)
	return nil
}

func TestDeliver(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply Reply
		want  string
	}{
		{"text", Reply{Text: "hi"}, "text"},
		{"image", Reply{Text: "hi", Image: []byte{1}}, "image"},
		{"video wins", Reply{Text: "hi", Image: []byte{1}, Video: []byte{1, 2}}, "video"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &recordingMessenger{}
			require.NoError(t, Deliver(context.Background(), m, 1, tt.reply))
			assert.Equal(t, tt.want, m.kind)
			assert.Equal(t, "hi", m.text)
		})
	}
}
