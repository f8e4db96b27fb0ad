package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shurvir/hailo-robot/actuator"
	"github.com/shurvir/hailo-robot/dispatch"
)

type fakeDispatcher struct {
	texts  []string
	voices int
	reply  dispatch.Reply
}

func (d *fakeDispatcher) Handle(_ context.Context, text string) dispatch.Reply {
	d.texts = append(d.texts, text)
	return d.reply
}

func (d *fakeDispatcher) HandleVoice(context.Context, []byte) dispatch.Reply {
	d.voices++
	return d.reply
}

type sent struct {
	chatID int64
	kind   string
	text   string
}

type fakeMessenger struct {
	sent []sent
}

func (m *fakeMessenger) SendText(_ context.Context, chatID int64, text string) error {
	m.sent = append(m.sent, sent{chatID, ReplyText, text})
	return nil
}

func (m *fakeMessenger) SendImage(_ context.Context, chatID int64, _ []byte, caption string) error {
	m.sent = append(m.sent, sent{chatID, ReplyImage, caption})
	return nil
}

func (m *fakeMessenger) SendVideo(_ context.Context, chatID int64, _ []byte, caption string) error {
	m.sent = append(m.sent, sent{chatID, ReplyVideo, caption})
	return nil
}

func TestRouter_HandleEvent(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{reply: dispatch.Reply{Text: "done"}}
	m := &fakeMessenger{}
	r := NewRouter(d, m, actuator.Actions())

	r.HandleEvent(context.Background(), Event{ChatID: 1, Kind: KindText, Text: "pick up red ball"})
	r.HandleEvent(context.Background(), Event{ChatID: 2, Kind: KindCommand, Text: "/go_up"})
	r.HandleEvent(context.Background(), Event{ChatID: 3, Kind: KindVoice, Audio: []byte("ogg")})

	assert.Equal(t, []string{"pick up red ball", "go_up"}, d.texts)
	assert.Equal(t, 1, d.voices)
	assert.Equal(t, []sent{
		{1, ReplyText, "done"},
		{2, ReplyText, "done"},
		{3, ReplyText, "done"},
	}, m.sent)
}

func TestRouter_MediaReplies(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{reply: dispatch.Reply{Text: "a cat", Video: []byte{1}}}
	m := &fakeMessenger{}
	NewRouter(d, m, nil).HandleEvent(context.Background(), Event{ChatID: 4, Kind: KindText, Text: "video"})

	require.Len(t, m.sent, 1)
	assert.Equal(t, sent{4, ReplyVideo, "a cat"}, m.sent[0])
}

func TestRouter_Help(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	m := &fakeMessenger{}
	r := NewRouter(d, m, []actuator.Action{actuator.GoUp, actuator.Grab})
	r.HandleEvent(context.Background(), Event{ChatID: 1, Kind: KindCommand, Text: "/help"})

	assert.Empty(t, d.texts)
	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0].text, "/go_up /grab")
}
