package bus

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ErrBadEvent is returned for inbound events that cannot be handled
var ErrBadEvent = errors.New("bad event")

// Inbound event kinds
const (
	KindText    = "text"
	KindVoice   = "voice"
	KindCommand = "command"
)

// Event is one inbound message from the messaging front end. Audio is an
// ogg voice note, base64 in JSON.
type Event struct {
	ChatID int64  `json:"chat_id"`
	Kind   string `json:"kind"`
	Text   string `json:"text,omitempty"`
	Audio  []byte `json:"audio,omitempty"`
}

// DecodeEvent parses and validates an inbound event
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrBadEvent, err)
	}
	ev.Kind = strings.ToLower(ev.Kind)
	switch ev.Kind {
	case KindText, KindCommand:
		if strings.TrimSpace(ev.Text) == "" {
			return Event{}, fmt.Errorf("%w: %s event without text", ErrBadEvent, ev.Kind)
		}
	case KindVoice:
		if len(ev.Audio) == 0 {
			return Event{}, fmt.Errorf("%w: voice event without audio", ErrBadEvent)
		}
	default:
		return Event{}, fmt.Errorf("%w: unknown kind %q", ErrBadEvent, ev.Kind)
	}
	return ev, nil
}

// Outbound message kinds
const (
	ReplyText  = "text"
	ReplyImage = "image"
	ReplyVideo = "video"
)

// Message is one outbound reply. Media is either a download link or, when
// no media store is configured, inlined as base64.
type Message struct {
	ChatID    int64  `json:"chat_id"`
	Kind      string `json:"kind"`
	Text      string `json:"text,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Media     []byte `json:"media,omitempty"`
}
