package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	ev, err := DecodeEvent([]byte(`{"chat_id": 42, "kind": "TEXT", "text": "go up"}`))
	require.NoError(t, err)
	assert.Equal(t, Event{ChatID: 42, Kind: KindText, Text: "go up"}, ev)

	// "b2dn" is base64 for "ogg"
	ev, err = DecodeEvent([]byte(`{"chat_id": 1, "kind": "voice", "audio": "b2dn"}`))
	require.NoError(t, err)
	assert.Equal(t, []byte("ogg"), ev.Audio)
}

func TestDecodeEvent_Rejects(t *testing.T) {
	t.Parallel()

	for name, raw := range map[string]string{
		"not json":       `chat_id=1`,
		"unknown kind":   `{"chat_id": 1, "kind": "sticker"}`,
		"empty text":     `{"chat_id": 1, "kind": "text", "text": "  "}`,
		"empty command":  `{"chat_id": 1, "kind": "command"}`,
		"voice no audio": `{"chat_id": 1, "kind": "voice"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(raw))
			assert.ErrorIs(t, err, ErrBadEvent)
		})
	}
}
