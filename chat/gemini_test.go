package chat

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func reply(text string) string {
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":"` + text + `"}]}}]}`
}

func newTestClient(t *testing.T, h http.Handler) *Gemini {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL
	cfg.PollInterval = time.Millisecond
	g, err := NewGemini(cfg)
	require.NoError(t, err)
	return g
}

func TestNewGemini_RequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewGemini(Config{})
	assert.Error(t, err)
}

func TestGemini_SendKeepsHistory(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	g := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash-exp:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		body, _ := io.ReadAll(r.Body)

		n := calls.Add(1)
		assert.Contains(t, gjson.GetBytes(body, "system_instruction.parts.0.text").String(), "Sharkie")
		assert.Equal(t, 0.5, gjson.GetBytes(body, "generationConfig.temperature").Float())
		// one user turn per call plus the model replies so far
		assert.Equal(t, int64(2*n-1), gjson.GetBytes(body, "contents.#").Int())
		_, _ = io.WriteString(w, reply("ok"))
	}))

	for i := 0; i < 3; i++ {
		got, err := g.Send(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestGemini_GenerateInlineMedia(t *testing.T) {
	t.Parallel()

	g := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		parts := gjson.GetBytes(body, "contents.0.parts")
		assert.Equal(t, "audio/ogg", parts.Get("0.inline_data.mime_type").String())
		data, _ := base64.StdEncoding.DecodeString(parts.Get("0.inline_data.data").String())
		assert.Equal(t, "OggS", string(data))
		assert.Equal(t, "Transcribe this audio.", parts.Get("1.text").String())
		assert.False(t, gjson.GetBytes(body, "system_instruction").Exists())
		_, _ = io.WriteString(w, reply("pick up red ball"))
	}))

	got, err := g.Generate(context.Background(), "Transcribe this audio.", "audio/ogg", []byte("OggS"))
	require.NoError(t, err)
	assert.Equal(t, "pick up red ball", got)
}

func TestGemini_APIError(t *testing.T) {
	t.Parallel()

	g := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"code":429,"message":"quota exceeded"}}`)
	}))
	_, err := g.Send(context.Background(), "hello")
	require.ErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), "quota exceeded")

	// failed turns are not kept
	assert.Empty(t, g.history)
}

func TestGemini_EmptyCandidates(t *testing.T) {
	t.Parallel()

	g := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	}))
	_, err := g.Generate(context.Background(), "x", "image/png", nil)
	assert.ErrorIs(t, err, ErrAPI)
}

// videoServer implements the upload, poll and generate endpoints
func videoServer(t *testing.T, finalState string) http.Handler {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "start", r.Header.Get("X-Goog-Upload-Command"))
		assert.Equal(t, "video/mp4", r.Header.Get("X-Goog-Upload-Header-Content-Type"))
		assert.Equal(t, "4", r.Header.Get("X-Goog-Upload-Header-Content-Length"))
		w.Header().Set("X-Goog-Upload-URL", "http://"+r.Host+"/resumable/1")
	})
	mux.HandleFunc("/resumable/1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "upload, finalize", r.Header.Get("X-Goog-Upload-Command"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "mp4!", string(body))
		_, _ = io.WriteString(w, `{"file":{"name":"files/abc","uri":"https://files/abc","mimeType":"video/mp4","state":"PROCESSING"}}`)
	})
	mux.HandleFunc("/v1beta/files/abc", func(w http.ResponseWriter, r *http.Request) {
		state := "PROCESSING"
		if polls.Add(1) >= 2 {
			state = finalState
		}
		_, _ = io.WriteString(w, `{"name":"files/abc","uri":"https://files/abc","state":"`+state+`"}`)
	})
	mux.HandleFunc("/v1beta/models/", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "https://files/abc", gjson.GetBytes(body, "contents.0.parts.0.file_data.file_uri").String())
		assert.Equal(t, "video/mp4", gjson.GetBytes(body, "contents.0.parts.0.file_data.mime_type").String())
		_, _ = io.WriteString(w, reply("a cat walks by"))
	})
	return mux
}

func TestGemini_GenerateFromVideo(t *testing.T) {
	t.Parallel()

	g := newTestClient(t, videoServer(t, "ACTIVE"))
	got, err := g.GenerateFromVideo(context.Background(), "Describe this video.", []byte("mp4!"))
	require.NoError(t, err)
	assert.Equal(t, "a cat walks by", got)
}

func TestGemini_GenerateFromVideoFailed(t *testing.T) {
	t.Parallel()

	g := newTestClient(t, videoServer(t, "FAILED"))
	_, err := g.GenerateFromVideo(context.Background(), "Describe this video.", []byte("mp4!"))
	assert.ErrorIs(t, err, ErrMediaFailed)
}
