package clip

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Transcoder re-encodes mp4v clips to h264 with ffmpeg so chat clients can
// play them inline
type Transcoder struct {
	Binary  string
	Timeout time.Duration
}

// NewTranscoder returns a transcoder for the ffmpeg binary, or nil when it
// cannot be found
func NewTranscoder(binary string) *Transcoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		log.Warnf("ffmpeg not found (%v), clips stay mp4v", err)
		return nil
	}
	return &Transcoder{Binary: path, Timeout: time.Minute}
}

// Transcode returns the h264 version of an mp4 clip. On failure the error
// carries the tail of ffmpeg's stderr.
func (t *Transcoder) Transcode(ctx context.Context, mp4 []byte) ([]byte, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	id := uuid.NewString()
	in := filepath.Join(os.TempDir(), "clip-"+id+"-in.mp4")
	out := filepath.Join(os.TempDir(), "clip-"+id+"-out.mp4")
	defer os.Remove(in)
	defer os.Remove(out)

	if err := os.WriteFile(in, mp4, 0600); err != nil {
		return nil, err
	}

	stderr := NewOutputBuffer(20)
	cmd := exec.CommandContext(ctx, t.Binary,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", in,
		"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		out)
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, stderr.Tail())
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, err
	}
	log.Debugf("Transcoded %d -> %d bytes in %v", len(mp4), len(data), time.Since(start))
	return data, nil
}
