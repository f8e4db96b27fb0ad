package clip

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// ErrNoFrames is returned when there is nothing to encode
var ErrNoFrames = errors.New("no frames to encode")

// DefaultFPS matches the rate the history sink is filled at
const DefaultFPS = 4.0

// Encode writes frames to an mp4v mp4 and returns the file bytes. Frames
// with a size different from the first are resized to it.
func Encode(frames []gocv.Mat, fps float64) ([]byte, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if fps <= 0 {
		fps = DefaultFPS
	}

	first := frames[0]
	width, height := first.Cols(), first.Rows()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("first frame is empty")
	}

	path := filepath.Join(os.TempDir(), "clip-"+uuid.NewString()+".mp4")
	defer os.Remove(path)

	w, err := gocv.VideoWriterFile(path, "mp4v", fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("opening video writer: %w", err)
	}

	resized := gocv.NewMat()
	defer resized.Close()

	written := 0
	for _, f := range frames {
		if f.Empty() {
			continue
		}
		frame := f
		if f.Cols() != width || f.Rows() != height {
			gocv.Resize(f, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
			frame = resized
		}
		if err := w.Write(frame); err != nil {
			w.Close()
			return nil, fmt.Errorf("writing frame %d: %w", written, err)
		}
		written++
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing video writer: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	log.Debugf("Encoded %d frames (%dx%d @ %.0f fps) into %d bytes", written, width, height, fps, len(data))
	return data, nil
}
