package detection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"gocv.io/x/gocv"
)

// RemoteEngine posts JPEG frames to an inference server that runs the
// accelerator. The server answers with
//
//	{"classes": [[[b0, b1, b2, b3, score], ...], ...]}
type RemoteEngine struct {
	url    string
	client *http.Client
	height int
	width  int
	info   EngineInfo
}

// NewRemoteEngine creates a client for the inference server at endpoint
func NewRemoteEngine(endpoint string, height, width int, timeout time.Duration) (*RemoteEngine, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("remote engine endpoint is required")
	}
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: model input %dx%d", ErrBadDimensions, width, height)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	url := strings.TrimRight(endpoint, "/")
	return &RemoteEngine{
		url:    url,
		client: &http.Client{Timeout: timeout},
		height: height,
		width:  width,
		info:   EngineInfo{Type: "remote", Backend: url},
	}, nil
}

// InputSize returns the model input geometry
func (e *RemoteEngine) InputSize() (int, int) {
	return e.height, e.width
}

// Info returns information about the engine
func (e *RemoteEngine) Info() EngineInfo {
	return e.info
}

// Infer sends one frame to /infer and parses the per-class rows
func (e *RemoteEngine) Infer(ctx context.Context, frame gocv.Mat) (RawOutput, error) {
	jpg, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer jpg.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(jpg.GetBytes()); err != nil {
		return nil, fmt.Errorf("write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"/infer", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s, error: %s", resp.Status, body)
	}
	return ParseRawOutput(body)
}

// ParseRawOutput decodes the inference server JSON body
func ParseRawOutput(body []byte) (RawOutput, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid inference response")
	}
	classes := gjson.GetBytes(body, "classes")
	if !classes.IsArray() {
		return nil, fmt.Errorf("inference response has no classes array")
	}

	var raw RawOutput
	classes.ForEach(func(_, class gjson.Result) bool {
		var rows [][]float64
		class.ForEach(func(_, row gjson.Result) bool {
			vals := row.Array()
			r := make([]float64, len(vals))
			for i, v := range vals {
				r[i] = v.Float()
			}
			rows = append(rows, r)
			return true
		})
		raw = append(raw, rows)
		return true
	})
	return raw, nil
}

// Close is a no-op for the HTTP client
func (e *RemoteEngine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
