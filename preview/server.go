package preview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hybridgroup/mjpeg"
	"gocv.io/x/gocv"

	"github.com/shurvir/hailo-robot/pipeline"
)

const frameTimeout = 10 * time.Second

// Server streams the live sink as MJPEG over HTTP.
//
//	/            multipart MJPEG stream
//	/frame.jpg   the current frame
//	/healthz     200 once a frame has been seen
type Server struct {
	live     *pipeline.LiveSink
	stream   *mjpeg.Stream
	addr     string
	interval time.Duration
	quality  int

	mu      sync.Mutex
	lastSeq uint64
	last    []byte
}

// NewServer creates a preview server polling the live sink fps times a second
func NewServer(live *pipeline.LiveSink, addr string, fps float64, quality int) *Server {
	if fps <= 0 {
		fps = 10
	}
	if quality <= 0 || quality > 100 {
		quality = 75
	}
	interval := time.Duration(float64(time.Second) / fps)
	return &Server{
		live:     live,
		stream:   mjpeg.NewStream(),
		addr:     addr,
		interval: interval,
		quality:  quality,
	}
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", s.stream)
	mux.Handle("/frame.jpg", http.TimeoutHandler(http.HandlerFunc(s.serveFrame), frameTimeout, "frame timed out"))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if s.current() == nil {
			http.Error(w, "no frame yet", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	})
	return mux
}

// newHTTPServer has no write timeout: the stream route never finishes
func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// Run serves until ctx ends
func (s *Server) Run(ctx context.Context) error {
	server := s.newHTTPServer()

	go s.feed(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Infof("Preview on http://%s/", s.addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("preview server: %w", err)
	}
	return nil
}

func (s *Server) feed(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if jpg, ok := s.refresh(); ok {
				s.stream.UpdateJPEG(jpg)
			}
		}
	}
}

// refresh encodes the live snapshot when it is newer than the last one
func (s *Server) refresh() ([]byte, bool) {
	snap, ok := s.live.TryLatest()
	if !ok {
		return nil, false
	}
	defer snap.Release()

	s.mu.Lock()
	fresh := s.last == nil || snap.Seq != s.lastSeq
	s.mu.Unlock()
	if !fresh || snap.Image.Empty() {
		return nil, false
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, snap.Image, []int{int(gocv.IMWriteJpegQuality), s.quality})
	if err != nil {
		log.Warnf("Frame %d encode failed: %v", snap.Seq, err)
		return nil, false
	}
	defer buf.Close()
	jpg := append([]byte(nil), buf.GetBytes()...)

	s.mu.Lock()
	s.lastSeq, s.last = snap.Seq, jpg
	s.mu.Unlock()
	return jpg, true
}

func (s *Server) current() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Server) serveFrame(w http.ResponseWriter, r *http.Request) {
	s.refresh()
	jpg := s.current()
	if jpg == nil {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(jpg)
}
