package clip

import (
	"bytes"
	"strings"
	"sync"
)

// OutputBuffer keeps the last lines written to it. It implements io.Writer
// so it can be attached to a subprocess's stderr.
type OutputBuffer struct {
	lines    []string
	maxLines int
	index    int
	full     bool
	partial  []byte
	mutex    sync.RWMutex
}

// NewOutputBuffer creates a circular buffer of maxLines lines
func NewOutputBuffer(maxLines int) *OutputBuffer {
	if maxLines <= 0 {
		maxLines = 20
	}
	return &OutputBuffer{
		lines:    make([]string, maxLines),
		maxLines: maxLines,
	}
}

// Add stores one line, evicting the oldest when full
func (ob *OutputBuffer) Add(line string) {
	ob.mutex.Lock()
	defer ob.mutex.Unlock()
	ob.add(line)
}

func (ob *OutputBuffer) add(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	ob.lines[ob.index] = line
	ob.index = (ob.index + 1) % ob.maxLines
	if ob.index == 0 {
		ob.full = true
	}
}

// Write splits p into lines. A trailing partial line is held until the
// next write completes it.
func (ob *OutputBuffer) Write(p []byte) (int, error) {
	ob.mutex.Lock()
	defer ob.mutex.Unlock()

	data := append(ob.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		ob.add(string(data[:i]))
		data = data[i+1:]
	}
	ob.partial = append([]byte(nil), data...)
	return len(p), nil
}

// GetRecent returns the stored lines, oldest first
func (ob *OutputBuffer) GetRecent() []string {
	ob.mutex.RLock()
	defer ob.mutex.RUnlock()

	var result []string
	if ob.full {
		for i := 0; i < ob.maxLines; i++ {
			result = append(result, ob.lines[(ob.index+i)%ob.maxLines])
		}
	} else {
		result = append(result, ob.lines[:ob.index]...)
	}
	if len(ob.partial) > 0 {
		result = append(result, string(ob.partial))
	}
	return result
}

// Tail joins the stored lines for an error message
func (ob *OutputBuffer) Tail() string {
	return strings.Join(ob.GetRecent(), "\n")
}
