package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vrmcast/vrmcast/internal/mocap"
)

// Replayer reads a sealed recording into memory for playback. Frames keep
// their recorded relative timestamps; pacing is the caller's concern.
type Replayer struct {
	basePath string
	header   Header
	frames   []mocap.Frame
	cursor   int
}

// NewReplayer opens a recording directory. A missing header (recording
// interrupted before sealing) is tolerated: the frame log is scanned and a
// synthetic header built, since every record written is self-contained.
func NewReplayer(basePath string) (*Replayer, error) {
	r := &Replayer{basePath: basePath}

	headerData, err := os.ReadFile(filepath.Join(basePath, HeaderFile))
	switch {
	case err == nil:
		if err := json.Unmarshal(headerData, &r.header); err != nil {
			return nil, fmt.Errorf("failed to parse header: %w", err)
		}
	case os.IsNotExist(err):
		r.header = Header{Version: FormatVersion, SealedEarly: true}
	default:
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if err := r.loadFrames(); err != nil {
		return nil, err
	}
	if r.header.TotalFrames == 0 {
		r.header.TotalFrames = uint64(len(r.frames))
		if n := len(r.frames); n > 0 {
			r.header.DurationNs = r.frames[n-1].TimestampNanos
		}
	}
	return r, nil
}

func (r *Replayer) loadFrames() error {
	f, err := os.Open(filepath.Join(r.basePath, FramesFile))
	if err != nil {
		return fmt.Errorf("failed to open frame log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		var frame mocap.Frame
		if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
			// A torn final record from an early seal is expected; anything
			// mid-file is not.
			if r.header.SealedEarly {
				break
			}
			return fmt.Errorf("corrupt frame record at line %d: %w", line, err)
		}
		r.frames = append(r.frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan frame log: %w", err)
	}
	return nil
}

// Header returns the recording header.
func (r *Replayer) Header() Header { return r.header }

// TotalFrames returns the number of frames available for playback.
func (r *Replayer) TotalFrames() int { return len(r.frames) }

// Duration returns the recording duration.
func (r *Replayer) Duration() time.Duration {
	if n := len(r.frames); n > 0 {
		return time.Duration(r.frames[n-1].TimestampNanos)
	}
	return 0
}

// ReadFrame returns the next frame and its recorded relative timestamp.
// ok is false once the recording is exhausted.
func (r *Replayer) ReadFrame() (frame mocap.Frame, ok bool) {
	if r.cursor >= len(r.frames) {
		return mocap.Frame{}, false
	}
	frame = r.frames[r.cursor]
	r.cursor++
	return frame, true
}

// Rewind resets playback to the first frame.
func (r *Replayer) Rewind() { r.cursor = 0 }

// Path returns the recording directory.
func (r *Replayer) Path() string { return r.basePath }
