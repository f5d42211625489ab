// Package recorder provides recording and replay of transmitted frame
// streams.
//
// A recording is a directory holding frames.jsonl — one JSON record per
// transmitted tick, timestamps relative to the first frame — and a
// header.json written when the recording is sealed. Frames are recorded
// post-filter, exactly as handed to the protocol encoder, so replaying a
// sealed recording reproduces the transmitted byte stream.
package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vrmcast/vrmcast/internal/mocap"
)

// File names inside a recording directory.
const (
	FramesFile = "frames.jsonl"
	HeaderFile = "header.json"
)

// FormatVersion is bumped when the on-disk record shape changes.
const FormatVersion = "1.0"

// Header describes a sealed recording.
type Header struct {
	Version      string `json:"version"`
	RecordingID  string `json:"recording_id"`
	PipelineID   string `json:"pipeline_id"`
	Protocol     string `json:"protocol"`
	CreatedNs    int64  `json:"created_ns"`
	TotalFrames  uint64 `json:"total_frames"`
	DurationNs   int64  `json:"duration_ns"`
	SealedEarly  bool   `json:"sealed_early,omitempty"`
}

// Recorder appends frames to a recording directory. Safe for use by a
// single producer; the mutex guards against Record racing Close.
type Recorder struct {
	basePath string

	mu      sync.Mutex
	file    *os.File
	w       *bufio.Writer
	header  Header
	firstNs int64
	lastNs  int64
	frames  uint64
	closed  bool
}

// NewRecorder creates a recording directory and opens the frame log.
// If basePath is empty, a timestamped directory is created under the
// system temp dir.
func NewRecorder(basePath, recordingID, pipelineID, protocol string) (*Recorder, error) {
	if basePath == "" {
		basePath = filepath.Join(os.TempDir(), fmt.Sprintf("mcaplog_%s_%d", pipelineID, time.Now().Unix()))
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}
	f, err := os.Create(filepath.Join(basePath, FramesFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create frame log: %w", err)
	}
	return &Recorder{
		basePath: basePath,
		file:     f,
		w:        bufio.NewWriter(f),
		header: Header{
			Version:     FormatVersion,
			RecordingID: recordingID,
			PipelineID:  pipelineID,
			Protocol:    protocol,
			CreatedNs:   time.Now().UnixNano(),
		},
	}, nil
}

// Record appends one frame. The first frame defines time zero; subsequent
// frames store their offset from it. A write failure seals the recording
// early and returns a RecordingIOError; callers keep streaming.
func (r *Recorder) Record(frame mocap.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return &mocap.RecordingIOError{Path: r.basePath, Err: fmt.Errorf("recorder is sealed")}
	}

	if r.frames == 0 {
		r.firstNs = frame.TimestampNanos
	}
	r.lastNs = frame.TimestampNanos

	rel := frame.Clone()
	rel.TimestampNanos = frame.TimestampNanos - r.firstNs

	data, err := json.Marshal(rel)
	if err != nil {
		return &mocap.RecordingIOError{Path: r.basePath, Err: err}
	}
	data = append(data, '\n')
	if _, err := r.w.Write(data); err != nil {
		r.sealLocked(true)
		return &mocap.RecordingIOError{Path: r.basePath, Err: err}
	}
	r.frames++
	return nil
}

// Close seals the recording: flushes the frame log and writes the header.
// Closing twice is a no-op.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.sealLocked(false)
}

func (r *Recorder) sealLocked(early bool) error {
	r.closed = true
	if err := r.w.Flush(); err != nil {
		early = true
	}
	if err := r.file.Close(); err != nil {
		early = true
	}

	r.header.TotalFrames = r.frames
	r.header.DurationNs = r.lastNs - r.firstNs
	r.header.SealedEarly = early

	data, err := json.MarshalIndent(r.header, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.basePath, HeaderFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// Path returns the recording directory.
func (r *Recorder) Path() string { return r.basePath }

// ReadHeader reads the sealed header from a recording directory.
func ReadHeader(basePath string) (Header, error) {
	var h Header
	data, err := os.ReadFile(filepath.Join(basePath, HeaderFile))
	if err != nil {
		return h, fmt.Errorf("failed to read header: %w", err)
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("failed to parse header: %w", err)
	}
	return h, nil
}

// FrameCount returns the number of frames recorded so far.
func (r *Recorder) FrameCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}
