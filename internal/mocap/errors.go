package mocap

import "fmt"

// ConfigError reports an invalid or missing pipeline reference. Surfaced to
// the caller at start time; the pipeline stays Idle.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

// InvalidStateError reports an illegal pipeline state transition. The
// transition is rejected and state is left unchanged.
type InvalidStateError struct {
	Op    string
	State string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state: cannot %s while %s", e.Op, e.State)
}

// RecordingIOError reports a durable log write failure. The recording is
// sealed early and marked corrupt; streaming continues unaffected.
type RecordingIOError struct {
	Path string
	Err  error
}

func (e *RecordingIOError) Error() string {
	return fmt.Sprintf("recording io error: %s: %v", e.Path, e.Err)
}

func (e *RecordingIOError) Unwrap() error { return e.Err }
