package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for pipeline tuning.
// The schema matches the /api/pipelines settings payload so the same
// JSON can seed startup defaults and runtime pipeline creation.
type TuningConfig struct {
	// Smoothing params
	Alpha         *float64 `json:"alpha,omitempty"`
	GazeMinCutoff *float64 `json:"gaze_min_cutoff,omitempty"`
	GazeBeta      *float64 `json:"gaze_beta,omitempty"`

	// Fusion params
	TickRateHz    *float64 `json:"tick_rate_hz,omitempty"`
	StaleMultiple *int     `json:"stale_multiple,omitempty"`
	DecayStep     *float64 `json:"decay_step,omitempty"`

	// Transmission params
	SendRateHz *float64 `json:"send_rate_hz,omitempty"`
	PathPrefix *string  `json:"path_prefix,omitempty"`

	// Avatar params
	Scale          *float64 `json:"scale,omitempty"`
	ShrugThreshold *float64 `json:"shrug_threshold,omitempty"`

	// Recording params
	RecordingDir *string `json:"recording_dir,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.Alpha != nil {
		if *c.Alpha <= 0 || *c.Alpha > 1 {
			return fmt.Errorf("alpha must be in (0,1], got %f", *c.Alpha)
		}
	}
	if c.TickRateHz != nil {
		if *c.TickRateHz <= 0 {
			return fmt.Errorf("tick_rate_hz must be positive, got %f", *c.TickRateHz)
		}
	}
	if c.SendRateHz != nil {
		if *c.SendRateHz <= 0 {
			return fmt.Errorf("send_rate_hz must be positive, got %f", *c.SendRateHz)
		}
	}
	if c.StaleMultiple != nil {
		if *c.StaleMultiple < 1 {
			return fmt.Errorf("stale_multiple must be at least 1, got %d", *c.StaleMultiple)
		}
	}
	if c.DecayStep != nil {
		if *c.DecayStep <= 0 || *c.DecayStep > 1 {
			return fmt.Errorf("decay_step must be in (0,1], got %f", *c.DecayStep)
		}
	}
	if c.ShrugThreshold != nil {
		if *c.ShrugThreshold <= 0 || *c.ShrugThreshold >= 2 {
			return fmt.Errorf("shrug_threshold out of range, got %f", *c.ShrugThreshold)
		}
	}
	if c.PathPrefix != nil && *c.PathPrefix != "" {
		if (*c.PathPrefix)[0] != '/' {
			return fmt.Errorf("path_prefix must start with '/', got %q", *c.PathPrefix)
		}
	}
	return nil
}

// GetAlpha returns the smoothing coefficient or the default.
func (c *TuningConfig) GetAlpha() float64 {
	if c.Alpha == nil {
		return 0.3
	}
	return *c.Alpha
}

// GetGazeMinCutoff returns the gaze filter minimum cutoff or the default.
func (c *TuningConfig) GetGazeMinCutoff() float64 {
	if c.GazeMinCutoff == nil {
		return 1.0
	}
	return *c.GazeMinCutoff
}

// GetGazeBeta returns the gaze filter speed coefficient or the default.
func (c *TuningConfig) GetGazeBeta() float64 {
	if c.GazeBeta == nil {
		return 0.05
	}
	return *c.GazeBeta
}

// GetTickRateHz returns the fusion tick rate or the default.
func (c *TuningConfig) GetTickRateHz() float64 {
	if c.TickRateHz == nil {
		return 60.0
	}
	return *c.TickRateHz
}

// GetStaleMultiple returns the staleness window multiple or the default.
func (c *TuningConfig) GetStaleMultiple() int {
	if c.StaleMultiple == nil {
		return 3
	}
	return *c.StaleMultiple
}

// GetDecayStep returns the per-tick expression decay step or the default.
func (c *TuningConfig) GetDecayStep() float64 {
	if c.DecayStep == nil {
		return 0.05
	}
	return *c.DecayStep
}

// GetSendRateHz returns the transmission rate or the default.
func (c *TuningConfig) GetSendRateHz() float64 {
	if c.SendRateHz == nil {
		return 30.0
	}
	return *c.SendRateHz
}

// GetPathPrefix returns the OSC address prefix or the default.
func (c *TuningConfig) GetPathPrefix() string {
	if c.PathPrefix == nil || *c.PathPrefix == "" {
		return "/ps"
	}
	return *c.PathPrefix
}

// GetScale returns the uniform root scale or the default.
func (c *TuningConfig) GetScale() float64 {
	if c.Scale == nil {
		return 1.0
	}
	return *c.Scale
}

// GetShrugThreshold returns the shrug activation threshold or the default.
func (c *TuningConfig) GetShrugThreshold() float64 {
	if c.ShrugThreshold == nil {
		return 0.8
	}
	return *c.ShrugThreshold
}

// GetRecordingDir returns the recordings base directory or the default.
func (c *TuningConfig) GetRecordingDir() string {
	if c.RecordingDir == nil || *c.RecordingDir == "" {
		return "recordings"
	}
	return *c.RecordingDir
}
