package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/vrmcast/vrmcast/internal/db"
	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/mocap/oscenc"
	"github.com/vrmcast/vrmcast/internal/mocap/pipeline"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

// pipelineStatus is the wire shape for pipeline state queries.
type pipelineStatus struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	State        string  `json:"state"`
	Protocol     string  `json:"protocol"`
	Host         string  `json:"host"`
	Port         int     `json:"port"`
	FramesSent   uint64  `json:"frames_sent"`
	SendFailures uint64  `json:"send_failures"`
	LastFrameNs  int64   `json:"last_frame_ns,omitempty"`
	ChannelCount int     `json:"channel_count,omitempty"`
	SendRateHz   float64 `json:"send_rate_hz"`
}

func (s *Server) statusFor(p *pipeline.Pipeline) pipelineStatus {
	set := p.Settings()
	sent, failed := p.Stats()
	st := pipelineStatus{
		ID:           set.ID,
		Name:         set.Name,
		State:        string(p.State()),
		Protocol:     string(set.Protocol),
		Host:         set.Host,
		Port:         set.Port,
		FramesSent:   sent,
		SendFailures: failed,
		SendRateHz:   set.SendRateHz,
	}
	if frame, ok := p.LastFrame(); ok {
		st.LastFrameNs = frame.TimestampNanos
		st.ChannelCount = len(frame.Channels)
	}
	return st
}

func (s *Server) listPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines := s.manager.List()
	out := make([]pipelineStatus, 0, len(pipelines))
	for _, p := range pipelines {
		out = append(out, s.statusFor(p))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) createPipeline(w http.ResponseWriter, r *http.Request) {
	var cfg db.PipelineConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Protocol == "" {
		cfg.Protocol = string(oscenc.ProtocolOSC)
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = s.tuning.GetPathPrefix()
	}
	if cfg.SendRateHz == 0 {
		cfg.SendRateHz = s.tuning.GetSendRateHz()
	}
	if cfg.Alpha == 0 {
		cfg.Alpha = s.tuning.GetAlpha()
	}
	if cfg.Scale == 0 {
		cfg.Scale = s.tuning.GetScale()
	}

	profile, err := s.loadProfile(cfg.ProfileName)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.manager.Create(s.settingsFromConfig(&cfg), profile)
	if err != nil {
		var cfgErr *mocap.ConfigError
		if errors.As(err, &cfgErr) {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSONError(w, http.StatusConflict, err.Error())
		return
	}

	if s.db != nil {
		if err := s.db.CreatePipelineConfig(&cfg); err != nil {
			s.manager.Remove(cfg.ID)
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to persist pipeline: %v", err))
			return
		}
	}

	s.writeJSON(w, http.StatusCreated, s.statusFor(p))
}

func (s *Server) showPipeline(w http.ResponseWriter, r *http.Request) {
	p, ok := s.manager.Get(r.PathValue("id"))
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "pipeline not found")
		return
	}
	s.writeJSON(w, http.StatusOK, s.statusFor(p))
}

func (s *Server) deletePipeline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.manager.Remove(id); err != nil {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if s.db != nil {
		// Config rows for unknown pipelines are harmless; log-free
		// best effort keeps DELETE idempotent.
		s.db.DeletePipelineConfig(id)
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// RestorePipeline registers a stored configuration with the manager.
// Used at startup to bring persisted pipelines back as idle pipelines.
func (s *Server) RestorePipeline(cfg *db.PipelineConfig) (*pipeline.Pipeline, error) {
	profile, err := s.loadProfile(cfg.ProfileName)
	if err != nil {
		return nil, err
	}
	return s.manager.Create(s.settingsFromConfig(cfg), profile)
}

// settingsFromConfig maps a stored configuration onto runtime settings,
// filling tunables the config does not carry from the defaults file.
func (s *Server) settingsFromConfig(cfg *db.PipelineConfig) pipeline.Settings {
	return pipeline.Settings{
		ID:             cfg.ID,
		Name:           cfg.Name,
		Protocol:       oscenc.Protocol(cfg.Protocol),
		Host:           cfg.Host,
		Port:           cfg.Port,
		PathPrefix:     cfg.PathPrefix,
		SendRateHz:     cfg.SendRateHz,
		Pose:           cfg.UsePose,
		Face:           cfg.UseFace,
		Hands:          cfg.UseHands,
		Shrug:          cfg.UseShrug,
		Gaze:           cfg.UseGaze,
		ExtFace:        cfg.UseExtFace,
		Alpha:          cfg.Alpha,
		Scale:          cfg.Scale,
		GazeMinCutoff:  s.tuning.GetGazeMinCutoff(),
		GazeBeta:       s.tuning.GetGazeBeta(),
		TickRateHz:     s.tuning.GetTickRateHz(),
		StaleMultiple:  s.tuning.GetStaleMultiple(),
		DecayStep:      s.tuning.GetDecayStep(),
		ShrugThreshold: s.tuning.GetShrugThreshold(),
	}
}

// loadProfile resolves a named capability profile from the database.
func (s *Server) loadProfile(name string) (*vrm.CapabilityProfile, error) {
	if name == "" {
		return nil, fmt.Errorf("profile_name is required")
	}
	if s.db == nil {
		return nil, fmt.Errorf("no profile store configured")
	}
	rec, err := s.db.GetProfile(name)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("profile %s not found", name)
	}
	return vrm.ParseProfile(rec.Name, []byte(rec.HumanoidJSON), []byte(rec.ExpressionsJSON))
}

// writeStateError maps lifecycle errors onto HTTP statuses: illegal
// transitions are conflicts, everything else is a server error.
func (s *Server) writeStateError(w http.ResponseWriter, err error) {
	var stateErr *mocap.InvalidStateError
	if errors.As(err, &stateErr) {
		s.writeJSONError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSONError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) startStreaming(w http.ResponseWriter, r *http.Request) {
	p, ok := s.manager.Get(r.PathValue("id"))
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "pipeline not found")
		return
	}
	if err := p.StartStreaming(); err != nil {
		s.writeStateError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.statusFor(p))
}

func (s *Server) stopStreaming(w http.ResponseWriter, r *http.Request) {
	p, ok := s.manager.Get(r.PathValue("id"))
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "pipeline not found")
		return
	}
	if err := p.StopStreaming(); err != nil {
		s.writeStateError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.statusFor(p))
}
