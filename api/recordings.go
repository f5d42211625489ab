package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/vrmcast/vrmcast/internal/db"
	"github.com/vrmcast/vrmcast/internal/mocap/recorder"
	"github.com/vrmcast/vrmcast/internal/security"
)

func (s *Server) startRecording(w http.ResponseWriter, r *http.Request) {
	p, ok := s.manager.Get(r.PathValue("id"))
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "pipeline not found")
		return
	}

	recordingID := uuid.NewString()
	path := filepath.Join(s.tuning.GetRecordingDir(), recordingID)
	if err := p.StartRecording(path, recordingID); err != nil {
		s.writeStateError(w, err)
		return
	}

	if s.db != nil {
		err := s.db.CreateRecording(&db.RecordingRecord{
			ID:         recordingID,
			PipelineID: p.ID(),
			Protocol:   string(p.Settings().Protocol),
			Path:       path,
		})
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to register recording: %v", err))
			return
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"recording_id": recordingID,
		"path":         path,
	})
}

func (s *Server) stopRecording(w http.ResponseWriter, r *http.Request) {
	p, ok := s.manager.Get(r.PathValue("id"))
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "pipeline not found")
		return
	}
	recID, path, err := p.StopRecording()
	if err != nil {
		s.writeStateError(w, err)
		return
	}

	// Fold the sealed header back into the registry, keyed by the
	// identity the pipeline just sealed. Recordings without a registry
	// row (registry disabled at start) are skipped.
	if s.db != nil && recID != "" {
		if h, err := recorder.ReadHeader(path); err == nil {
			s.db.SealRecording(recID, int(h.TotalFrames), h.DurationNs, h.SealedEarly)
		}
	}

	s.writeJSON(w, http.StatusOK, s.statusFor(p))
}

type replayRequest struct {
	RecordingID string  `json:"recording_id"`
	Path        string  `json:"path"`
	Speed       float64 `json:"speed"`
}

func (s *Server) startReplay(w http.ResponseWriter, r *http.Request) {
	p, ok := s.manager.Get(r.PathValue("id"))
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "pipeline not found")
		return
	}

	var req replayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	path := req.Path
	if path == "" && req.RecordingID != "" && s.db != nil {
		rec, err := s.db.GetRecording(req.RecordingID)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rec == nil {
			s.writeJSONError(w, http.StatusNotFound, "recording not found")
			return
		}
		path = rec.Path
	}
	if path == "" {
		s.writeJSONError(w, http.StatusBadRequest, "recording_id or path is required")
		return
	}
	if req.Path != "" {
		// Only caller-supplied paths need the traversal check; registry
		// paths were created by us.
		if err := security.ValidatePathWithinDirectory(req.Path, s.tuning.GetRecordingDir()); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := p.StartReplay(path, req.Speed); err != nil {
		s.writeStateError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.statusFor(p))
}

func (s *Server) stopReplay(w http.ResponseWriter, r *http.Request) {
	p, ok := s.manager.Get(r.PathValue("id"))
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "pipeline not found")
		return
	}
	if err := p.StopReplay(); err != nil {
		s.writeStateError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.statusFor(p))
}

func (s *Server) listRecordings(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "no recording registry configured")
		return
	}
	records, err := s.db.ListRecordings(r.URL.Query().Get("pipeline"))
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []db.RecordingRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) deleteRecording(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "no recording registry configured")
		return
	}
	if err := s.db.DeleteRecording(r.PathValue("id")); err != nil {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
