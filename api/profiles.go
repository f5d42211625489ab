package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vrmcast/vrmcast/internal/db"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

type profileUpload struct {
	Name        string          `json:"name"`
	Humanoid    json.RawMessage `json:"humanoid"`
	Expressions json.RawMessage `json:"expressions"`
}

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "no profile store configured")
		return
	}
	names, err := s.db.ListProfiles()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, names)
}

func (s *Server) saveProfile(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "no profile store configured")
		return
	}

	var upload profileUpload
	if err := json.NewDecoder(r.Body).Decode(&upload); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if upload.Name == "" {
		s.writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	// Parse before storing: a profile that cannot be loaded back is a
	// bad upload, not a bad database row.
	if _, err := vrm.ParseProfile(upload.Name, upload.Humanoid, upload.Expressions); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid profile: %v", err))
		return
	}

	err := s.db.SaveProfile(&db.ProfileRecord{
		Name:            upload.Name,
		HumanoidJSON:    string(upload.Humanoid),
		ExpressionsJSON: string(upload.Expressions),
	})
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"name": upload.Name})
}
