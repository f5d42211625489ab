package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/vrmcast/vrmcast/internal/config"
	"github.com/vrmcast/vrmcast/internal/db"
	"github.com/vrmcast/vrmcast/internal/mocap/pipeline"
	"github.com/vrmcast/vrmcast/internal/monitoring"
)

type testServer struct {
	srv     *Server
	mux     *http.ServeMux
	manager *pipeline.Manager
	db      *db.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	database, err := db.OpenDB(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	fsys, err := db.MigrationsFS()
	if err != nil {
		t.Fatal(err)
	}
	if err := database.MigrateUp(fsys); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}

	manager := pipeline.NewManager()
	t.Cleanup(manager.StopAll)

	tuning := config.EmptyTuningConfig()
	recDir := t.TempDir()
	tuning.RecordingDir = &recDir

	srv := NewServer(manager, database, tuning)
	return &testServer{srv: srv, mux: srv.ServeMux(), manager: manager, db: database}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	ts.mux.ServeHTTP(w, req)
	return w
}

func (ts *testServer) saveTestProfile(t *testing.T) {
	t.Helper()
	w := ts.do(t, "POST", "/api/profiles", map[string]interface{}{
		"name":        "avatar",
		"humanoid":    []string{"Head", "Hips"},
		"expressions": []string{"jawOpen", "eyeBlink_L"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("saveProfile = %d: %s", w.Code, w.Body.String())
	}
}

func (ts *testServer) createTestPipeline(t *testing.T, id string) {
	t.Helper()
	w := ts.do(t, "POST", "/api/pipelines", map[string]interface{}{
		"id":           id,
		"name":         "booth",
		"protocol":     "VMC",
		"host":         "127.0.0.1",
		"port":         39539,
		"profile_name": "avatar",
		"use_pose":     true,
		"use_face":     true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("createPipeline = %d: %s", w.Code, w.Body.String())
	}
}

func TestProfileEndpoints(t *testing.T) {
	ts := newTestServer(t)

	// empty store lists as [], not null
	w := ts.do(t, "GET", "/api/profiles", nil)
	if w.Code != http.StatusOK || w.Body.String() != "[]\n" {
		t.Errorf("empty list = %d %q", w.Code, w.Body.String())
	}

	ts.saveTestProfile(t)

	w = ts.do(t, "GET", "/api/profiles", nil)
	var names []string
	if err := json.Unmarshal(w.Body.Bytes(), &names); err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "avatar" {
		t.Errorf("profiles = %v", names)
	}

	// a profile with a bone outside the vocabulary is rejected pre-store
	w = ts.do(t, "POST", "/api/profiles", map[string]interface{}{
		"name":        "bad",
		"humanoid":    []string{"Tail"},
		"expressions": []string{},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid profile = %d, want 400", w.Code)
	}

	w = ts.do(t, "POST", "/api/profiles", map[string]interface{}{"humanoid": []string{}, "expressions": []string{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("nameless profile = %d, want 400", w.Code)
	}
}

func TestPipelineCreateAndShow(t *testing.T) {
	ts := newTestServer(t)
	ts.saveTestProfile(t)
	ts.createTestPipeline(t, "p1")

	w := ts.do(t, "GET", "/api/pipelines/p1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("showPipeline = %d", w.Code)
	}
	var st pipelineStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.ID != "p1" || st.State != "idle" || st.Protocol != "VMC" {
		t.Errorf("status = %+v", st)
	}
	// tuning defaults filled in for fields the request omitted
	if st.SendRateHz != 30 {
		t.Errorf("SendRateHz = %v, want default 30", st.SendRateHz)
	}

	// the config round-trips through the database
	cfg, err := ts.db.GetPipelineConfig("p1")
	if err != nil || cfg == nil {
		t.Fatalf("stored config = %v, %v", cfg, err)
	}
	if cfg.Alpha != 0.3 || !cfg.UsePose {
		t.Errorf("stored config = %+v", cfg)
	}

	// duplicate id conflicts
	w = ts.do(t, "POST", "/api/pipelines", map[string]interface{}{
		"id": "p1", "host": "127.0.0.1", "port": 39539, "profile_name": "avatar",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}

	// unknown profile is a bad request
	w = ts.do(t, "POST", "/api/pipelines", map[string]interface{}{
		"id": "p2", "host": "127.0.0.1", "port": 39539, "profile_name": "ghost",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown profile = %d, want 400", w.Code)
	}

	// invalid settings are a bad request
	w = ts.do(t, "POST", "/api/pipelines", map[string]interface{}{
		"id": "p3", "host": "", "port": 39539, "profile_name": "avatar",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing host = %d, want 400", w.Code)
	}

	w = ts.do(t, "GET", "/api/pipelines", nil)
	var list []pipelineStatus
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("list = %v", list)
	}
}

func TestPipelineSettingsCarryTuningDefaults(t *testing.T) {
	ts := newTestServer(t)
	ts.saveTestProfile(t)
	ts.createTestPipeline(t, "p1")

	p, ok := ts.manager.Get("p1")
	if !ok {
		t.Fatal("pipeline not registered")
	}
	s := p.Settings()
	if s.TickRateHz != 60 {
		t.Errorf("TickRateHz = %v, want default 60", s.TickRateHz)
	}
	if s.StaleMultiple != 3 {
		t.Errorf("StaleMultiple = %v, want default 3", s.StaleMultiple)
	}
	if s.DecayStep != 0.05 {
		t.Errorf("DecayStep = %v, want default 0.05", s.DecayStep)
	}
	if s.ShrugThreshold != 0.8 {
		t.Errorf("ShrugThreshold = %v, want default 0.8", s.ShrugThreshold)
	}
}

func TestPipelineNotFound(t *testing.T) {
	ts := newTestServer(t)
	for _, req := range []struct{ method, path string }{
		{"GET", "/api/pipelines/ghost"},
		{"DELETE", "/api/pipelines/ghost"},
		{"POST", "/api/pipelines/ghost/stream/start"},
		{"POST", "/api/pipelines/ghost/record/start"},
		{"POST", "/api/pipelines/ghost/replay/stop"},
	} {
		if w := ts.do(t, req.method, req.path, nil); w.Code != http.StatusNotFound {
			t.Errorf("%s %s = %d, want 404", req.method, req.path, w.Code)
		}
	}
}

func TestStreamRecordStopFlow(t *testing.T) {
	restore := monitoring.Silence()
	defer restore()

	ts := newTestServer(t)
	ts.saveTestProfile(t)
	ts.createTestPipeline(t, "p1")

	// stop before start is a state conflict
	if w := ts.do(t, "POST", "/api/pipelines/p1/stream/stop", nil); w.Code != http.StatusConflict {
		t.Errorf("stop while idle = %d, want 409", w.Code)
	}

	if w := ts.do(t, "POST", "/api/pipelines/p1/stream/start", nil); w.Code != http.StatusOK {
		t.Fatalf("stream start = %d: %s", w.Code, w.Body.String())
	}
	if w := ts.do(t, "POST", "/api/pipelines/p1/stream/start", nil); w.Code != http.StatusConflict {
		t.Errorf("double start = %d, want 409", w.Code)
	}

	w := ts.do(t, "POST", "/api/pipelines/p1/record/start", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("record start = %d: %s", w.Code, w.Body.String())
	}
	var started map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &started); err != nil {
		t.Fatal(err)
	}
	if started["recording_id"] == "" || started["path"] == "" {
		t.Fatalf("record start response = %v", started)
	}

	// let a few frames through before sealing
	time.Sleep(150 * time.Millisecond)

	if w := ts.do(t, "POST", "/api/pipelines/p1/record/stop", nil); w.Code != http.StatusOK {
		t.Fatalf("record stop = %d: %s", w.Code, w.Body.String())
	}

	// the registry row carries the sealed header's totals
	rec, err := ts.db.GetRecording(started["recording_id"])
	if err != nil || rec == nil {
		t.Fatalf("registry row = %v, %v", rec, err)
	}
	if rec.SealedEarly {
		t.Error("clean stop registered as sealed early")
	}
	if rec.TotalFrames == 0 {
		t.Error("sealed registry row has zero frames")
	}

	if w := ts.do(t, "POST", "/api/pipelines/p1/stream/stop", nil); w.Code != http.StatusOK {
		t.Fatalf("stream stop = %d", w.Code)
	}

	// the registry lists the recording, filtered by pipeline
	w = ts.do(t, "GET", "/api/recordings?pipeline=p1", nil)
	var records []db.RecordingRecord
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != started["recording_id"] {
		t.Errorf("recordings = %v", records)
	}
}

func TestReplayFlow(t *testing.T) {
	restore := monitoring.Silence()
	defer restore()

	ts := newTestServer(t)
	ts.saveTestProfile(t)
	ts.createTestPipeline(t, "p1")

	// produce a short recording through the real flow
	mustOK := func(w *httptest.ResponseRecorder, what string) {
		t.Helper()
		if w.Code != http.StatusOK {
			t.Fatalf("%s = %d: %s", what, w.Code, w.Body.String())
		}
	}
	mustOK(ts.do(t, "POST", "/api/pipelines/p1/stream/start", nil), "stream start")
	w := ts.do(t, "POST", "/api/pipelines/p1/record/start", nil)
	mustOK(w, "record start")
	var started map[string]string
	json.Unmarshal(w.Body.Bytes(), &started)
	time.Sleep(100 * time.Millisecond)
	mustOK(ts.do(t, "POST", "/api/pipelines/p1/record/stop", nil), "record stop")
	mustOK(ts.do(t, "POST", "/api/pipelines/p1/stream/stop", nil), "stream stop")

	// replay by registry id at high speed
	w = ts.do(t, "POST", "/api/pipelines/p1/replay/start", map[string]interface{}{
		"recording_id": started["recording_id"],
		"speed":        50,
	})
	mustOK(w, "replay start")

	// replay either finishes on its own or is stopped here; both leave idle
	deadline := time.After(5 * time.Second)
	for {
		p, _ := ts.manager.Get("p1")
		if p.State() == pipeline.StateIdle {
			break
		}
		select {
		case <-deadline:
			t.Fatal("replay did not finish")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// unknown recording id
	w = ts.do(t, "POST", "/api/pipelines/p1/replay/start", map[string]interface{}{"recording_id": "ghost"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown recording = %d, want 404", w.Code)
	}

	// a body without id or path is a bad request
	w = ts.do(t, "POST", "/api/pipelines/p1/replay/start", map[string]interface{}{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty replay request = %d, want 400", w.Code)
	}

	// caller-supplied paths outside the recordings dir are rejected
	w = ts.do(t, "POST", "/api/pipelines/p1/replay/start", map[string]interface{}{
		"path": "../../etc",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("escaping path = %d, want 400", w.Code)
	}
}

func TestDeletePipelineRemovesConfig(t *testing.T) {
	ts := newTestServer(t)
	ts.saveTestProfile(t)
	ts.createTestPipeline(t, "p1")

	if w := ts.do(t, "DELETE", "/api/pipelines/p1", nil); w.Code != http.StatusOK {
		t.Fatalf("delete = %d", w.Code)
	}
	if cfg, _ := ts.db.GetPipelineConfig("p1"); cfg != nil {
		t.Errorf("config survived delete: %+v", cfg)
	}
	if w := ts.do(t, "GET", "/api/pipelines/p1", nil); w.Code != http.StatusNotFound {
		t.Errorf("deleted pipeline still served: %d", w.Code)
	}
}

func TestDeleteRecordingEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.saveTestProfile(t)
	ts.createTestPipeline(t, "p1")
	if err := ts.db.CreateRecording(&db.RecordingRecord{
		ID: "rec-1", PipelineID: "p1", Protocol: "VMC", Path: "recordings/rec-1",
	}); err != nil {
		t.Fatal(err)
	}

	if w := ts.do(t, "DELETE", "/api/recordings/rec-1", nil); w.Code != http.StatusOK {
		t.Errorf("delete recording = %d", w.Code)
	}
	if w := ts.do(t, "DELETE", "/api/recordings/rec-1", nil); w.Code != http.StatusNotFound {
		t.Errorf("double delete = %d, want 404", w.Code)
	}
}

func TestRestorePipeline(t *testing.T) {
	ts := newTestServer(t)
	ts.saveTestProfile(t)

	cfg := &db.PipelineConfig{
		ID: "stored", Name: "from db", Protocol: "OSC", Host: "127.0.0.1",
		Port: 9000, PathPrefix: "/ps", SendRateHz: 30, ProfileName: "avatar",
		UsePose: true, Alpha: 0.3, Scale: 1,
	}
	if _, err := ts.srv.RestorePipeline(cfg); err != nil {
		t.Fatalf("RestorePipeline: %v", err)
	}
	p, ok := ts.manager.Get("stored")
	if !ok || p.State() != pipeline.StateIdle {
		t.Errorf("restored pipeline = %v, %v", p, ok)
	}

	bad := *cfg
	bad.ID = "stored2"
	bad.ProfileName = "ghost"
	if _, err := ts.srv.RestorePipeline(&bad); err == nil {
		t.Error("restore with a missing profile succeeded")
	}
}

func TestHomeHandler(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, "GET", "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("home = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("vrmcast")) {
		t.Errorf("home body = %q", w.Body.String())
	}
}

func TestStatusCodeColor(t *testing.T) {
	for code, want := range map[int]string{
		200: colorBoldGreen,
		302: colorYellow,
		500: colorBoldRed,
	} {
		got := statusCodeColor(code)
		if !bytes.HasPrefix([]byte(got), []byte(want)) {
			t.Errorf("statusCodeColor(%d) = %q", code, got)
		}
		if !bytes.Contains([]byte(got), []byte(fmt.Sprint(code))) {
			t.Errorf("statusCodeColor(%d) missing code: %q", code, got)
		}
	}
}
