package pipeline

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/mocap/oscenc"
	"github.com/vrmcast/vrmcast/internal/mocap/recorder"
	"github.com/vrmcast/vrmcast/internal/mocap/transmit"
	"github.com/vrmcast/vrmcast/internal/monitoring"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

func testSettings() Settings {
	return Settings{
		ID:         "p1",
		Name:       "test pipeline",
		Protocol:   oscenc.ProtocolVMC,
		Host:       "127.0.0.1",
		Port:       39539,
		SendRateHz: 200, // fast sends keep lifecycle tests short
		Pose:       true,
		Face:       true,
		Alpha:      0.3,
		Scale:      1.0,
	}
}

func pipelineProfile(t *testing.T) *vrm.CapabilityProfile {
	t.Helper()
	p, err := vrm.NewProfile("test", []string{"Head", "Hips"}, []string{"jawOpen"})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// newTestPipeline builds a pipeline whose socket is a mock.
func newTestPipeline(t *testing.T, s Settings) (*Pipeline, *transmit.MockPacketConn) {
	t.Helper()
	p, err := New(s, pipelineProfile(t))
	if err != nil {
		t.Fatal(err)
	}
	conn := transmit.NewMockPacketConn()
	p.dial = func(host string, port int) (transmit.PacketConn, error) {
		return conn, nil
	}
	t.Cleanup(p.Stop)
	return p, conn
}

func TestNewValidation(t *testing.T) {
	profile := pipelineProfile(t)
	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"missing host", func(s *Settings) { s.Host = "" }},
		{"zero port", func(s *Settings) { s.Port = 0 }},
		{"port too large", func(s *Settings) { s.Port = 70000 }},
		{"zero send rate", func(s *Settings) { s.SendRateHz = 0 }},
		{"zero alpha", func(s *Settings) { s.Alpha = 0 }},
		{"alpha above one", func(s *Settings) { s.Alpha = 1.2 }},
		{"unknown protocol", func(s *Settings) { s.Protocol = "MIDI" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := testSettings()
			tc.mutate(&s)
			_, err := New(s, profile)
			var cfgErr *mocap.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("New = %v, want ConfigError", err)
			}
		})
	}

	if _, err := New(testSettings(), nil); err == nil {
		t.Error("nil profile accepted")
	}
	if p, err := New(testSettings(), profile); err != nil || p.State() != StateIdle {
		t.Errorf("valid settings: %v, state %v", err, p.State())
	}
}

func TestIllegalTransitions(t *testing.T) {
	p, _ := newTestPipeline(t, testSettings())

	assertInvalid := func(err error, op string) {
		t.Helper()
		var stateErr *mocap.InvalidStateError
		if !errors.As(err, &stateErr) {
			t.Errorf("%s = %v, want InvalidStateError", op, err)
		}
	}
	stopRecording := func() error {
		_, _, err := p.StopRecording()
		return err
	}

	// idle: only start streaming / start replay are legal
	assertInvalid(p.StopStreaming(), "StopStreaming from idle")
	assertInvalid(p.StartRecording(filepath.Join(t.TempDir(), "r"), "r1"), "StartRecording from idle")
	assertInvalid(stopRecording(), "StopRecording from idle")
	assertInvalid(p.StopReplay(), "StopReplay from idle")

	if err := p.StartStreaming(); err != nil {
		t.Fatal(err)
	}
	assertInvalid(p.StartStreaming(), "StartStreaming while streaming")
	assertInvalid(p.StartReplay(t.TempDir(), 1), "StartReplay while streaming")
	assertInvalid(stopRecording(), "StopRecording while streaming")

	if err := p.StartRecording(filepath.Join(t.TempDir(), "r"), "r1"); err != nil {
		t.Fatal(err)
	}
	assertInvalid(p.StartRecording(filepath.Join(t.TempDir(), "r2"), "r2"), "StartRecording while recording")

	if err := stopRecording(); err != nil {
		t.Fatal(err)
	}
	if p.State() != StateStreaming {
		t.Errorf("state after StopRecording = %v, want streaming", p.State())
	}
	if err := p.StopStreaming(); err != nil {
		t.Fatal(err)
	}
	if p.State() != StateIdle {
		t.Errorf("state after StopStreaming = %v, want idle", p.State())
	}
}

func TestStreamingLifecycle(t *testing.T) {
	restore := monitoring.Silence()
	defer restore()
	p, conn := newTestPipeline(t, testSettings())

	if err := p.StartStreaming(); err != nil {
		t.Fatal(err)
	}
	if p.State() != StateStreaming {
		t.Fatalf("state = %v", p.State())
	}

	intake := p.Intake()
	if intake == nil {
		t.Fatal("no intake while streaming")
	}
	intake.OfferFace(mocap.FaceSample{CapturedAt: time.Now()})

	// wait for the scheduler to push at least one frame
	deadline := time.After(2 * time.Second)
	for {
		if sent, _ := p.Stats(); sent > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no frames transmitted within 2s")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := p.StopStreaming(); err != nil {
		t.Fatal(err)
	}
	if p.State() != StateIdle {
		t.Errorf("state after stop = %v", p.State())
	}
	if !conn.Closed {
		t.Error("socket left open after stop")
	}
	if p.Intake() != nil {
		t.Error("intake still reachable after stop")
	}

	// restart works from a clean teardown
	if err := p.StartStreaming(); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
}

func TestStopSealsRecording(t *testing.T) {
	p, _ := newTestPipeline(t, testSettings())
	dir := filepath.Join(t.TempDir(), "rec")

	if err := p.StartStreaming(); err != nil {
		t.Fatal(err)
	}
	if err := p.StartRecording(dir, "rec-1"); err != nil {
		t.Fatal(err)
	}
	if p.State() != StateRecording {
		t.Fatalf("state = %v", p.State())
	}

	// a Stop from recording must seal, not corrupt
	p.Stop()
	if p.State() != StateIdle {
		t.Fatalf("state after Stop = %v", p.State())
	}

	h, err := recorder.ReadHeader(dir)
	if err != nil {
		t.Fatalf("recording not sealed: %v", err)
	}
	if h.RecordingID != "rec-1" || h.PipelineID != "p1" {
		t.Errorf("header = %+v", h)
	}
}

func TestStopRecordingReturnsSealedIdentity(t *testing.T) {
	p, _ := newTestPipeline(t, testSettings())
	if err := p.StartStreaming(); err != nil {
		t.Fatal(err)
	}

	// two back-to-back recording cycles; each stop must report the
	// recording it actually sealed, not whichever looks most recent
	dirs := []string{filepath.Join(t.TempDir(), "a"), filepath.Join(t.TempDir(), "b")}
	ids := []string{"rec-a", "rec-b"}
	for i := range ids {
		if err := p.StartRecording(dirs[i], ids[i]); err != nil {
			t.Fatal(err)
		}
		gotID, gotPath, err := p.StopRecording()
		if err != nil {
			t.Fatal(err)
		}
		if gotID != ids[i] || gotPath != dirs[i] {
			t.Errorf("cycle %d sealed (%q, %q), want (%q, %q)", i, gotID, gotPath, ids[i], dirs[i])
		}
		h, err := recorder.ReadHeader(gotPath)
		if err != nil {
			t.Fatalf("cycle %d header: %v", i, err)
		}
		if h.RecordingID != ids[i] {
			t.Errorf("cycle %d header id = %q, want %q", i, h.RecordingID, ids[i])
		}
	}

	if err := p.StopStreaming(); err != nil {
		t.Fatal(err)
	}
}

func TestReplayLifecycleAutoIdle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rec")
	rec, err := recorder.NewRecorder(dir, "rec-1", "p1", "VMC")
	if err != nil {
		t.Fatal(err)
	}
	base := time.Now().UnixNano()
	for i := 0; i < 5; i++ {
		frame := mocap.Frame{
			TimestampNanos: base + int64(i)*int64(10*time.Millisecond),
			Channels: map[string]mocap.Channel{
				"Head": {Kind: mocap.KindBone, Name: "Head", Rotation: mocap.Identity},
			},
		}
		if err := rec.Record(frame); err != nil {
			t.Fatal(err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	p, conn := newTestPipeline(t, testSettings())
	if err := p.StartReplay(dir, 10); err != nil {
		t.Fatal(err)
	}
	if p.State() != StateReplaying {
		t.Fatalf("state = %v", p.State())
	}
	if p.Intake() != nil {
		t.Error("live intake reachable during replay")
	}

	// a finished recording returns the pipeline to Idle on its own
	deadline := time.After(5 * time.Second)
	for p.State() != StateIdle {
		select {
		case <-deadline:
			t.Fatal("replay did not auto-finish")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if !conn.Closed {
		t.Error("socket left open after replay finished")
	}
	if got := len(conn.Sent()); got == 0 {
		t.Error("replay transmitted nothing")
	}
}

func TestStopReplayBeforeExhaustion(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rec")
	rec, err := recorder.NewRecorder(dir, "rec-1", "p1", "VMC")
	if err != nil {
		t.Fatal(err)
	}
	base := time.Now().UnixNano()
	for i := 0; i < 100; i++ {
		frame := mocap.Frame{
			TimestampNanos: base + int64(i)*int64(time.Second),
			Channels:       map[string]mocap.Channel{"Head": {Kind: mocap.KindBone, Name: "Head", Rotation: mocap.Identity}},
		}
		if err := rec.Record(frame); err != nil {
			t.Fatal(err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	p, _ := newTestPipeline(t, testSettings())
	if err := p.StartReplay(dir, 1); err != nil {
		t.Fatal(err)
	}
	// stop long before the 99s recording could finish
	if err := p.StopReplay(); err != nil {
		t.Fatal(err)
	}
	if p.State() != StateIdle {
		t.Errorf("state after StopReplay = %v", p.State())
	}
	// stopping again reports the illegal transition
	var stateErr *mocap.InvalidStateError
	if err := p.StopReplay(); !errors.As(err, &stateErr) {
		t.Errorf("second StopReplay = %v, want InvalidStateError", err)
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	profile := pipelineProfile(t)

	s := testSettings()
	p, err := m.Create(s, profile)
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := m.Get("p1"); !ok || got != p {
		t.Errorf("Get = %v, %v", got, ok)
	}

	if _, err := m.Create(s, profile); err == nil {
		t.Error("duplicate id accepted")
	}
	s2 := testSettings()
	s2.ID = ""
	if _, err := m.Create(s2, profile); err == nil {
		t.Error("empty id accepted")
	}

	s3 := testSettings()
	s3.ID = "a0"
	if _, err := m.Create(s3, profile); err != nil {
		t.Fatal(err)
	}
	list := m.List()
	if len(list) != 2 || list[0].ID() != "a0" || list[1].ID() != "p1" {
		ids := []string{}
		for _, lp := range list {
			ids = append(ids, lp.ID())
		}
		t.Errorf("List ids = %v, want sorted [a0 p1]", ids)
	}

	if err := m.Remove("p1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get("p1"); ok {
		t.Error("removed pipeline still retrievable")
	}
	if err := m.Remove("p1"); err == nil {
		t.Error("removing a missing pipeline succeeded")
	}

	m.StopAll()
}
