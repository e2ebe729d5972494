package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/claude/motionscore/internal/classify"
	"github.com/claude/motionscore/internal/config"
	"github.com/claude/motionscore/internal/exercise"
	"github.com/claude/motionscore/internal/pose"
	"github.com/claude/motionscore/internal/session"
)

const testAPIKey = "test-key"

func newTestServer() *Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := session.NewFactory(config.Default().Analysis, classify.HeuristicLegs{}, classify.HeuristicArms{}, log)
	mgr := NewManager(factory, time.Second, log)
	return New(factory, mgr, testAPIKey, log)
}

// rawFrame builds one standing, fully visible detector frame and applies
// mods to its joints.
func rawFrame(mods ...func(j []pose.RawJoint)) pose.RawFrame {
	one := 1.0
	j := make([]pose.RawJoint, pose.JointCount)
	for i := range j {
		j[i] = pose.RawJoint{X: 0.5, Y: 0.5, Visibility: &one}
	}
	set := func(i int, x, y float64) { j[i] = pose.RawJoint{X: x, Y: y, Visibility: &one} }
	set(pose.LeftEar, 0.46, 0.14)
	set(pose.RightEar, 0.54, 0.14)
	set(pose.LeftShoulder, 0.42, 0.30)
	set(pose.RightShoulder, 0.58, 0.30)
	set(pose.LeftElbow, 0.40, 0.42)
	set(pose.RightElbow, 0.60, 0.42)
	set(pose.LeftWrist, 0.40, 0.55)
	set(pose.RightWrist, 0.60, 0.55)
	set(pose.LeftHip, 0.45, 0.52)
	set(pose.RightHip, 0.55, 0.52)
	set(pose.LeftKnee, 0.45, 0.70)
	set(pose.RightKnee, 0.55, 0.70)
	set(pose.LeftAnkle, 0.45, 0.88)
	set(pose.RightAnkle, 0.55, 0.88)
	for _, m := range mods {
		m(j)
	}
	return pose.RawFrame{Joints: j}
}

// squatJoints bends both knees to 95 degrees with a wide knee stance.
func squatJoints(j []pose.RawJoint) {
	rad := 95 * math.Pi / 180
	j[pose.LeftKnee].X, j[pose.LeftKnee].Y = 0.35, 0.70
	j[pose.RightKnee].X, j[pose.RightKnee].Y = 0.65, 0.70
	place := func(hip, knee, ankle int, s float64) {
		ux, uy := j[hip].X-j[knee].X, j[hip].Y-j[knee].Y
		vx := math.Cos(s*rad)*ux - math.Sin(s*rad)*uy
		vy := math.Sin(s*rad)*ux + math.Cos(s*rad)*uy
		j[ankle].X, j[ankle].Y = j[knee].X+vx, j[knee].Y+vy
	}
	place(pose.LeftHip, pose.LeftKnee, pose.LeftAnkle, 1)
	place(pose.RightHip, pose.RightKnee, pose.RightAnkle, -1)
}

func framesBody(t *testing.T, n int, mods ...func(j []pose.RawJoint)) *bytes.Buffer {
	t.Helper()
	frames := make([]pose.RawFrame, n)
	for i := range frames {
		frames[i] = rawFrame(mods...)
	}
	body, err := json.Marshal(map[string]any{"frames": frames})
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewBuffer(body)
}

func doRequest(s *Server, method, path string, body io.Reader, withKey bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if withKey {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

// TestAnalyzeRequiresAPIKey verifies the analyze endpoint rejects missing
// and wrong keys.
func TestAnalyzeRequiresAPIKey(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodPost, "/api/v1/analyze", framesBody(t, 1), false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", framesBody(t, 1))
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong key: status = %d, want 403", rec.Code)
	}
}

// TestExercisesPublic verifies the catalogue endpoint needs no key and
// lists the full catalogue.
func TestExercisesPublic(t *testing.T) {
	s := newTestServer()
	rec := doRequest(s, http.MethodGet, "/api/v1/exercises", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Exercises []struct {
			Label  string `json:"label"`
			Family string `json:"family"`
		} `json:"exercises"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(resp.Exercises) != len(exercise.Catalogue()) {
		t.Errorf("entries = %d, want %d", len(resp.Exercises), len(exercise.Catalogue()))
	}
}

// TestAnalyzeBadJSON verifies malformed bodies get a 400.
func TestAnalyzeBadJSON(t *testing.T) {
	s := newTestServer()
	rec := doRequest(s, http.MethodPost, "/api/v1/analyze", strings.NewReader("{nope"), true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestAnalyzeWrongJointCount verifies a frame with a bad joint count
// rejects the request.
func TestAnalyzeWrongJointCount(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(map[string]any{
		"frames": []pose.RawFrame{{Joints: make([]pose.RawJoint, 5)}},
	})
	rec := doRequest(s, http.MethodPost, "/api/v1/analyze", bytes.NewBuffer(body), true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestAnalyzeEmptyRecording verifies an empty recording is a structured
// outcome, not an HTTP failure.
func TestAnalyzeEmptyRecording(t *testing.T) {
	s := newTestServer()
	rec := doRequest(s, http.MethodPost, "/api/v1/analyze", strings.NewReader(`{"frames":[]}`), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var v session.Verdict
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if v.Outcome != session.OutcomeNoData {
		t.Errorf("outcome = %v, want no_data", v.Outcome)
	}
}

// TestAnalyzeDeepSquat verifies the full batch path over a synthetic deep
// knee bend.
func TestAnalyzeDeepSquat(t *testing.T) {
	s := newTestServer()
	rec := doRequest(s, http.MethodPost, "/api/v1/analyze", framesBody(t, 90, squatJoints), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var v session.Verdict
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if v.Outcome != session.OutcomeAnalyzed {
		t.Fatalf("outcome = %v, want analyzed", v.Outcome)
	}
	if v.Exercise != exercise.DeepSquat {
		t.Errorf("exercise = %v, want DeepSquat", v.Exercise)
	}
	if !v.IsCorrect {
		t.Errorf("IsCorrect = false, windows %+v", v.Windows)
	}
}

// TestSessionLifecycle verifies create, live frame pushes with a locked
// label, and teardown.
func TestSessionLifecycle(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodPost, "/api/v1/sessions", nil, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201", rec.Code)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if s.sessions.Len() != 1 {
		t.Fatalf("active sessions = %d, want 1", s.sessions.Len())
	}

	// Below the readiness threshold: buffered only.
	path := fmt.Sprintf("/api/v1/sessions/%s/frames", created.ID)
	frames := make([]pose.RawFrame, 10)
	for i := range frames {
		frames[i] = rawFrame(squatJoints)
	}
	body, _ := json.Marshal(map[string]any{"frames": frames, "locked": "DeepSquat"})
	rec = doRequest(s, http.MethodPost, path, bytes.NewBuffer(body), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("push: status = %d, want 200", rec.Code)
	}
	var resp struct {
		Ready    bool                  `json:"ready"`
		Buffered int                   `json:"buffered_frames"`
		Result   *session.WindowResult `json:"result"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp.Ready || resp.Result != nil || resp.Buffered != 10 {
		t.Errorf("got %+v, want not-ready with 10 buffered", resp)
	}

	// Crossing the readiness threshold produces a locked window result.
	for i := 0; i < 2; i++ {
		b, _ := json.Marshal(map[string]any{"frames": frames, "locked": "DeepSquat"})
		rec = doRequest(s, http.MethodPost, path, bytes.NewBuffer(b), true)
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !resp.Ready || resp.Result == nil {
		t.Fatalf("got %+v, want a ready tick result", resp)
	}
	if resp.Result.Classification.Source != classify.SourceLocked {
		t.Errorf("source = %v, want Locked", resp.Result.Classification.Source)
	}

	rec = doRequest(s, http.MethodDelete, "/api/v1/sessions/"+created.ID, nil, true)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", rec.Code)
	}
	rec = doRequest(s, http.MethodDelete, "/api/v1/sessions/"+created.ID, nil, true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", rec.Code)
	}
}

// TestPushFramesConcurrent verifies overlapping pushes into one session are
// serialized: run with -race this catches unsynchronized aggregator access,
// and the buffer must end exactly full.
func TestPushFramesConcurrent(t *testing.T) {
	s := newTestServer()
	rec := doRequest(s, http.MethodPost, "/api/v1/sessions", nil, true)
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	path := "/api/v1/sessions/" + created.ID + "/frames"

	var wg sync.WaitGroup
	errs := make(chan string, 32)
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				frames := make([]pose.RawFrame, 10)
				for k := range frames {
					frames[k] = rawFrame()
				}
				body, err := json.Marshal(map[string]any{"frames": frames})
				if err != nil {
					errs <- err.Error()
					return
				}
				if r := doRequest(s, http.MethodPost, path, bytes.NewBuffer(body), true); r.Code != http.StatusOK {
					errs <- fmt.Sprintf("status %d", r.Code)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatalf("concurrent push failed: %s", e)
	}

	// 200 frames went in; the ring holds exactly its capacity.
	rec = doRequest(s, http.MethodPost, path, framesBody(t, 1), true)
	var resp struct {
		Buffered int `json:"buffered_frames"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Buffered != 60 {
		t.Errorf("buffered = %d, want the 60-frame window capacity", resp.Buffered)
	}
}

// TestPushFramesInvalidSession verifies bad and unknown session IDs.
func TestPushFramesInvalidSession(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodPost, "/api/v1/sessions/not-a-uuid/frames", framesBody(t, 1), true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", rec.Code)
	}

	rec = doRequest(s, http.MethodPost, "/api/v1/sessions/9f2c6a1e-0000-4000-8000-000000000000/frames", framesBody(t, 1), true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", rec.Code)
	}
}

// TestPushFramesUnknownLabel verifies locked labels are validated against
// the catalogue.
func TestPushFramesUnknownLabel(t *testing.T) {
	s := newTestServer()
	rec := doRequest(s, http.MethodPost, "/api/v1/sessions", nil, true)
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}

	body := strings.NewReader(`{"frames":[],"locked":"Handstand"}`)
	rec = doRequest(s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/frames", body, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestManagerReap verifies idle sessions are closed and removed.
func TestManagerReap(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := session.NewFactory(config.Default().Analysis, classify.Unavailable{}, classify.Unavailable{}, log)
	m := NewManager(factory, time.Second, log)

	m.Create()
	id := m.Create()
	time.Sleep(20 * time.Millisecond)

	if n := m.Reap(time.Hour); n != 0 {
		t.Errorf("reaped %d fresh sessions, want 0", n)
	}
	if _, ok := m.get(id); !ok {
		t.Fatal("session vanished before idle cutoff")
	}
	// get refreshed one session's timer; the other is now stale.
	time.Sleep(20 * time.Millisecond)
	if n := m.Reap(30 * time.Millisecond); n != 1 {
		t.Errorf("reaped %d, want the 1 stale session", n)
	}
	if m.Len() != 1 {
		t.Errorf("len = %d, want 1", m.Len())
	}
	m.CloseAll()
	if m.Len() != 0 {
		t.Errorf("len after CloseAll = %d, want 0", m.Len())
	}
}
