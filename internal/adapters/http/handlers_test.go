package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"castforge/internal/app"
	"castforge/internal/config"
	"castforge/internal/domain"
	"castforge/internal/encoder"
	"castforge/internal/hub"
	"castforge/internal/ids"
	"castforge/internal/provider"
	"github.com/gin-gonic/gin"
)

type stubProcess struct {
	done chan struct{}
	once sync.Once
}

func (p *stubProcess) Done() <-chan struct{} { return p.done }
func (p *stubProcess) Err() error            { return nil }
func (p *stubProcess) Kill() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
func (p *stubProcess) UpdateFilter(domain.AudioSettings) error { return nil }

type stubRunner struct{}

func (stubRunner) Start(context.Context, encoder.LaunchSpec) (encoder.Process, error) {
	return &stubProcess{done: make(chan struct{})}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Session json.RawMessage `json:"session"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Mode: "release", Secret: "test-secret", SendBuffer: 8}
	registry := app.NewRegistry(ids.UUID{})
	supervisor := encoder.NewSupervisor(stubRunner{}, ids.NewULID())
	eventHub := hub.New()
	svc := app.NewService(registry, supervisor, eventHub, provider.Nop{}, nil)
	return SetupRouter(context.Background(), cfg, svc, eventHub, nil)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	out := map[string]json.RawMessage{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestCreateSessionEnvelope(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions", gin.H{
		"name":     "launch day",
		"platform": "youtube",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var body envelope
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success {
		t.Errorf("success = false: %s", body.Error)
	}
	var sess domain.Session
	if err := json.Unmarshal(body.Session, &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess.Status != domain.StatusCreated {
		t.Errorf("status = %s, want created", sess.Status)
	}
}

func TestCreateSessionValidationEnvelope(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions", gin.H{"platform": "youtube"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body envelope
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success {
		t.Errorf("success envelope for a validation failure")
	}
	if body.Error == "" {
		t.Errorf("failure envelope without error string")
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	r := newTestRouter(t)

	for _, tc := range []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/sessions/ghost", nil},
		{http.MethodPatch, "/api/sessions/ghost", gin.H{"name": "x"}},
		{http.MethodDelete, "/api/sessions/ghost", nil},
		{http.MethodPost, "/api/sessions/ghost/scenes", gin.H{"name": "intro"}},
		{http.MethodPost, "/api/sessions/ghost/status", gin.H{"status": "live"}},
	} {
		w := doJSON(t, r, tc.method, tc.path, tc.body)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s: status = %d, want 404", tc.method, tc.path, w.Code)
		}
	}
}

func TestStreamStartStopRoundTrip(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions", gin.H{"name": "s", "platform": "youtube"})
	body := decode(t, w)
	var sess domain.Session
	if err := json.Unmarshal(body["session"], &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	w = doJSON(t, r, http.MethodPost, "/api/streams/start", gin.H{
		"session_id":    string(sess.ID),
		"input_source":  "camera:0",
		"ingestion_url": "rtmp://ingest.example/live",
		"stream_key":    "key123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("start: status %d body %s", w.Code, w.Body.String())
	}
	startBody := decode(t, w)
	var streamID string
	if err := json.Unmarshal(startBody["stream_id"], &streamID); err != nil {
		t.Fatalf("decode stream id: %v", err)
	}
	var audio domain.AudioSettings
	if err := json.Unmarshal(startBody["audio_settings"], &audio); err != nil {
		t.Fatalf("decode audio settings: %v", err)
	}
	if audio.Bitrate != "128k" || audio.PrimaryGain != 1.0 {
		t.Errorf("defaulted audio settings = %+v", audio)
	}

	// Second start for the same session conflicts.
	w = doJSON(t, r, http.MethodPost, "/api/streams/start", gin.H{
		"session_id":    string(sess.ID),
		"input_source":  "camera:0",
		"ingestion_url": "rtmp://ingest.example/live",
		"stream_key":    "key123",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("second start: status %d, want 409", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/streams/"+streamID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("info: status %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/streams/"+streamID+"/stop", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stop: status %d body %s", w.Code, w.Body.String())
	}

	// Idempotent stop: the second call finds nothing.
	w = doJSON(t, r, http.MethodPost, "/api/streams/"+streamID+"/stop", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second stop: status %d, want 404", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/streams/"+streamID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("info after stop: status %d, want 404", w.Code)
	}
}

func TestStartWithoutEndpointIs400(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions", gin.H{"name": "s", "platform": "youtube"})
	body := decode(t, w)
	var sess domain.Session
	if err := json.Unmarshal(body["session"], &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	w = doJSON(t, r, http.MethodPost, "/api/streams/start", gin.H{
		"session_id":   string(sess.ID),
		"input_source": "camera:0",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateStreamAudioEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions", gin.H{"name": "s", "platform": "youtube"})
	var sess domain.Session
	if err := json.Unmarshal(decode(t, w)["session"], &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	w = doJSON(t, r, http.MethodPost, "/api/streams/start", gin.H{
		"session_id":    string(sess.ID),
		"input_source":  "camera:0",
		"ingestion_url": "rtmp://ingest.example/live",
		"stream_key":    "k",
	})
	var streamID string
	if err := json.Unmarshal(decode(t, w)["stream_id"], &streamID); err != nil {
		t.Fatalf("decode stream id: %v", err)
	}

	w = doJSON(t, r, http.MethodPatch, "/api/streams/"+streamID+"/audio", gin.H{
		"secondary_muted": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("audio patch: status %d body %s", w.Code, w.Body.String())
	}
	var settings domain.AudioSettings
	if err := json.Unmarshal(decode(t, w)["audio_settings"], &settings); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if !settings.SecondaryMuted {
		t.Errorf("secondary mute not applied")
	}
	if settings.PrimaryMuted || settings.PrimaryGain != 1.0 || settings.SecondaryGain != 1.0 {
		t.Errorf("untouched fields changed: %+v", settings)
	}

	w = doJSON(t, r, http.MethodPatch, "/api/streams/unknown/audio", gin.H{"primary_gain": 0.5})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown stream audio: status %d, want 404", w.Code)
	}
}

func TestSceneEndpointAppends(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions", gin.H{"name": "s", "platform": "youtube"})
	var sess domain.Session
	if err := json.Unmarshal(decode(t, w)["session"], &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	var sceneIDs []domain.SceneID
	for _, name := range []string{"intro", "main"} {
		w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/sessions/%s/scenes", sess.ID), gin.H{
			"name":    name,
			"layout":  "fullscreen",
			"sources": []string{"camera:0"},
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("add scene: status %d", w.Code)
		}
		var scene domain.Scene
		if err := json.Unmarshal(decode(t, w)["scene"], &scene); err != nil {
			t.Fatalf("decode scene: %v", err)
		}
		sceneIDs = append(sceneIDs, scene.ID)
	}
	if sceneIDs[0] == sceneIDs[1] {
		t.Errorf("scene ids collide")
	}

	w = doJSON(t, r, http.MethodGet, "/api/sessions/"+string(sess.ID), nil)
	var got domain.Session
	if err := json.Unmarshal(decode(t, w)["session"], &got); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if len(got.Scenes) != 2 || got.Scenes[0].Name != "intro" || got.Scenes[1].Name != "main" {
		t.Errorf("scenes = %+v", got.Scenes)
	}
}

func TestListDevicesIsStatic(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/devices", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var devices []domain.Device
	if err := json.Unmarshal(decode(t, w)["devices"], &devices); err != nil {
		t.Fatalf("decode devices: %v", err)
	}
	kinds := map[domain.DeviceKind]bool{}
	for _, d := range devices {
		kinds[d.Kind] = true
	}
	for _, want := range []domain.DeviceKind{domain.DeviceCamera, domain.DeviceMicrophone, domain.DeviceScreen} {
		if !kinds[want] {
			t.Errorf("device catalog missing kind %s", want)
		}
	}
}

func TestStoreCredentialRequiresToken(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/auth/credential", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty token: status %d, want 400", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, "/api/auth/credential", gin.H{"access_token": "tok"})
	if w.Code != http.StatusOK {
		t.Errorf("store credential: status %d body %s", w.Code, w.Body.String())
	}
}
