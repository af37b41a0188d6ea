package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"emobridge/internal/config"
	"emobridge/internal/session"
)

type idleRecorder struct{}

func (idleRecorder) Record(ctx context.Context) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type nopTranscriber struct{}

func (nopTranscriber) Transcribe(context.Context, []float32) (string, error) { return "", nil }

type nopSpeaker struct{}

func (nopSpeaker) SpeakAs(context.Context, string, string) error { return nil }

type nopCompleter struct{}

func (nopCompleter) Complete(context.Context, string, string) (string, error) { return "", nil }
func (nopCompleter) Close() error                                             { return nil }

func newTestServer(t *testing.T, apply func(*config.Config) error) (*Server, *session.Session, string) {
	t.Helper()

	sess := session.New(idleRecorder{}, nopTranscriber{}, nopSpeaker{}, nopCompleter{},
		session.Options{Persona: "EMO", ReplyLanguage: "pt-PT"})

	cfg := config.Default()
	cfg.GeminiAPIKey = "secret-key"
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	return New(sess, cfg, cfgPath, apply), sess, cfgPath
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Running {
		t.Error("fresh session should not be running")
	}
	if got.State != "idle" || got.Persona != "EMO" {
		t.Errorf("status = %+v", got)
	}
}

func TestPersonasEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/personas")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got struct {
		Personas []string `json:"personas"`
		Active   string   `json:"active"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Personas) < 2 || got.Active != "EMO" {
		t.Errorf("personas = %+v", got)
	}
}

func TestGetSettingsRedactsSecrets(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/settings")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if strings.Contains(buf.String(), "secret-key") {
		t.Errorf("API key leaked: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"provider":"gemini"`) {
		t.Errorf("body = %s", buf.String())
	}
}

func TestPutSettings(t *testing.T) {
	t.Run("valid save persists and applies", func(t *testing.T) {
		var applied *config.Config
		srv, _, cfgPath := newTestServer(t, func(c *config.Config) error {
			applied = c
			return nil
		})
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		body := `{"provider":"gemini","model":"gemini-1.5-flash","persona":"EMUSINIO",` +
			`"reply_language":"en-US","voice_rate":200,"voice_volume":0.8,` +
			`"enable_mqtt":false,"mqtt_broker":"localhost","mqtt_port":1883,"mqtt_topic":"emo/bridge"}`

		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/settings", strings.NewReader(body))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}

		if applied == nil || applied.Persona != "EMUSINIO" || applied.VoiceRate != 200 {
			t.Errorf("applied = %+v", applied)
		}

		data, err := os.ReadFile(cfgPath)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "persona: EMUSINIO") {
			t.Errorf("config file = %s", data)
		}
		// the stored key survives an empty PUT field
		if !strings.Contains(string(data), "secret-key") {
			t.Error("stored API key was dropped")
		}
	})

	t.Run("unknown persona is rejected", func(t *testing.T) {
		srv, _, cfgPath := newTestServer(t, nil)
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		body := `{"provider":"gemini","persona":"HAL9000","voice_rate":180,"voice_volume":1}`
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/settings", strings.NewReader(body))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d", resp.StatusCode)
		}
		if _, err := os.Stat(cfgPath); !os.IsNotExist(err) {
			t.Error("rejected settings must not be written")
		}
	})

	t.Run("invalid provider is rejected", func(t *testing.T) {
		srv, _, _ := newTestServer(t, nil)
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		body := `{"provider":"clippy","persona":"EMO","voice_rate":180,"voice_volume":1}`
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/settings", strings.NewReader(body))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})
}

func TestSessionEndpoints(t *testing.T) {
	srv, sess, _ := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/session/start", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if !sess.Running() {
		t.Error("session should be running after start")
	}

	resp, err = http.Post(ts.URL+"/api/v1/session/stop", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if sess.Running() {
		t.Error("session should be stopped after stop")
	}
}

func TestWebSocketFeed(t *testing.T) {
	srv, sess, _ := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// give the hub a beat to register the client
	time.Sleep(50 * time.Millisecond)

	if err := sess.SetPersona("EMUSINIO"); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}

	var ev session.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Kind != "persona" || ev.Text != "EMUSINIO" {
		t.Errorf("event = %+v", ev)
	}
}
