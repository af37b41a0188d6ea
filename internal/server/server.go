// Package server exposes the bridge over HTTP: a small JSON API for the
// desktop panel and a WebSocket feed mirroring the session's event stream.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"emobridge/internal/config"
	"emobridge/internal/persona"
	"emobridge/internal/session"
)

// Server holds the API state. Settings saves go through the apply callback
// so the daemon can rebuild whatever the new values touch.
type Server struct {
	sess    *session.Session
	hub     *Hub
	cfgPath string
	apply   func(*config.Config) error
	started time.Time

	mu  sync.Mutex
	cfg *config.Config
}

func New(sess *session.Session, cfg *config.Config, cfgPath string, apply func(*config.Config) error) *Server {
	s := &Server{
		sess:    sess,
		hub:     NewHub(),
		cfg:     cfg,
		cfgPath: cfgPath,
		apply:   apply,
		started: time.Now(),
	}

	go s.hub.Run()
	sess.Subscribe(s.hub.Broadcast)

	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/status", s.getStatus)
	mux.HandleFunc("GET /api/v1/personas", s.getPersonas)
	mux.HandleFunc("GET /api/v1/settings", s.getSettings)
	mux.HandleFunc("PUT /api/v1/settings", s.putSettings)
	mux.HandleFunc("POST /api/v1/session/start", s.postStart)
	mux.HandleFunc("POST /api/v1/session/stop", s.postStop)
	mux.HandleFunc("POST /api/v1/session/interrupt", s.postInterrupt)
	mux.HandleFunc("GET /ws", s.hub.HandleWS)

	return withLogging(mux)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			if err := recover(); err != nil {
				slog.Error("http panic", "err", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
		slog.Debug("http", "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}

type statusResponse struct {
	Running bool   `json:"running"`
	State   string `json:"state"`
	Persona string `json:"persona"`
	Uptime  string `json:"uptime"`
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Running: s.sess.Running(),
		State:   s.sess.State().String(),
		Persona: s.sess.Persona(),
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) getPersonas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"personas": persona.Names(),
		"active":   s.sess.Persona(),
	})
}

// settingsView is the editable subset of the config. Secrets stay out of
// GET responses; a PUT with an empty key keeps the stored one.
type settingsView struct {
	Provider      string  `json:"provider"`
	Model         string  `json:"model"`
	Persona       string  `json:"persona"`
	ReplyLanguage string  `json:"reply_language"`
	VoiceRate     int     `json:"voice_rate"`
	VoiceVolume   float64 `json:"voice_volume"`
	EnableMQTT    bool    `json:"enable_mqtt"`
	MQTTBroker    string  `json:"mqtt_broker"`
	MQTTPort      int     `json:"mqtt_port"`
	MQTTTopic     string  `json:"mqtt_topic"`

	GeminiAPIKey string `json:"gemini_api_key,omitempty"`
	OpenAIAPIKey string `json:"openai_api_key,omitempty"`
}

func viewOf(c *config.Config) settingsView {
	return settingsView{
		Provider:      c.Provider,
		Model:         c.Model,
		Persona:       c.Persona,
		ReplyLanguage: c.ReplyLanguage,
		VoiceRate:     c.VoiceRate,
		VoiceVolume:   c.VoiceVolume,
		EnableMQTT:    c.EnableMQTT,
		MQTTBroker:    c.MQTTBroker,
		MQTTPort:      c.MQTTPort,
		MQTTTopic:     c.MQTTTopic,
	}
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	view := viewOf(s.cfg)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	next := *s.cfg
	s.mu.Unlock()

	view := viewOf(&next)
	if err := json.NewDecoder(r.Body).Decode(&view); err != nil {
		writeError(w, http.StatusBadRequest, "bad settings: "+err.Error())
		return
	}

	next.Provider = view.Provider
	next.Model = view.Model
	next.Persona = view.Persona
	next.ReplyLanguage = view.ReplyLanguage
	next.VoiceRate = view.VoiceRate
	next.VoiceVolume = view.VoiceVolume
	next.EnableMQTT = view.EnableMQTT
	next.MQTTBroker = view.MQTTBroker
	next.MQTTPort = view.MQTTPort
	next.MQTTTopic = view.MQTTTopic
	if view.GeminiAPIKey != "" {
		next.GeminiAPIKey = view.GeminiAPIKey
	}
	if view.OpenAIAPIKey != "" {
		next.OpenAIAPIKey = view.OpenAIAPIKey
	}

	if next.Persona != "" && !persona.Known(next.Persona) {
		writeError(w, http.StatusBadRequest, "unknown persona: "+next.Persona)
		return
	}
	if err := next.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := next.Save(s.cfgPath); err != nil {
		writeError(w, http.StatusInternalServerError, "save settings: "+err.Error())
		return
	}

	if s.apply != nil {
		if err := s.apply(&next); err != nil {
			writeError(w, http.StatusInternalServerError, "apply settings: "+err.Error())
			return
		}
	}

	s.mu.Lock()
	s.cfg = &next
	s.mu.Unlock()

	slog.Info("settings saved", "path", s.cfgPath)
	writeJSON(w, http.StatusOK, viewOf(&next))
}

func (s *Server) postStart(w http.ResponseWriter, r *http.Request) {
	s.sess.Start()
	writeJSON(w, http.StatusOK, map[string]bool{"running": true})
}

func (s *Server) postStop(w http.ResponseWriter, r *http.Request) {
	s.sess.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"running": false})
}

func (s *Server) postInterrupt(w http.ResponseWriter, r *http.Request) {
	s.sess.Interrupt()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
