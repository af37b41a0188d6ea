package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	log "log/slog"

	"emobridge/internal/audio"
	"emobridge/internal/chat"
	"emobridge/internal/config"
	"emobridge/internal/ipc"
	"emobridge/internal/mqtt"
	"emobridge/internal/notify"
	"emobridge/internal/server"
	"emobridge/internal/session"
	"emobridge/internal/tts"
	"emobridge/pkg/audioconv"
	"emobridge/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	cfgPath := cli.StringP("config", "c", "config.yaml", "Config file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	sockPath := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Error("Failed to load config", "path", *cfgPath, "err", err)
		os.Exit(1)
	}

	log.Debug("Loaded config", "path", *cfgPath, "provider", cfg.Provider)

	completer, err := buildCompleter(cfg)
	if err != nil {
		log.Error("Failed to build chat client", "provider", cfg.Provider, "err", err)
		os.Exit(1)
	}

	rec := audio.NewRecorder()
	if err := rec.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer rec.Close()

	log.Debug("Loaded recorder")

	whisper, err := stt.NewTranscriber(cfg.WhisperModelPath)
	if err != nil {
		log.Error("Failed to init whisper", "model", cfg.WhisperModelPath, "err", err)
		os.Exit(1)
	}
	defer whisper.Close()

	log.Debug("Loaded whisper", "model", cfg.WhisperModelPath)

	transcriber := &sttAdapter{tr: whisper, language: cfg.SpeechLanguage}

	speaker := tts.NewSpeaker("", cfg.VoiceRate, cfg.VoiceVolume)
	if !speaker.Available() {
		log.Warn("No speech synthesizer found, replies will be silent")
	}

	var voice session.Speaker = speaker
	if cfg.DuckAudio {
		voice = &duckingSpeaker{
			speaker: speaker,
			ducker:  audio.NewDucker([]string{"emo-bridged", "say", "espeak"}, 20),
		}
		log.Debug("Audio ducking enabled")
	}

	sess := session.New(rec, transcriber, voice, completer, session.Options{
		Persona:       cfg.Persona,
		ReplyLanguage: cfg.ReplyLanguage,
	})
	sess.SetChime(notify.NewChime(cfg.ChimePath))

	d := &daemon{
		sess:        sess,
		speaker:     speaker,
		transcriber: transcriber,
		completer:   completer,
		cfgPath:     *cfgPath,
	}

	if cfg.EnableMQTT {
		d.connectMQTT(cfg)
	}

	srv := server.New(sess, cfg, *cfgPath, d.applySettings)
	httpSrv := &http.Server{Addr: cfg.Listen, Handler: srv.Handler()}
	go func() {
		log.Info("Status API listening", "addr", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Status API failed", "err", err)
		}
	}()

	ctl, err := ipc.Listen(*sockPath, d.handleControl)
	if err != nil {
		log.Error("Failed to open control socket", "path", *sockPath, "err", err)
		os.Exit(1)
	}
	defer ctl.Close()

	log.Info("Boot up - successful")

	sess.Start()
	d.started = time.Now()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("Shutting down")

	sess.Stop()
	d.closeMQTT()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
}

// daemon ties the long-lived pieces together so settings saves and control
// commands can swap them at runtime.
type daemon struct {
	sess        *session.Session
	speaker     *tts.Speaker
	transcriber *sttAdapter
	cfgPath     string
	started     time.Time

	mu        sync.Mutex
	completer chat.Completer
	pub       *mqtt.Publisher
}

func buildCompleter(cfg *config.Config) (chat.Completer, error) {
	if cfg.SocksProxy != "" {
		log.Debug("Routing chat traffic through proxy", "proxy", cfg.SocksProxy)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return chat.New(ctx, cfg.Provider, chat.Options{
		APIKey:     cfg.APIKey(),
		Model:      cfg.Model,
		SocksProxy: cfg.SocksProxy,
	})
}

// applySettings is called by the settings API after the new config has been
// validated and written to disk.
func (d *daemon) applySettings(cfg *config.Config) error {
	completer, err := buildCompleter(cfg)
	if err != nil {
		return err
	}

	d.mu.Lock()
	old := d.completer
	d.completer = completer
	d.mu.Unlock()
	if old != nil {
		old.Close()
	}

	d.sess.Update(completer, session.Options{
		Persona:       cfg.Persona,
		ReplyLanguage: cfg.ReplyLanguage,
	})

	d.speaker.Rate = cfg.VoiceRate
	d.speaker.Volume = cfg.VoiceVolume
	d.transcriber.setLanguage(cfg.SpeechLanguage)

	d.closeMQTT()
	if cfg.EnableMQTT {
		d.connectMQTT(cfg)
	}

	log.Info("Settings applied", "provider", cfg.Provider, "persona", cfg.Persona)
	return nil
}

func (d *daemon) connectMQTT(cfg *config.Config) {
	pub, err := mqtt.Connect(mqtt.Config{
		Broker:   cfg.MQTTBroker,
		Port:     cfg.MQTTPort,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
		Topic:    cfg.MQTTTopic,
	})
	if err != nil {
		// the bridge works fine without the broker
		log.Warn("MQTT unavailable", "broker", cfg.MQTTBroker, "err", err)
		return
	}

	d.mu.Lock()
	d.pub = pub
	d.mu.Unlock()
	d.sess.SetPublisher(pub)
}

func (d *daemon) closeMQTT() {
	d.mu.Lock()
	pub := d.pub
	d.pub = nil
	d.mu.Unlock()

	if pub != nil {
		d.sess.SetPublisher(nil)
		pub.Close()
	}
}

func (d *daemon) handleControl(req ipc.Request) ipc.Response {
	switch req.Cmd {
	case "start":
		d.sess.Start()
		return ipc.Response{OK: true}

	case "stop":
		d.sess.Stop()
		return ipc.Response{OK: true}

	case "status":
		return ipc.Response{OK: true, Status: &ipc.Status{
			Running: d.sess.Running(),
			State:   d.sess.State().String(),
			Persona: d.sess.Persona(),
			Uptime:  time.Since(d.started).Round(time.Second).String(),
		}}

	case "persona":
		if err := d.sess.SetPersona(req.Arg); err != nil {
			return ipc.Response{Error: err.Error()}
		}
		return ipc.Response{OK: true}

	case "say":
		if req.Arg == "" {
			return ipc.Response{Error: "say needs text"}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.speaker.Speak(ctx, req.Arg); err != nil {
			return ipc.Response{Error: err.Error()}
		}
		return ipc.Response{OK: true}

	case "reload":
		cfg, err := config.Load(d.cfgPath)
		if err != nil {
			return ipc.Response{Error: err.Error()}
		}
		if err := d.applySettings(cfg); err != nil {
			return ipc.Response{Error: err.Error()}
		}
		return ipc.Response{OK: true}

	case "transcribe":
		if req.Arg == "" {
			return ipc.Response{Error: "transcribe needs an audio file path"}
		}
		text, err := d.transcribeFile(req.Arg)
		if err != nil {
			return ipc.Response{Error: err.Error()}
		}
		return ipc.Response{OK: true, Text: text}

	case "interrupt":
		d.sess.Interrupt()
		return ipc.Response{OK: true}

	default:
		log.Warn("Unknown control command", "cmd", req.Cmd)
		return ipc.Response{Error: "unknown command: " + req.Cmd}
	}
}

// transcribeFile runs an audio file (wav, mp3, ogg or opus) through the
// decoder and whisper, without touching the live session.
func (d *daemon) transcribeFile(path string) (string, error) {
	pcm, err := audioconv.DecodeFile(path, audioconv.Options{})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return d.transcriber.Transcribe(ctx, pcm)
}

// sttAdapter narrows the whisper transcriber to what the session needs and
// pins the speech language from the settings.
type sttAdapter struct {
	tr *stt.Transcriber

	mu       sync.Mutex
	language string
}

func (a *sttAdapter) setLanguage(lang string) {
	a.mu.Lock()
	a.language = lang
	a.mu.Unlock()
}

func (a *sttAdapter) Transcribe(ctx context.Context, pcm []float32) (string, error) {
	a.mu.Lock()
	lang := a.language
	a.mu.Unlock()

	res, err := a.tr.TranscribePCM(ctx, pcm, stt.Options{Language: lang})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// duckingSpeaker fades other playback streams down while the assistant
// talks and restores them afterwards.
type duckingSpeaker struct {
	speaker *tts.Speaker
	ducker  *audio.Ducker
}

func (d *duckingSpeaker) SpeakAs(ctx context.Context, voice, text string) error {
	if err := d.ducker.Duck(ctx, 0.3, 200*time.Millisecond); err != nil {
		log.Debug("Ducking failed", "err", err)
	}
	defer func() {
		// restore even when playback was interrupted
		restoreCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := d.ducker.Restore(restoreCtx, 300*time.Millisecond); err != nil {
			log.Debug("Restore failed", "err", err)
		}
	}()

	return d.speaker.SpeakAs(ctx, voice, text)
}
