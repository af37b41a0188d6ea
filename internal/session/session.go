package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"emobridge/internal/chat"
	"emobridge/internal/persona"
)

// Recorder captures one utterance of mono 16 kHz PCM.
type Recorder interface {
	Record(ctx context.Context) ([]float32, error)
}

// Transcriber turns captured PCM into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

// Speaker voices a reply with the given engine voice.
type Speaker interface {
	SpeakAs(ctx context.Context, voice, text string) error
}

// Publisher mirrors conversation events to an external bus. May be nil.
type Publisher interface {
	PublishTranscript(text string)
	PublishReply(text string)
	PublishState(state string)
}

// Chime plays the listening acknowledgment sound. May be nil.
type Chime interface {
	Play() error
}

// Event is pushed to subscribers of the status feed.
type Event struct {
	Kind string `json:"kind"` // "state", "transcript", "reply", "persona", "error"
	Text string `json:"text"`
}

// Options are the tunables a settings save can change at runtime.
type Options struct {
	Persona       string
	ReplyLanguage string
	TurnTimeout   time.Duration // per chat completion, 0 = 60s
}

// Session runs the voice loop: record, transcribe, complete, speak.
// One conversation turn is in flight at any time.
type Session struct {
	rec     Recorder
	stt     Transcriber
	speaker Speaker
	pub     Publisher
	chime   Chime

	states *stateMachine

	mu        sync.Mutex
	completer chat.Completer
	persona   persona.Persona
	language  string
	timeout   time.Duration
	netErrors int

	running   bool
	cancel    context.CancelFunc
	speakStop context.CancelFunc
	done      chan struct{}

	eventMu   sync.Mutex
	listeners []func(Event)
}

func New(rec Recorder, stt Transcriber, speaker Speaker, completer chat.Completer, opt Options) *Session {
	if opt.TurnTimeout == 0 {
		opt.TurnTimeout = 60 * time.Second
	}

	s := &Session{
		rec:       rec,
		stt:       stt,
		speaker:   speaker,
		completer: completer,
		persona:   persona.Get(opt.Persona),
		language:  opt.ReplyLanguage,
		timeout:   opt.TurnTimeout,
		states:    newStateMachine(),
	}

	s.states.AddListener(func(_, newState State) {
		s.emit(Event{Kind: "state", Text: newState.String()})
		if p := s.publisher(); p != nil {
			p.PublishState(newState.String())
		}
	})

	return s
}

// SetPublisher wires an MQTT publisher; nil detaches it.
func (s *Session) SetPublisher(p Publisher) {
	s.mu.Lock()
	s.pub = p
	s.mu.Unlock()
}

// SetChime wires the acknowledgment chime; nil disables it.
func (s *Session) SetChime(c Chime) {
	s.mu.Lock()
	s.chime = c
	s.mu.Unlock()
}

func (s *Session) publisher() Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pub
}

// Subscribe registers a listener for session events.
func (s *Session) Subscribe(fn func(Event)) {
	s.eventMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.eventMu.Unlock()
}

func (s *Session) emit(ev Event) {
	s.eventMu.Lock()
	listeners := make([]func(Event), len(s.listeners))
	copy(listeners, s.listeners)
	s.eventMu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// State returns the current session state.
func (s *Session) State() State { return s.states.Current() }

// Running reports whether the voice loop is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Persona returns the active persona name.
func (s *Session) Persona() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persona.Name
}

// SetPersona switches the active persona. Unknown names are rejected.
func (s *Session) SetPersona(name string) error {
	if !persona.Known(name) {
		return errors.New("unknown persona: " + name)
	}

	s.mu.Lock()
	s.persona = persona.Get(name)
	name = s.persona.Name
	s.mu.Unlock()

	s.emit(Event{Kind: "persona", Text: name})
	return nil
}

// Update applies a settings save to the running session. A nil completer
// keeps the current one.
func (s *Session) Update(completer chat.Completer, opt Options) {
	s.mu.Lock()
	if completer != nil {
		s.completer = completer
	}
	if opt.ReplyLanguage != "" {
		s.language = opt.ReplyLanguage
	}
	if opt.TurnTimeout > 0 {
		s.timeout = opt.TurnTimeout
	}
	if opt.Persona != "" && persona.Known(opt.Persona) {
		s.persona = persona.Get(opt.Persona)
	}
	s.mu.Unlock()
}

// Start launches the voice loop. Starting a running session is a no-op.
func (s *Session) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		s.loop(ctx)
		cancel()
	}()
}

// Stop interrupts any playback, ends the loop and says goodbye.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	s.Interrupt()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		slog.Warn("voice loop did not stop in time")
	}

	// best-effort farewell; a conversational quit ends the loop silently,
	// only an explicit stop says goodbye
	ctx, cancelBye := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelBye()
	s.mu.Lock()
	voice := s.persona.Voice
	s.mu.Unlock()
	if err := s.speaker.SpeakAs(ctx, voice, "Goodbye!"); err != nil {
		slog.Error("goodbye playback failed", "err", err)
	}
}

// Interrupt cuts off the assistant mid-sentence without ending the session.
func (s *Session) Interrupt() {
	s.mu.Lock()
	stop := s.speakStop
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (s *Session) loop(ctx context.Context) {
	defer func() {
		s.states.Set(StateIdle)
		s.mu.Lock()
		s.running = false
		close(s.done)
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if quit := s.turn(ctx); quit {
			return
		}
	}
}

// turn runs one conversation turn. It returns true when the session should
// end (spoken quit command or QUIT reply).
func (s *Session) turn(ctx context.Context) bool {
	s.states.Set(StateListening)

	s.mu.Lock()
	chime := s.chime
	s.mu.Unlock()
	if chime != nil {
		if err := chime.Play(); err != nil {
			slog.Debug("chime failed", "err", err)
		}
	}

	pcm, err := s.rec.Record(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		slog.Error("recording failed", "err", err)
		s.states.Set(StateError)
		sleepCtx(ctx, time.Second)
		return false
	}
	if len(pcm) == 0 {
		return false
	}

	s.states.Set(StateThinking)

	sttCtx, cancel := context.WithTimeout(ctx, s.timeout)
	text, err := s.stt.Transcribe(sttCtx, pcm)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		slog.Warn("could not understand audio", "err", err)
		return false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	slog.Info("user said", "text", text)
	s.emit(Event{Kind: "transcript", Text: text})
	if p := s.publisher(); p != nil {
		p.PublishTranscript(text)
	}

	if persona.IsQuitCommand(text) {
		return true
	}

	if name, rest, ok := persona.DetectSwitch(text); ok {
		if err := s.SetPersona(name); err == nil {
			slog.Info("persona switched", "persona", name)
		}
		if rest == "" {
			return false
		}
		text = rest
	}

	s.mu.Lock()
	p := s.persona
	lang := s.language
	completer := s.completer
	timeout := s.timeout
	s.mu.Unlock()

	chatCtx, cancel := context.WithTimeout(ctx, timeout)
	reply, err := completer.Complete(chatCtx, p.SystemPrompt(lang), text)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		s.mu.Lock()
		s.netErrors++
		n := s.netErrors
		s.mu.Unlock()
		slog.Error("chat completion failed", "err", err, "consecutive", n)
		s.states.Set(StateError)
		s.emit(Event{Kind: "error", Text: "network connection lost"})
		sleepCtx(ctx, backoff(n))
		return false
	}

	s.mu.Lock()
	s.netErrors = 0
	s.mu.Unlock()

	if reply == "QUIT" {
		return true
	}

	slog.Info("assistant reply", "persona", p.Name, "text", reply)
	s.emit(Event{Kind: "reply", Text: reply})

	s.speak(ctx, p.Voice, reply)

	if p := s.publisher(); p != nil {
		p.PublishReply(reply)
	}

	sleepCtx(ctx, 500*time.Millisecond)
	return false
}

// speak voices the reply while a barge-in watcher listens for interrupt
// phrases ("stop", "quiet", ...) and cuts playback off.
func (s *Session) speak(ctx context.Context, voice, text string) {
	speakCtx, stop := context.WithCancel(ctx)
	defer stop()

	// publish the cancel hook before the state flips so an Interrupt racing
	// the transition still lands
	s.mu.Lock()
	s.speakStop = stop
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.speakStop = nil
		s.mu.Unlock()
	}()

	s.states.Set(StateSpeaking)

	go s.watchForInterrupt(speakCtx, stop)

	err := s.speaker.SpeakAs(speakCtx, voice, text)
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		slog.Info("speech interrupted by user")
		s.states.Set(StateInterrupted)
		return
	}
	if err != nil && ctx.Err() == nil {
		slog.Error("tts failed", "err", err)
	}
}

func (s *Session) watchForInterrupt(ctx context.Context, stop context.CancelFunc) {
	for ctx.Err() == nil {
		pcm, err := s.rec.Record(ctx)
		if err != nil || len(pcm) == 0 {
			sleepCtx(ctx, 100*time.Millisecond)
			continue
		}

		text, err := s.stt.Transcribe(ctx, pcm)
		if err != nil {
			continue
		}

		if persona.IsInterruptCommand(text) {
			stop()
			return
		}
	}
}

// backoff grows with consecutive network errors, capped at 30s.
func backoff(n int) time.Duration {
	d := time.Second * time.Duration(1<<uint(min(n-1, 5)))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
