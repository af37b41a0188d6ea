package session

import "sync"

// State is the externally visible status of the bridge, mirrored to the
// status feed and MQTT.
type State int

const (
	StateIdle State = iota
	StateListening
	StateThinking
	StateSpeaking
	StateInterrupted
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	case StateInterrupted:
		return "interrupted"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// StateListener is called after every transition.
type StateListener func(old, new State)

// stateMachine serializes state changes and fans them out to listeners.
type stateMachine struct {
	mu        sync.RWMutex
	current   State
	listeners []StateListener
}

func newStateMachine() *stateMachine {
	return &stateMachine{current: StateIdle}
}

func (m *stateMachine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *stateMachine) Set(s State) {
	m.mu.Lock()
	old := m.current
	if old == s {
		m.mu.Unlock()
		return
	}
	m.current = s
	listeners := m.listeners
	m.mu.Unlock()

	for _, l := range listeners {
		l(old, s)
	}
}

func (m *stateMachine) AddListener(l StateListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}
