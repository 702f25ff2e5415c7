package chat

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/zhouzirui/research-desk/backend/internal/model/chat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTurnInProgress  = errors.New("a turn is already in progress for this session")
)

type sessionState struct {
	session    chat.Session
	transcript *chat.Transcript
	busy       bool
}

// Service owns the transcripts of every live session. Nothing outlives the process.
type Service struct {
	mu          sync.RWMutex
	sessions    map[string]*sessionState
	greeting    string
	idleTimeout time.Duration
	now         func() time.Time
}

// NewService bootstraps the in-memory session store. idleTimeout <= 0 disables pruning.
func NewService(greeting string, idleTimeout time.Duration) *Service {
	return &Service{
		sessions:    make(map[string]*sessionState),
		greeting:    greeting,
		idleTimeout: idleTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession provisions an anonymous session whose transcript holds only the greeting.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	now := s.now()
	session := chat.Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		LastActive: now,
	}

	s.mu.Lock()
	s.pruneIdleLocked(now)
	s.sessions[session.ID] = &sessionState{
		session:    session,
		transcript: chat.NewTranscript(s.greeting),
	}
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return state.session, nil
}

// Append adds a message to the end of the session transcript.
func (s *Service) Append(_ context.Context, sessionID string, message chat.Message) error {
	if !message.Role.Valid() {
		return errors.Wrapf(chat.ErrInvalidRole, "role %q", message.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}

	if message.CreatedAt.IsZero() {
		message.CreatedAt = s.now()
	}
	state.transcript.Append(message)
	state.session.LastActive = message.CreatedAt
	return nil
}

// Transcript returns a copy of the stored messages for the session.
func (s *Service) Transcript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return state.transcript.All(), nil
}

// DeleteSession ends a session and discards its transcript.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// BeginTurn marks the session busy until release is called, so turns never overlap.
func (s *Service) BeginTurn(sessionID string) (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if state.busy {
		return nil, ErrTurnInProgress
	}
	state.busy = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			state.busy = false
			state.session.LastActive = s.now()
			s.mu.Unlock()
		})
	}, nil
}

// Len returns the number of live sessions.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Service) pruneIdleLocked(now time.Time) {
	if s.idleTimeout <= 0 {
		return
	}
	for id, state := range s.sessions {
		if state.busy {
			continue
		}
		if now.Sub(state.session.LastActive) > s.idleTimeout {
			delete(s.sessions, id)
		}
	}
}
