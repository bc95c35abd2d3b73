package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"

	"github.com/joeblew999/plat-draw/internal/config"
	"github.com/joeblew999/plat-draw/internal/draw"
	"github.com/joeblew999/plat-draw/internal/geo"
	"github.com/joeblew999/plat-draw/internal/metrics"
	"github.com/joeblew999/plat-draw/internal/remote"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionLimit    = errors.New("session limit reached")
)

// Session is one browser map with its boundary controller.
type Session struct {
	ID      string
	Created time.Time
	Map     *remote.Map
	Draw    *draw.Controller

	mu      sync.Mutex
	lastErr string
}

// Info returns the wire form of the session.
func (s *Session) Info() SessionInfo {
	info := SessionInfo{
		ID:        s.ID,
		Created:   s.Created,
		State:     s.Draw.State().String(),
		Attached:  s.Map.Attached(),
		LastError: s.LastError(),
	}
	if b := s.Draw.Boundary(); b != nil {
		v := b.View()
		info.Boundary = &v
	}
	return info
}

// LastError is the most recent failure reported to the user, cleared by the
// next successful commit.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) setLastError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

// SessionOptions configures a SessionService. Zero values fall back to
// defaults.
type SessionOptions struct {
	Config   *config.Config
	Bus      *EventBus
	Observer draw.Observer
	Logger   *slog.Logger
	Clock    clock.Clock
	// Go runs controller host calls off the event loop; tests pass a
	// synchronous runner.
	Go func(func())
}

// SessionService creates and tracks drawing sessions.
type SessionService struct {
	opts     SessionOptions
	log      *slog.Logger
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewSessionService creates a new session service.
func NewSessionService(opts SessionOptions) *SessionService {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Bus == nil {
		opts.Bus = NewEventBus()
	}
	if opts.Observer == nil {
		opts.Observer = metrics.DrawObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SessionService{
		opts:     opts,
		log:      opts.Logger,
		sessions: make(map[string]*Session),
	}
}

// Bus returns the bus session events are published on.
func (s *SessionService) Bus() *EventBus { return s.opts.Bus }

// Create opens a session. initial, when non-nil, is rendered as soon as the
// browser reports marker support.
func (s *SessionService) Create(initial *geo.Boundary) (*Session, error) {
	s.mu.Lock()
	if len(s.sessions) >= s.opts.Config.Sessions.Max {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w (%d)", ErrSessionLimit, s.opts.Config.Sessions.Max)
	}

	id := uuid.NewString()
	log := s.log.With("session", id)
	sess := &Session{
		ID:      id,
		Created: time.Now().UTC(),
		Map:     remote.New(s.opts.Config.Sessions.Outbox, log),
	}

	opts := s.opts.Config.DrawOptions()
	opts.InitialBoundary = initial
	opts.Listener = s.listener(sess)
	opts.Observer = s.opts.Observer
	opts.Clock = s.opts.Clock
	opts.Logger = log
	opts.Go = s.opts.Go
	sess.Draw = draw.NewController(sess.Map, opts)

	s.sessions[id] = sess
	s.mu.Unlock()

	metrics.ActiveSessions.Inc()
	sess.Draw.Start()
	log.Info("session created", "initial_boundary", initial != nil)
	s.opts.Bus.Publish(Event{Resource: ResourceSessions, Action: "created", ID: id})
	return sess, nil
}

// listener publishes controller notifications for sess on the bus.
func (s *SessionService) listener(sess *Session) draw.Listener {
	publish := func(action, msg string) {
		s.opts.Bus.Publish(Event{Resource: ResourceSessions, Action: action, ID: sess.ID, Message: msg})
	}
	return draw.Listener{
		OnDrawStart: func() { publish("drawing", "") },
		OnBoundaryChange: func(has bool) {
			if has {
				sess.setLastError("")
				publish("active", "")
			} else {
				publish("cleared", "")
			}
		},
		OnCancel: func() { publish("cancelled", "") },
		OnError: func(err error) {
			msg := draw.ErrOverlayCreation.Error()
			if !errors.Is(err, draw.ErrOverlayCreation) {
				msg = err.Error()
			}
			sess.setLastError(msg)
			publish("error", msg)
		},
	}
}

// Get returns a session by ID.
func (s *SessionService) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// List returns all sessions, oldest first.
func (s *SessionService) List() []SessionInfo {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Created.Before(sessions[j].Created)
	})
	out := make([]SessionInfo, len(sessions))
	for i, sess := range sessions {
		out[i] = sess.Info()
	}
	return out
}

// Count returns the number of open sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// EnterDrawMode starts a drawing gesture on the session's map.
func (s *SessionService) EnterDrawMode(id string) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	sess.Draw.EnterDrawMode()
	return nil
}

// Close tears a session down, removing its overlays from the map.
func (s *SessionService) Close(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	s.closeSession(sess)
	return nil
}

// CloseAll closes every session.
func (s *SessionService) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		s.closeSession(sess)
	}
}

func (s *SessionService) closeSession(sess *Session) {
	sess.Draw.Close()
	sess.Map.Close()
	metrics.ActiveSessions.Dec()
	s.log.Info("session closed", "session", sess.ID)
	s.opts.Bus.Publish(Event{Resource: ResourceSessions, Action: "closed", ID: sess.ID})
}
