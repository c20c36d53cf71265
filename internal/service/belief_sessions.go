package service

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tangoverse/mneme/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("belief session not found")
	ErrSessionExists   = errors.New("belief session already exists")
)

const (
	defaultSessionTTL           = 24 * time.Hour
	defaultSessionSweepInterval = 10 * time.Minute
)

type beliefSession struct {
	engine     *BeliefEngine
	lastAccess time.Time
}

// BeliefSessions owns one BeliefEngine per session and expires idle sessions
// in a background worker.
type BeliefSessions struct {
	mu       sync.Mutex
	sessions map[string]*beliefSession
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewBeliefSessions creates a session registry that expires sessions idle for ttl.
func NewBeliefSessions(ttl time.Duration, logger *zap.Logger) *BeliefSessions {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BeliefSessions{
		sessions: make(map[string]*beliefSession),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
		interval: defaultSessionSweepInterval,
		stopCh:   make(chan struct{}),
	}
}

// SetInterval sets the sweep interval. Call before Start.
func (s *BeliefSessions) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// Create starts a session. An empty id gets a generated one.
func (s *BeliefSessions) Create(id string, overrides *domain.PreferenceOverrides) (string, *BeliefEngine, error) {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; ok {
		return "", nil, ErrSessionExists
	}

	engine := NewBeliefEngine(overrides, s.logger.With(zap.String("session_id", id)))
	s.sessions[id] = &beliefSession{engine: engine, lastAccess: s.now()}

	s.logger.Info("belief session created", zap.String("session_id", id))
	return id, engine, nil
}

// Get returns the session's engine and marks the session as used.
func (s *BeliefSessions) Get(id string) (*BeliefEngine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.lastAccess = s.now()
	return sess.engine, nil
}

// Delete removes a session and its beliefs.
func (s *BeliefSessions) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *BeliefSessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ExpireIdle drops sessions idle for longer than the TTL and returns how many were removed.
func (s *BeliefSessions) ExpireIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastAccess.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Start runs the idle-session sweeper in a background goroutine.
func (s *BeliefSessions) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("belief session sweeper started",
			zap.Duration("interval", s.interval),
			zap.Duration("ttl", s.ttl))

		for {
			select {
			case <-ticker.C:
				if n := s.ExpireIdle(); n > 0 {
					s.logger.Info("expired idle belief sessions", zap.Int("count", n))
				}
			case <-s.stopCh:
				s.logger.Info("belief session sweeper stopped")
				return
			}
		}
	}()
}

// Stop halts the sweeper and waits for it to exit.
func (s *BeliefSessions) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}
