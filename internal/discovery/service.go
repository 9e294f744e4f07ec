package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kdimtricp/moviegpt/internal/ai"
	"github.com/kdimtricp/moviegpt/internal/models"
	"github.com/kdimtricp/moviegpt/internal/search"
)

type TitleExpander interface {
	Expand(ctx context.Context, query string) (ai.Expansion, error)
}

type MovieResolver interface {
	Resolve(ctx context.Context, titles []string) []search.Movie
}

type HistoryRecorder interface {
	Insert(ctx context.Context, record *models.SearchRecord) error
}

type Config struct {
	SessionTTL time.Duration
}

type session struct {
	mu       sync.Mutex
	state    State
	gen      uint64
	cancel   context.CancelFunc
	lastSeen time.Time
}

// Service runs search cycles and owns the per-session UI state. State is only
// written from Search.
type Service struct {
	expander   TitleExpander
	resolver   MovieResolver
	history    HistoryRecorder
	sessionTTL time.Duration
	now        func() time.Time
	sessions   map[string]*session
	sessionsMu sync.RWMutex
	// lastSweep is guarded by sessionsMu.
	lastSweep time.Time
}

// NewService wires the pipeline. history may be nil.
func NewService(expander TitleExpander, resolver MovieResolver, history HistoryRecorder, config Config) *Service {
	if config.SessionTTL == 0 {
		config.SessionTTL = 30 * time.Minute
	}

	return &Service{
		expander:   expander,
		resolver:   resolver,
		history:    history,
		sessionTTL: config.SessionTTL,
		now:        time.Now,
		sessions:   make(map[string]*session),
	}
}

// NewSession registers an empty idle session and returns its id.
func (s *Service) NewSession() string {
	return s.sessionFor("").state.SessionID
}

func (s *Service) GetState(sessionID string) (State, bool) {
	s.sessionsMu.RLock()
	sess, exists := s.sessions[sessionID]
	s.sessionsMu.RUnlock()

	if !exists {
		return State{}, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastSeen = s.now()
	return sess.state.clone(), true
}

// Search runs one expand → resolve cycle for the session and returns the
// resulting state. A blank query is a no-op. Starting a search cancels the
// session's in-flight cycle, whose results are then dropped. If ctx ends
// before the cycle completes, the cycle counts as failed and the previous
// movies stay in place.
func (s *Service) Search(ctx context.Context, sessionID, query string) State {
	if strings.TrimSpace(query) == "" {
		if state, ok := s.GetState(sessionID); ok {
			return state
		}
		return State{SessionID: sessionID, Movies: []search.Movie{}}
	}

	sess := s.sessionFor(sessionID)

	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess.mu.Lock()
	if sess.cancel != nil {
		log.Printf("[SEARCH] Superseding cycle %s in session %s", sess.state.CycleID, sess.state.SessionID)
		sess.cancel()
	}
	sess.gen++
	gen := sess.gen
	sess.cancel = cancel
	sess.state.CycleID = uuid.New().String()
	sess.state.Query = query
	sess.state.Loading = true
	sess.state.Error = ""
	sess.state.Alert = ""
	sess.state.UpdatedAt = s.now()
	cycleID := sess.state.CycleID
	sess.mu.Unlock()

	log.Printf("[SEARCH] Starting cycle %s for %q", cycleID, query)
	res := s.runCycle(cycleCtx, query)

	sess.mu.Lock()
	if sess.gen != gen {
		snapshot := sess.state.clone()
		sess.mu.Unlock()
		log.Printf("[SEARCH] Dropping results of superseded cycle %s", cycleID)
		return snapshot
	}

	sess.cancel = nil
	st := &sess.state
	st.Loading = false
	st.Outcome = res.outcome
	switch res.outcome {
	case models.OutcomeRefused:
		st.Error = res.message
		st.Movies = []search.Movie{}
	case models.OutcomeFailed:
		st.Alert = res.message
	default:
		st.Movies = res.movies
	}
	st.UpdatedAt = s.now()
	snapshot := st.clone()
	sess.mu.Unlock()

	log.Printf("[SEARCH] Cycle %s finished: %s, %d titles, %d movies in %v",
		cycleID, res.outcome, len(res.titles), len(res.movies), res.elapsed)

	s.record(ctx, query, res)
	return snapshot
}

func (s *Service) runCycle(ctx context.Context, query string) cycleResult {
	start := s.now()
	res := cycleResult{}

	expansion, err := s.expander.Expand(ctx, query)
	switch {
	case errors.Is(err, ai.ErrMalformedReply):
		log.Printf("[SEARCH] Continuing with no titles: %v", err)
	case err != nil:
		res.outcome = models.OutcomeFailed
		res.message = fmt.Sprintf("Search failed: %v", err)
		res.elapsed = s.now().Sub(start)
		return res
	case expansion.Refused():
		res.outcome = models.OutcomeRefused
		res.message = expansion.Refusal
		res.elapsed = s.now().Sub(start)
		return res
	default:
		res.titles = expansion.Titles
	}

	res.movies = s.resolver.Resolve(ctx, res.titles)
	if err := ctx.Err(); err != nil {
		res.outcome = models.OutcomeFailed
		res.message = fmt.Sprintf("Search cancelled: %v", err)
		res.elapsed = s.now().Sub(start)
		return res
	}
	res.outcome = models.OutcomeSuccess
	res.elapsed = s.now().Sub(start)
	return res
}

func (s *Service) record(ctx context.Context, query string, res cycleResult) {
	if s.history == nil {
		return
	}

	rec := models.NewSearchRecord(query, res.outcome, len(res.titles), len(res.movies), res.message, res.elapsed)
	if err := s.history.Insert(context.WithoutCancel(ctx), rec); err != nil {
		log.Printf("[SEARCH] Failed to record search history: %v", err)
	}
}

// sessionFor returns the session for id, creating it when unknown. An empty
// id always creates a new session.
func (s *Service) sessionFor(id string) *session {
	now := s.now()

	if id != "" {
		s.sessionsMu.RLock()
		sess, exists := s.sessions[id]
		s.sessionsMu.RUnlock()
		if exists {
			sess.mu.Lock()
			sess.lastSeen = now
			sess.mu.Unlock()
			return sess
		}
	} else {
		id = uuid.New().String()
	}

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	if sess, exists := s.sessions[id]; exists {
		return sess
	}

	if now.Sub(s.lastSweep) >= s.sessionTTL/2 {
		s.evictIdleLocked(now)
		s.lastSweep = now
	}

	sess := &session{
		state: State{
			SessionID: id,
			Movies:    []search.Movie{},
			UpdatedAt: now,
		},
		lastSeen: now,
	}
	s.sessions[id] = sess
	return sess
}

func (s *Service) evictIdleLocked(now time.Time) {
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := !sess.state.Loading && now.Sub(sess.lastSeen) > s.sessionTTL
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
		}
	}
}

func (s *Service) SessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}
