package setup

import (
	"sync"
	"time"

	"foraybot/internal/raid"
	"foraybot/pkg/logx"
)

// Session is one actor's in-progress configuration flow. Sessions live in
// process memory only and do not survive restarts.
type Session struct {
	ActorID string
	GuildID string
	// Amend marks a session editing an existing tenant rather than
	// creating one.
	Amend bool

	// Selected fixes the order of the per-category steps.
	Selected []raid.Category
	Channels map[raid.Category]string
	Hosts    map[raid.Category][]string

	// PendingChannel holds the candidate channel while a capability check
	// is unresolved, so a retry re-enters the same check.
	PendingChannel string

	State   State
	touched time.Time
}

// remaining returns the selected categories after c, in selection order.
func (s *Session) remaining(c raid.Category) []raid.Category {
	for i, sel := range s.Selected {
		if sel == c {
			return s.Selected[i+1:]
		}
	}
	return nil
}

// Sessions is the session store: one session per actor, with a TTL so an
// abandoned flow does not sit in memory forever.
type Sessions struct {
	mu      sync.Mutex
	byActor map[string]*Session
	ttl     time.Duration
	log     logx.Logger

	now func() time.Time
}

const defaultTTL = 30 * time.Minute

func NewSessions(ttl time.Duration, log logx.Logger) *Sessions {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Sessions{
		byActor: make(map[string]*Session),
		ttl:     ttl,
		log:     log,
		now:     time.Now,
	}
}

// Create starts a fresh session for the actor, replacing any existing one.
func (s *Sessions) Create(actorID, guildID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{
		ActorID:  actorID,
		GuildID:  guildID,
		Channels: make(map[raid.Category]string),
		Hosts:    make(map[raid.Category][]string),
		State:    State{Phase: PhaseCategorySelection},
		touched:  s.now(),
	}
	s.byActor[actorID] = sess
	return sess
}

// Get returns the actor's live session, or nil when none exists or it has
// expired. Expired sessions are dropped on access.
func (s *Sessions) Get(actorID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.byActor[actorID]
	if sess == nil {
		return nil
	}
	if s.now().Sub(sess.touched) > s.ttl {
		delete(s.byActor, actorID)
		s.log.Debug("setup session expired", logx.String("actor", actorID))
		return nil
	}
	sess.touched = s.now()
	return sess
}

func (s *Sessions) Delete(actorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byActor, actorID)
}

// Sweep drops sessions idle past the TTL.
func (s *Sessions) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	dropped := 0
	for actor, sess := range s.byActor {
		if sess.touched.Before(cutoff) {
			delete(s.byActor, actor)
			dropped++
		}
	}
	if dropped > 0 {
		s.log.Debug("setup session sweep",
			logx.Int("dropped", dropped), logx.Int("live", len(s.byActor)))
	}
}

// Run drives periodic sweeps until done is closed.
func (s *Sessions) Run(done <-chan struct{}) {
	t := time.NewTicker(s.ttl / 2)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

// Len reports the number of live sessions (diagnostics).
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byActor)
}
