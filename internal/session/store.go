// Package session keeps per-shopper state: a derived view engine, a cart and
// a wishlist. Sessions live in memory only and are evicted after a period of
// inactivity.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/view"
	"github.com/xenking/storefront/internal/domain/wishlist"
)

// Session is the state of one shopper.
type Session struct {
	ID       string
	View     *view.Engine
	Cart     *cart.Cart
	Wishlist *wishlist.Wishlist

	lastSeen atomic.Int64 // unix nanoseconds
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen returns the time of the last lookup of the session.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Config controls session lifetime.
type Config struct {
	// IdleTTL is how long an untouched session survives.
	IdleTTL time.Duration
	// MaxSessions caps live sessions; the least recently seen one is evicted
	// to make room. Zero means unlimited.
	MaxSessions int
}

// Store creates, finds and evicts sessions. All sessions share one product
// source; each gets its own view engine.
type Store struct {
	source  product.Source
	viewCfg view.Config
	cfg     Config
	lg      *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore returns an empty Store.
func NewStore(source product.Source, viewCfg view.Config, cfg Config, lg *zap.Logger) *Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Store{
		source:   source,
		viewCfg:  viewCfg,
		cfg:      cfg,
		lg:       lg,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session with a random id.
func (s *Store) Create() *Session {
	now := s.now()
	id := uuid.New().String()
	sess := &Session{
		ID:       id,
		View:     view.New(s.source, s.viewCfg, s.lg.Named("view").With(zap.String("session", id))),
		Cart:     cart.New(),
		Wishlist: wishlist.New(),
	}
	sess.touch(now)

	var evicted *Session
	s.mu.Lock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		evicted = s.oldestLocked()
		if evicted != nil {
			delete(s.sessions, evicted.ID)
		}
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	if evicted != nil {
		s.lg.Info("Session capacity reached, evicting oldest",
			zap.String("session", evicted.ID),
			zap.Int("max", s.cfg.MaxSessions),
		)
		evicted.View.Close()
	}
	return sess
}

// Get returns the session with the given id and marks it as seen.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	sess.touch(s.now())
	return sess, true
}

// GetOrCreate returns the session with the given id, or a new one when id is
// empty or unknown. created reports whether a new session was started.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool) {
	if id != "" {
		if sess, ok := s.Get(id); ok {
			return sess, false
		}
	}
	return s.Create(), true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Evict removes sessions idle for at least IdleTTL as of now and closes their
// engines. It returns the number of evicted sessions.
func (s *Store) Evict(now time.Time) int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}

	var stale []*Session
	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastSeen()) >= s.cfg.IdleTTL {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.View.Close()
	}
	if len(stale) > 0 {
		s.lg.Debug("Evicted idle sessions", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// StartJanitor evicts idle sessions every interval until ctx is cancelled.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.Evict(now)
			}
		}
	}()
}

// Close evicts every session.
func (s *Store) Close() {
	s.mu.Lock()
	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	clear(s.sessions)
	s.mu.Unlock()

	for _, sess := range all {
		sess.View.Close()
	}
}

func (s *Store) oldestLocked() *Session {
	var oldest *Session
	for _, sess := range s.sessions {
		if oldest == nil || sess.lastSeen.Load() < oldest.lastSeen.Load() {
			oldest = sess
		}
	}
	return oldest
}
