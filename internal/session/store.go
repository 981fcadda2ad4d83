// Package session holds the process-wide authentication state of the app.
//
// A Store is started once at the application root and closed on shutdown. It
// subscribes to backend auth notifications before fetching the current
// session, so no transition can be missed between the two. Notifications
// overwrite the stored session unconditionally: the backend is the only
// authority and the last write wins.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/promovista/app/internal/backend"
	"github.com/promovista/app/internal/model"
	"go.uber.org/zap"
)

// Backend is the subset of the auth client the store depends on
type Backend interface {
	GetCurrentSession(ctx context.Context) (*model.Session, error)
	Subscribe() *backend.Subscription
	SignOut(ctx context.Context) error
}

// ProfileChecker answers whether a user already completed the business profile
type ProfileChecker interface {
	Exists(ctx context.Context, userID uuid.UUID) (bool, error)
}

// State is an immutable snapshot of the store
type State struct {
	// Loading is true while the initial session fetch or a sign-out is in flight
	Loading bool
	Session *model.Session
	// User is nil iff Session is nil
	User    *model.User
	Profile model.ProfileStatus
}

// Authenticated reports whether a user is signed in
func (s State) Authenticated() bool {
	return s.User != nil
}

type fetchResult struct {
	session *model.Session
	err     error
}

// Store is the single source of truth for "is someone logged in"
type Store struct {
	backend  Backend
	profiles ProfileChecker
	log      *zap.Logger

	mu       sync.RWMutex
	state    State
	fetched  bool
	watchers map[int]chan State
	nextID   int
	closed   bool

	startOnce sync.Once
	closeOnce sync.Once
	started   bool
	cancel    context.CancelFunc
	sub       *backend.Subscription
	wg        sync.WaitGroup
}

// NewStore creates a store. profiles may be nil, in which case every signed-in
// user is treated as having a complete profile.
func NewStore(b Backend, profiles ProfileChecker, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		backend:  b,
		profiles: profiles,
		log:      log,
		state:    State{Loading: true},
		watchers: make(map[int]chan State),
	}
}

// Start subscribes to auth notifications and fetches the current session in
// the background. Loading is true until that fetch completes, whatever its
// outcome. Start is a no-op after the first call.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			cancel()
			return
		}
		s.started = true
		s.cancel = cancel
		s.sub = s.backend.Subscribe()
		s.mu.Unlock()

		s.update(func(st *State) { st.Loading = true })

		fetched := make(chan fetchResult, 1)
		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			sess, err := s.backend.GetCurrentSession(ctx)
			fetched <- fetchResult{session: sess, err: err}
		}()
		go s.run(ctx, fetched)
	})
}

func (s *Store) run(ctx context.Context, fetched <-chan fetchResult) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case res := <-fetched:
			fetched = nil
			if res.err != nil {
				s.log.Error("error fetching session", zap.Error(res.err))
			}
			s.applySession(ctx, res.session)
			s.update(func(st *State) {
				st.Loading = false
				s.fetched = true
			})
		case ev := <-s.sub.Events():
			fields := []zap.Field{zap.String("event", string(ev.Kind))}
			if ev.Session != nil && ev.Session.User != nil {
				fields = append(fields, zap.String("user_id", ev.Session.User.ID.String()))
			}
			s.log.Info("auth state changed", fields...)
			s.applySession(ctx, ev.Session)
		}
	}
}

// applySession overwrites session and user. A session without a user is
// treated as no session so the two never disagree.
func (s *Store) applySession(ctx context.Context, sess *model.Session) {
	if sess != nil && sess.User == nil {
		s.log.Warn("ignoring session without user")
		sess = nil
	}

	var check *model.User
	s.update(func(st *State) {
		prev := st.User
		st.Session = sess
		st.User = nil
		if sess != nil {
			st.User = sess.User
		}

		switch {
		case st.User == nil:
			st.Profile = model.ProfileUnknown
		case prev == nil || prev.ID != st.User.ID:
			st.Profile = model.ProfileUnknown
			if s.profiles == nil {
				st.Profile = model.ProfileComplete
			} else {
				check = st.User
			}
		}
	})

	if check != nil {
		s.wg.Add(1)
		go s.checkProfile(ctx, check.ID)
	}
}

func (s *Store) checkProfile(ctx context.Context, userID uuid.UUID) {
	defer s.wg.Done()

	status := model.ProfileComplete
	exists, err := s.profiles.Exists(ctx, userID)
	switch {
	case err != nil:
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Error("profile lookup failed", zap.String("user_id", userID.String()), zap.Error(err))
		status = model.ProfileIncomplete
	case !exists:
		status = model.ProfileIncomplete
	}

	s.update(func(st *State) {
		// a sign-out, user switch or explicit save wins over a late answer
		if st.User == nil || st.User.ID != userID || st.Profile != model.ProfileUnknown {
			return
		}
		st.Profile = status
	})
}

// Current returns the latest state snapshot
func (s *Store) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Watch returns a channel receiving the latest state after every change, and
// a cancel func. Slow readers only see the most recent snapshot. The channel
// is closed by cancel or Close.
func (s *Store) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	ch <- s.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
}

// SignOut asks the backend to end the session. The local session is kept
// until the backend's SIGNED_OUT notification arrives, so a failed sign-out
// leaves the user signed in. It returns ErrNotReady until the initial fetch
// has completed.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.RLock()
	fetched := s.fetched
	s.mu.RUnlock()
	if !fetched {
		return ErrNotReady
	}

	s.update(func(st *State) { st.Loading = true })
	defer s.update(func(st *State) { st.Loading = false })

	if err := s.backend.SignOut(ctx); err != nil {
		s.log.Error("error signing out", zap.Error(err))
		return err
	}
	return nil
}

// MarkProfileComplete records that userID saved the profile. It has no effect
// if a different user (or nobody) is signed in by now.
func (s *Store) MarkProfileComplete(userID uuid.UUID) {
	s.update(func(st *State) {
		if st.User != nil && st.User.ID == userID {
			st.Profile = model.ProfileComplete
		}
	})
}

// Close unsubscribes from the backend and waits for background work to stop.
// It is safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()

		if started {
			s.cancel()
			s.sub.Unsubscribe()
			s.wg.Wait()
		}

		s.mu.Lock()
		s.closed = true
		for id, w := range s.watchers {
			delete(s.watchers, id)
			close(w)
		}
		s.mu.Unlock()
	})
}

// update mutates the state under the lock and publishes the new snapshot
func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	fn(&s.state)
	for _, w := range s.watchers {
		select {
		case <-w:
		default:
		}
		w <- s.state
	}
}
