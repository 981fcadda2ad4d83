package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/promovista/app/internal/backend"
	"github.com/promovista/app/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBackend lets tests control the initial fetch and push notifications
type fakeBackend struct {
	*backend.Notifier

	release    chan struct{}
	session    *model.Session
	fetchErr   error
	signOutErr error

	mu           sync.Mutex
	signOutCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{Notifier: backend.NewNotifier(), release: make(chan struct{})}
}

func (f *fakeBackend) GetCurrentSession(ctx context.Context) (*model.Session, error) {
	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return f.session, f.fetchErr
}

func (f *fakeBackend) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	f.mu.Unlock()
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.Emit(model.AuthEvent{Kind: model.EventSignedOut})
	return nil
}

type fakeProfiles struct {
	exists bool
	err    error
	block  chan struct{}
}

func (f *fakeProfiles) Exists(ctx context.Context, _ uuid.UUID) (bool, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return f.exists, f.err
}

func testSession(id uuid.UUID) *model.Session {
	return &model.Session{
		AccessToken: "access",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        &model.User{ID: id, Phone: "+40722123456"},
	}
}

// collect drains states from ch in the background
type collector struct {
	mu     sync.Mutex
	states []State
	done   chan struct{}
}

func collect(ch <-chan State) *collector {
	c := &collector{done: make(chan struct{})}
	go func() {
		defer close(c.done)
		for st := range ch {
			c.mu.Lock()
			c.states = append(c.states, st)
			c.mu.Unlock()
		}
	}()
	return c
}

func (c *collector) loadingTransitions() (toTrue, toFalse int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.states[0].Loading
	for _, st := range c.states[1:] {
		if st.Loading != prev {
			if st.Loading {
				toTrue++
			} else {
				toFalse++
			}
		}
		prev = st.Loading
	}
	return toTrue, toFalse
}

func waitFor(t *testing.T, s *Store, cond func(State) bool) State {
	t.Helper()
	require.Eventually(t, func() bool { return cond(s.Current()) }, 2*time.Second, 5*time.Millisecond)
	return s.Current()
}

func TestStore_loadingClearsOnceAfterSuccessfulFetch(t *testing.T) {
	fb := newFakeBackend()
	fb.session = testSession(uuid.New())
	s := NewStore(fb, nil, nil)
	assert.True(t, s.Current().Loading, "loading before start")

	ch, cancel := s.Watch()
	c := collect(ch)

	s.Start(context.Background())
	assert.True(t, s.Current().Loading)
	close(fb.release)

	st := waitFor(t, s, func(st State) bool { return !st.Loading })
	require.NotNil(t, st.Session)
	assert.Equal(t, fb.session.User, st.User)
	assert.Equal(t, model.ProfileComplete, st.Profile)

	s.Close()
	cancel()
	<-c.done
	toTrue, toFalse := c.loadingTransitions()
	assert.Equal(t, 0, toTrue)
	assert.Equal(t, 1, toFalse)
}

func TestStore_loadingClearsOnceAfterFailedFetch(t *testing.T) {
	fb := newFakeBackend()
	fb.fetchErr = errors.New("network unreachable")
	s := NewStore(fb, nil, nil)
	ch, cancel := s.Watch()
	c := collect(ch)

	s.Start(context.Background())
	close(fb.release)

	st := waitFor(t, s, func(st State) bool { return !st.Loading })
	assert.Nil(t, st.Session)
	assert.Nil(t, st.User)
	assert.False(t, st.Authenticated())

	s.Close()
	cancel()
	<-c.done
	_, toFalse := c.loadingTransitions()
	assert.Equal(t, 1, toFalse)
}

func TestStore_notificationsOverwriteSession(t *testing.T) {
	fb := newFakeBackend()
	close(fb.release)
	s := NewStore(fb, nil, nil)
	s.Start(context.Background())
	defer s.Close()
	waitFor(t, s, func(st State) bool { return !st.Loading })

	id := uuid.New()
	fb.Emit(model.AuthEvent{Kind: model.EventSignedIn, Session: testSession(id)})
	st := waitFor(t, s, func(st State) bool { return st.User != nil })
	require.NotNil(t, st.Session)
	assert.Equal(t, id, st.User.ID)
	assert.Same(t, st.Session.User, st.User)

	fb.Emit(model.AuthEvent{Kind: model.EventSignedOut})
	st = waitFor(t, s, func(st State) bool { return st.Session == nil })
	assert.Nil(t, st.User)
	assert.Equal(t, model.ProfileUnknown, st.Profile)
}

func TestStore_sessionWithoutUserIsNoSession(t *testing.T) {
	fb := newFakeBackend()
	close(fb.release)
	s := NewStore(fb, nil, nil)
	s.Start(context.Background())
	defer s.Close()
	waitFor(t, s, func(st State) bool { return !st.Loading })

	fb.Emit(model.AuthEvent{Kind: model.EventSignedIn, Session: testSession(uuid.New())})
	waitFor(t, s, func(st State) bool { return st.User != nil })

	fb.Emit(model.AuthEvent{Kind: model.EventUserUpdated, Session: &model.Session{AccessToken: "x"}})
	st := waitFor(t, s, func(st State) bool { return st.Session == nil })
	assert.Nil(t, st.User)
}

func TestStore_profileStatusFromChecker(t *testing.T) {
	cases := []struct {
		name     string
		profiles *fakeProfiles
		want     model.ProfileStatus
	}{
		{"existing profile", &fakeProfiles{exists: true}, model.ProfileComplete},
		{"no profile", &fakeProfiles{exists: false}, model.ProfileIncomplete},
		{"lookup error", &fakeProfiles{err: errors.New("boom")}, model.ProfileIncomplete},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fb := newFakeBackend()
			fb.session = testSession(uuid.New())
			close(fb.release)
			s := NewStore(fb, tc.profiles, nil)
			s.Start(context.Background())
			defer s.Close()

			st := waitFor(t, s, func(st State) bool { return !st.Loading && st.Profile != model.ProfileUnknown })
			assert.Equal(t, tc.want, st.Profile)
		})
	}
}

func TestStore_tokenRefreshKeepsProfileStatus(t *testing.T) {
	fb := newFakeBackend()
	sess := testSession(uuid.New())
	fb.session = sess
	close(fb.release)
	s := NewStore(fb, &fakeProfiles{exists: true}, nil)
	s.Start(context.Background())
	defer s.Close()
	waitFor(t, s, func(st State) bool { return st.Profile == model.ProfileComplete })

	refreshed := *sess
	refreshed.AccessToken = "access-2"
	fb.Emit(model.AuthEvent{Kind: model.EventTokenRefreshed, Session: &refreshed})
	st := waitFor(t, s, func(st State) bool { return st.Session.AccessToken == "access-2" })
	assert.Equal(t, model.ProfileComplete, st.Profile)
}

func TestStore_markProfileCompleteBeatsLateLookup(t *testing.T) {
	fb := newFakeBackend()
	id := uuid.New()
	fb.session = testSession(id)
	close(fb.release)
	profiles := &fakeProfiles{exists: false, block: make(chan struct{})}
	s := NewStore(fb, profiles, nil)
	s.Start(context.Background())
	defer s.Close()
	waitFor(t, s, func(st State) bool { return !st.Loading && st.User != nil })

	s.MarkProfileComplete(uuid.New())
	assert.Equal(t, model.ProfileUnknown, s.Current().Profile, "other user's save is ignored")

	s.MarkProfileComplete(id)
	assert.Equal(t, model.ProfileComplete, s.Current().Profile)

	close(profiles.block)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, model.ProfileComplete, s.Current().Profile)
}

func TestStore_signOutReliesOnNotification(t *testing.T) {
	fb := newFakeBackend()
	fb.session = testSession(uuid.New())
	close(fb.release)
	s := NewStore(fb, nil, nil)
	s.Start(context.Background())
	defer s.Close()
	waitFor(t, s, func(st State) bool { return !st.Loading && st.User != nil })

	require.NoError(t, s.SignOut(context.Background()))
	st := waitFor(t, s, func(st State) bool { return st.Session == nil })
	assert.Nil(t, st.User)
	assert.False(t, st.Loading)
}

func TestStore_signOutWhileLoadingIsRejected(t *testing.T) {
	fb := newFakeBackend()
	fb.session = testSession(uuid.New())
	s := NewStore(fb, nil, nil)
	ch, cancel := s.Watch()
	c := collect(ch)
	s.Start(context.Background())

	assert.ErrorIs(t, s.SignOut(context.Background()), ErrNotReady)
	assert.True(t, s.Current().Loading)
	fb.mu.Lock()
	assert.Equal(t, 0, fb.signOutCalls)
	fb.mu.Unlock()

	close(fb.release)
	waitFor(t, s, func(st State) bool { return !st.Loading && st.User != nil })
	s.Close()
	cancel()
	<-c.done

	toTrue, toFalse := c.loadingTransitions()
	assert.Equal(t, 0, toTrue)
	assert.Equal(t, 1, toFalse)
}

func TestStore_failedSignOutStaysSignedIn(t *testing.T) {
	fb := newFakeBackend()
	fb.session = testSession(uuid.New())
	fb.signOutErr = errors.New("offline")
	close(fb.release)
	s := NewStore(fb, nil, nil)
	s.Start(context.Background())
	defer s.Close()
	waitFor(t, s, func(st State) bool { return !st.Loading && st.User != nil })

	err := s.SignOut(context.Background())
	require.Error(t, err)
	st := s.Current()
	assert.False(t, st.Loading)
	assert.NotNil(t, st.User)
	assert.Equal(t, 1, fb.signOutCalls)
}

func TestStore_closeIsIdempotentAndStopsUpdates(t *testing.T) {
	fb := newFakeBackend()
	s := NewStore(fb, nil, nil)
	ch, _ := s.Watch()
	s.Start(context.Background())

	// close while the initial fetch is still pending
	s.Close()
	s.Close()

	for range ch {
	}
	late, cancel := s.Watch()
	_, open := <-late
	assert.False(t, open, "watch after close yields a closed channel")
	cancel()
}

func TestStore_closeWithoutStart(t *testing.T) {
	s := NewStore(newFakeBackend(), nil, nil)
	s.Close()
	s.Start(context.Background())
	assert.True(t, s.Current().Loading)
}

func TestFromContext(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoStore)

	s := NewStore(newFakeBackend(), nil, nil)
	got, err := FromContext(WithStore(context.Background(), s))
	require.NoError(t, err)
	assert.Same(t, s, got)
}
