package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/promovista/app/internal/model"
	"github.com/promovista/app/internal/phone"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 15 * time.Second
	// expiryMargin is how long before expiry a token is considered stale
	expiryMargin = 90 * time.Second
)

// Options configures a Client
type Options struct {
	URL        string
	AnonKey    string
	HTTPClient *http.Client
	Storage    SessionStorage
	Clock      clockwork.Clock
	Logger     *zap.Logger
}

// VerifyResult is the outcome of a successful OTP verification. Session is nil
// when the backend accepted the code without opening a session.
type VerifyResult struct {
	Session *model.Session
}

// Client talks to a GoTrue-compatible auth API and owns the local session
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	storage    SessionStorage
	clock      clockwork.Clock
	log        *zap.Logger
	events     *Notifier

	mu       sync.Mutex
	session  *model.Session
	restored bool
}

// New creates a new auth API client
func New(opts Options) *Client {
	c := &Client{
		baseURL:    opts.URL,
		anonKey:    opts.AnonKey,
		httpClient: opts.HTTPClient,
		storage:    opts.Storage,
		clock:      opts.Clock,
		log:        opts.Logger,
		events:     NewNotifier(),
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if c.storage == nil {
		c.storage = NewMemoryStorage()
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Subscribe registers for auth state changes
func (c *Client) Subscribe() *Subscription {
	return c.events.Subscribe()
}

// RequestOTP asks the backend to send a one-time code to phoneE164
func (c *Client) RequestOTP(ctx context.Context, phoneE164 string) error {
	body := map[string]interface{}{"phone": phoneE164}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/otp", body, "", nil); err != nil {
		c.log.Warn("request otp failed", zap.String("phone", phone.Mask(phoneE164)), zap.Error(err))
		return err
	}
	c.log.Info("otp requested", zap.String("phone", phone.Mask(phoneE164)))
	return nil
}

// VerifyOTP verifies code for phoneE164. On success the session is stored and
// SIGNED_IN is emitted to subscribers.
func (c *Client) VerifyOTP(ctx context.Context, phoneE164, code string) (*VerifyResult, error) {
	body := map[string]interface{}{
		"type":  "sms",
		"phone": phoneE164,
		"token": code,
	}
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/verify", body, "", &resp); err != nil {
		c.log.Warn("otp verification failed", zap.String("phone", phone.Mask(phoneE164)), zap.Error(err))
		return nil, err
	}

	session, err := resp.toSession(c.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session == nil {
		return &VerifyResult{}, nil
	}

	c.setSession(session)
	c.log.Info("signed in", zap.String("user_id", session.User.ID.String()))
	c.events.Emit(model.AuthEvent{Kind: model.EventSignedIn, Session: session})
	return &VerifyResult{Session: session}, nil
}

// GetCurrentSession returns the local session, restoring it from storage on
// first use. An expired session is refreshed first; on failure no session is
// returned (see Refresh for when the stored session is discarded).
func (c *Client) GetCurrentSession(ctx context.Context) (*model.Session, error) {
	c.mu.Lock()
	if !c.restored {
		c.restored = true
		stored, err := c.storage.Load()
		if err != nil {
			c.log.Warn("could not restore session", zap.Error(err))
		}
		if stored != nil && stored.User != nil {
			c.session = stored
		}
	}
	current := c.session
	c.mu.Unlock()

	if current == nil {
		return nil, nil
	}
	if !current.Expired(c.clock.Now(), expiryMargin) {
		return current, nil
	}
	refreshed, err := c.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}

// AccessToken returns the current access token
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	s, err := c.GetCurrentSession(ctx)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", ErrNoSession
	}
	return s.AccessToken, nil
}

// Refresh exchanges the refresh token for a new session and emits
// TOKEN_REFRESHED. When the backend rejects the refresh token the local session
// is cleared and SIGNED_OUT is emitted.
func (c *Client) Refresh(ctx context.Context) (*model.Session, error) {
	c.mu.Lock()
	current := c.session
	c.mu.Unlock()
	if current == nil || current.RefreshToken == "" {
		return nil, ErrNoSession
	}

	body := map[string]interface{}{"refresh_token": current.RefreshToken}
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", body, "", &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsClientError() {
			c.log.Warn("refresh token rejected, signing out", zap.Error(err))
			c.clearSession()
			c.events.Emit(model.AuthEvent{Kind: model.EventSignedOut})
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	session, err := resp.toSession(c.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("refresh session: %w", ErrNoSession)
	}
	c.setSession(session)
	c.log.Debug("session refreshed", zap.Time("expires_at", session.ExpiresAt))
	c.events.Emit(model.AuthEvent{Kind: model.EventTokenRefreshed, Session: session})
	return session, nil
}

// SignOut revokes the session on the backend and forgets it locally.
// Transport failures leave the session in place; a backend response saying
// the session is already gone is treated as success.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	current := c.session
	c.mu.Unlock()

	if current != nil {
		err := c.do(ctx, http.MethodPost, "/auth/v1/logout?scope=global", nil, current.AccessToken, nil)
		if err != nil {
			var apiErr *APIError
			if !errors.As(err, &apiErr) || !isGoneStatus(apiErr.Status) {
				c.log.Error("sign out failed", zap.Error(err))
				return err
			}
		}
	}

	c.clearSession()
	c.log.Info("signed out")
	c.events.Emit(model.AuthEvent{Kind: model.EventSignedOut})
	return nil
}

// Run refreshes the session shortly before it expires, checking every interval.
// It returns when ctx is cancelled.
func (c *Client) Run(ctx context.Context, interval time.Duration) error {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			c.mu.Lock()
			current := c.session
			c.mu.Unlock()
			if current == nil || !current.Expired(c.clock.Now(), expiryMargin) {
				continue
			}
			if _, err := c.Refresh(ctx); err != nil {
				c.log.Warn("auto refresh failed", zap.Error(err))
			}
		}
	}
}

func isGoneStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusNotFound
}

func (c *Client) setSession(s *model.Session) {
	c.mu.Lock()
	c.session = s
	c.restored = true
	c.mu.Unlock()
	if err := c.storage.Save(s); err != nil {
		c.log.Warn("could not persist session", zap.Error(err))
	}
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.session = nil
	c.restored = true
	c.mu.Unlock()
	if err := c.storage.Remove(); err != nil {
		c.log.Warn("could not remove persisted session", zap.Error(err))
	}
}

// do sends a JSON request. bearer defaults to the anon key; out may be nil.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, bearer string, out interface{}) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DecodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
