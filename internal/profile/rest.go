package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/promovista/app/internal/backend"
	"go.uber.org/zap"
)

const profilesPath = "/rest/v1/store_profiles"

// TokenSource returns the access token of the signed-in user
type TokenSource func(ctx context.Context) (string, error)

// RESTOptions configures a RESTStore
type RESTOptions struct {
	URL        string
	AnonKey    string
	HTTPClient *http.Client
	Token      TokenSource
	Logger     *zap.Logger
}

// RESTStore keeps profiles in the store_profiles table behind the backend's
// PostgREST endpoint. Row-level security scopes every request to the caller.
type RESTStore struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	token      TokenSource
	log        *zap.Logger
}

// row is the store_profiles wire format
type row struct {
	UserID      uuid.UUID `json:"user_id"`
	CompanyName string    `json:"company_name"`
	CUI         string    `json:"cui"`
	Address     string    `json:"address"`
	IBAN        string    `json:"iban"`
	Role        string    `json:"role"`
}

// NewRESTStore creates a PostgREST-backed profile store
func NewRESTStore(opts RESTOptions) *RESTStore {
	s := &RESTStore{
		baseURL:    opts.URL,
		anonKey:    opts.AnonKey,
		httpClient: opts.HTTPClient,
		token:      opts.Token,
		log:        opts.Logger,
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Save upserts the profile row of userID
func (s *RESTStore) Save(ctx context.Context, userID uuid.UUID, d Draft) error {
	d = d.Normalized()
	body, err := json.Marshal(row{
		UserID:      userID,
		CompanyName: d.CompanyName,
		CUI:         d.TaxID,
		Address:     d.Address,
		IBAN:        d.BankAccount,
		Role:        Role,
	})
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	req, err := s.newRequest(ctx, http.MethodPost, profilesPath+"?on_conflict=user_id", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := backend.DecodeError(resp)
		s.log.Warn("save profile failed", zap.String("user_id", userID.String()), zap.Error(err))
		return err
	}
	s.log.Info("profile saved", zap.String("user_id", userID.String()))
	return nil
}

// Exists reports whether a profile row exists for userID
func (s *RESTStore) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	q := url.Values{}
	q.Set("select", "user_id")
	q.Set("user_id", "eq."+userID.String())
	q.Set("limit", "1")

	req, err := s.newRequest(ctx, http.MethodGet, profilesPath+"?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("lookup profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, backend.DecodeError(resp)
	}

	var rows []struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return false, fmt.Errorf("decode profile lookup: %w", err)
	}
	return len(rows) > 0, nil
}

func (s *RESTStore) newRequest(ctx context.Context, method, path string, body *bytes.Reader) (*http.Request, error) {
	if s.baseURL == "" {
		return nil, backend.ErrNotConfigured
	}
	if s.token == nil {
		return nil, backend.ErrNoSession
	}
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}

	var req *http.Request
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, s.baseURL+path, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}
