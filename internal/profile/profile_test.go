package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/promovista/app/internal/backend"
	"github.com/promovista/app/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() Draft {
	return Draft{
		CompanyName: "Promo SRL",
		TaxID:       "RO12345678",
		Address:     "Str. Lunga 1, Cluj",
		BankAccount: "RO49AAAA1B31007593840000",
	}
}

func TestDraft_Validate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(d *Draft)
		wantMsg string
	}{
		{"valid", func(d *Draft) {}, ""},
		{"lowercase iban and cui", func(d *Draft) {
			d.BankAccount = "ro49aaaa1b31007593840000"
			d.TaxID = "ro12345678"
		}, ""},
		{"cui without prefix", func(d *Draft) { d.TaxID = "12345678" }, ""},
		{"padding around iban and cui", func(d *Draft) {
			d.BankAccount = "  RO49AAAA1B31007593840000 "
			d.TaxID = " RO12345678\t"
		}, ""},
		{"space inside iban", func(d *Draft) { d.BankAccount = "RO49 AAAA 1B31 0075 9384 0000" }, MsgInvalidIBAN},
		{"empty address", func(d *Draft) { d.Address = "" }, MsgRequired},
		{"blank company", func(d *Draft) { d.CompanyName = "   " }, MsgRequired},
		{"short iban", func(d *Draft) { d.BankAccount = "123" }, MsgInvalidIBAN},
		{"letters as cui", func(d *Draft) { d.TaxID = "ABCDEFG" }, MsgInvalidCUI},
		{"required beats format", func(d *Draft) {
			d.BankAccount = "123"
			d.Address = ""
		}, MsgRequired},
		{"iban checked before cui", func(d *Draft) {
			d.BankAccount = "123"
			d.TaxID = "ABCDEFG"
		}, MsgInvalidIBAN},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := validDraft()
			tc.mutate(&d)
			err := d.Validate()
			if tc.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.wantMsg, verr.Message)
		})
	}
}

func TestDraft_Normalized(t *testing.T) {
	d := Draft{CompanyName: " Promo ", TaxID: " ro123 ", Address: " a ", BankAccount: "ro49aaaa1b31007593840000 "}
	n := d.Normalized()
	assert.Equal(t, Draft{CompanyName: "Promo", TaxID: "RO123", Address: "a", BankAccount: "RO49AAAA1B31007593840000"}, n)
}

// fakePostgREST records requests against store_profiles
type fakePostgREST struct {
	mu      sync.Mutex
	rows    map[string]map[string]interface{}
	headers http.Header
	query   string
	status  int
}

func newFakePostgREST() *fakePostgREST {
	return &fakePostgREST{rows: make(map[string]map[string]interface{})}
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers = r.Header.Clone()
	f.query = r.URL.RawQuery

	if r.URL.Path != profilesPath {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if f.status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"code":"42501","message":"new row violates row-level security policy"}`))
		return
	}

	switch r.Method {
	case http.MethodPost:
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.rows[body["user_id"].(string)] = body
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet:
		out := []map[string]interface{}{}
		id := r.URL.Query().Get("user_id")
		if row, ok := f.rows[id[len("eq."):]]; ok {
			out = append(out, map[string]interface{}{"user_id": row["user_id"]})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

func newTestRESTStore(t *testing.T, f *fakePostgREST, token TokenSource) *RESTStore {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewRESTStore(RESTOptions{URL: srv.URL, AnonKey: "anon", Token: token})
}

func staticToken(ctx context.Context) (string, error) {
	return "user-access", nil
}

func TestRESTStore_saveThenExists(t *testing.T) {
	f := newFakePostgREST()
	s := newTestRESTStore(t, f, staticToken)
	id := uuid.New()
	ctx := context.Background()

	exists, err := s.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)

	d := validDraft()
	d.TaxID = "ro12345678"
	require.NoError(t, s.Save(ctx, id, d))

	f.mu.Lock()
	row := f.rows[id.String()]
	headers := f.headers
	query := f.query
	f.mu.Unlock()
	require.NotNil(t, row)
	assert.Equal(t, "RO12345678", row["cui"])
	assert.Equal(t, "RO49AAAA1B31007593840000", row["iban"])
	assert.Equal(t, Role, row["role"])
	assert.Equal(t, "on_conflict=user_id", query)
	assert.Equal(t, "anon", headers.Get("apikey"))
	assert.Equal(t, "Bearer user-access", headers.Get("Authorization"))
	assert.Contains(t, headers.Get("Prefer"), "resolution=merge-duplicates")

	exists, err = s.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRESTStore_backendErrorIsVerbatim(t *testing.T) {
	f := newFakePostgREST()
	f.status = http.StatusForbidden
	s := newTestRESTStore(t, f, staticToken)

	err := s.Save(context.Background(), uuid.New(), validDraft())
	var apiErr *backend.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "new row violates row-level security policy", err.Error())
	assert.Equal(t, "42501", apiErr.Code)
}

func TestRESTStore_noSession(t *testing.T) {
	f := newFakePostgREST()
	s := newTestRESTStore(t, f, func(ctx context.Context) (string, error) {
		return "", backend.ErrNoSession
	})
	_, err := s.Exists(context.Background(), uuid.New())
	assert.ErrorIs(t, err, backend.ErrNoSession)

	s = newTestRESTStore(t, f, nil)
	assert.ErrorIs(t, s.Save(context.Background(), uuid.New(), validDraft()), backend.ErrNoSession)
}

func TestRESTStore_notConfigured(t *testing.T) {
	s := NewRESTStore(RESTOptions{Token: staticToken})
	_, err := s.Exists(context.Background(), uuid.New())
	assert.ErrorIs(t, err, backend.ErrNotConfigured)
}

// TestPostgresStore runs against a real database and is skipped unless
// DATABASE_URL is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	database, err := db.Open(ctx, dsn, nil)
	require.NoError(t, err, "database open must succeed; check DATABASE_URL")
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database))

	s := NewPostgresStore(database)
	id := uuid.New()
	t.Cleanup(func() {
		_, _ = database.ExecContext(ctx, "DELETE FROM store_profiles WHERE user_id = $1", id.String())
	})

	exists, err := s.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Save(ctx, id, validDraft()))
	updated := validDraft()
	updated.Address = "Bd. Eroilor 2, Cluj"
	require.NoError(t, s.Save(ctx, id, updated))

	exists, err = s.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, updated.Normalized(), got)
}
