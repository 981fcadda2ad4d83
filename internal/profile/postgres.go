package profile

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore keeps profiles in a store_profiles table reached directly
// over database/sql. Used for self-hosted deployments and integration tests.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore instance
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save inserts the profile or replaces the existing one for userID
func (s *PostgresStore) Save(ctx context.Context, userID uuid.UUID, d Draft) error {
	d = d.Normalized()
	query := `
		INSERT INTO store_profiles (user_id, company_name, cui, address, iban, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			cui = EXCLUDED.cui,
			address = EXCLUDED.address,
			iban = EXCLUDED.iban,
			updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query, userID.String(), d.CompanyName, d.TaxID, d.Address, d.BankAccount, Role)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Exists reports whether userID has a profile row
func (s *PostgresStore) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM store_profiles WHERE user_id = $1)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, userID.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query profile: %w", err)
	}
	return exists, nil
}

// Get returns the stored profile of userID, or sql.ErrNoRows wrapped
func (s *PostgresStore) Get(ctx context.Context, userID uuid.UUID) (Draft, error) {
	query := `
		SELECT company_name, cui, address, iban
		FROM store_profiles
		WHERE user_id = $1
	`
	var d Draft
	err := s.db.QueryRowContext(ctx, query, userID.String()).Scan(&d.CompanyName, &d.TaxID, &d.Address, &d.BankAccount)
	if err != nil {
		if err == sql.ErrNoRows {
			return Draft{}, fmt.Errorf("profile not found: %w", err)
		}
		return Draft{}, fmt.Errorf("failed to query profile: %w", err)
	}
	return d, nil
}
