package profilestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	shopauth "github.com/solmarkt/shopauth"
)

// ErrProfileNotFound is returned when no profile row exists for a principal.
var ErrProfileNotFound = errors.New("profile not found")

// Store reads profile, role, and two-factor rows from Postgres. It
// implements [shopauth.ProfileStore], [shopauth.RoleStore], and
// [shopauth.TwoFactorStore].
type Store struct {
	db *sql.DB
}

// New wraps an already-opened database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects via the pgx stdlib driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// FetchProfile implements [shopauth.ProfileStore].
func (s *Store) FetchProfile(ctx context.Context, principalID string) (*shopauth.Principal, error) {
	var (
		p    shopauth.Principal
		role string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, role, COALESCE(avatar_url, ''), created_at, updated_at
		FROM profiles
		WHERE id = $1
	`, principalID).Scan(&p.ID, &p.Email, &p.DisplayName, &role, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	p.Role = shopauth.NormalizeRole(role)
	return &p, nil
}

// FetchRole implements [shopauth.RoleStore]. It always reads the row, never
// a cached claim, so a revoked admin loses access on the next check.
func (s *Store) FetchRole(ctx context.Context, principalID string) (shopauth.Role, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM profiles WHERE id = $1
	`, principalID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return shopauth.RoleUser, ErrProfileNotFound
		}
		return shopauth.RoleUser, fmt.Errorf("query role: %w", err)
	}
	return shopauth.NormalizeRole(role), nil
}

// Get implements [shopauth.TwoFactorStore]. A principal without a row has
// no two-factor state; that is a nil record, not an error.
func (s *Store) Get(ctx context.Context, principalID string) (*shopauth.TwoFactorRecord, error) {
	var rec shopauth.TwoFactorRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT principal_id, secret, enabled
		FROM two_factor_secrets
		WHERE principal_id = $1
	`, principalID).Scan(&rec.PrincipalID, &rec.Secret, &rec.Enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query two-factor record: %w", err)
	}
	return &rec, nil
}

// Save implements [shopauth.TwoFactorStore]. Re-provisioning overwrites the
// previous secret and clears the enabled flag.
func (s *Store) Save(ctx context.Context, record shopauth.TwoFactorRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO two_factor_secrets (principal_id, secret, enabled, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (principal_id)
		DO UPDATE SET secret = EXCLUDED.secret, enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at
	`, record.PrincipalID, record.Secret, record.Enabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert two-factor record: %w", err)
	}
	return nil
}

// MarkConfirmed implements [shopauth.TwoFactorStore].
func (s *Store) MarkConfirmed(ctx context.Context, principalID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE two_factor_secrets SET enabled = TRUE, updated_at = $2
		WHERE principal_id = $1
	`, principalID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("confirm two-factor record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return shopauth.ErrTwoFactorNotConfigured
	}
	return nil
}

// Disable implements [shopauth.TwoFactorStore]. Disabling a principal that
// never enrolled is a no-op.
func (s *Store) Disable(ctx context.Context, principalID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM two_factor_secrets WHERE principal_id = $1
	`, principalID)
	if err != nil {
		return fmt.Errorf("delete two-factor record: %w", err)
	}
	return nil
}
