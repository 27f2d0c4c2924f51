package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"voxid/internal/identity/models"
	id "voxid/pkg/domain"
	"voxid/pkg/platform/sentinel"
	s "voxid/pkg/string"
)

// PostgresStore persists identities in PostgreSQL. Deleting an identity
// removes its voice profile through ON DELETE CASCADE.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const identityColumns = `id, email, first_name, last_name, voice_enrolled, COALESCE(refresh_token_hash, ''), created_at, updated_at`

func (st *PostgresStore) Save(ctx context.Context, identity *models.Identity) error {
	if identity == nil {
		return fmt.Errorf("identity is required: %w", sentinel.ErrInvalidInput)
	}
	_, err := st.db.ExecContext(ctx, `
		INSERT INTO identities (id, email, first_name, last_name, voice_enrolled, refresh_token_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			email              = EXCLUDED.email,
			first_name         = EXCLUDED.first_name,
			last_name          = EXCLUDED.last_name,
			voice_enrolled     = EXCLUDED.voice_enrolled,
			refresh_token_hash = EXCLUDED.refresh_token_hash,
			updated_at         = EXCLUDED.updated_at
	`, uuid.UUID(identity.ID), s.NormalizeEmail(identity.Email), identity.FirstName, identity.LastName,
		identity.VoiceEnrolled, identity.RefreshTokenHash, identity.CreatedAt, identity.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

func (st *PostgresStore) FindByID(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	row := st.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, uuid.UUID(identityID))
	identity, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find identity by id: %w", err)
	}
	return identity, nil
}

func (st *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	row := st.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE LOWER(email) = $1`, s.NormalizeEmail(email))
	identity, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find identity by email: %w", err)
	}
	return identity, nil
}

func (st *PostgresStore) SetVoiceEnrolled(ctx context.Context, identityID id.IdentityID, enrolled bool) error {
	return st.exec(ctx, "set voice enrolled",
		`UPDATE identities SET voice_enrolled = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(identityID), enrolled, nowFrom(ctx))
}

func (st *PostgresStore) SetRefreshTokenHash(ctx context.Context, identityID id.IdentityID, hash string) error {
	return st.exec(ctx, "set refresh token",
		`UPDATE identities SET refresh_token_hash = NULLIF($2, ''), updated_at = $3 WHERE id = $1`,
		uuid.UUID(identityID), hash, nowFrom(ctx))
}

func (st *PostgresStore) Delete(ctx context.Context, identityID id.IdentityID) error {
	return st.exec(ctx, "delete identity", `DELETE FROM identities WHERE id = $1`, uuid.UUID(identityID))
}

func (st *PostgresStore) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := st.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*models.Identity, error) {
	var (
		identityID uuid.UUID
		identity   models.Identity
	)
	err := row.Scan(&identityID, &identity.Email, &identity.FirstName, &identity.LastName,
		&identity.VoiceEnrolled, &identity.RefreshTokenHash, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		return nil, err
	}
	identity.ID = id.IdentityID(identityID)
	return &identity, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
