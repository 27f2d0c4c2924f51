package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"voxid/internal/voice/models"
	id "voxid/pkg/domain"
	"voxid/pkg/platform/sentinel"
)

// dimensionLockKey serializes upserts that could change the store-wide
// embedding length.
const dimensionLockKey = "voxid.voice_profiles.dimension"

// PostgresStore persists profiles in voice_profiles. Embeddings are stored as
// float8[], never as an opaque blob.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, p *models.VoiceProfile) error {
	if p == nil {
		return fmt.Errorf("voice profile is required: %w", sentinel.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin profile upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, dimensionLockKey); err != nil {
		return fmt.Errorf("lock profile dimension: %w", err)
	}

	var stored int
	err = tx.QueryRowContext(ctx, `
		SELECT dimension FROM voice_profiles
		WHERE identity_id <> $1
		LIMIT 1
	`, uuid.UUID(p.IdentityID)).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read profile dimension: %w", err)
	case stored != p.Embedding.Dimension():
		return fmt.Errorf("%w: store holds %d, got %d", models.ErrDimensionMismatch, stored, p.Embedding.Dimension())
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO voice_profiles (id, identity_id, embedding, dimension, phrase, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (identity_id) DO UPDATE SET
			embedding  = EXCLUDED.embedding,
			dimension  = EXCLUDED.dimension,
			phrase     = EXCLUDED.phrase,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`, uuid.New(), uuid.UUID(p.IdentityID), []float64(p.Embedding), p.Embedding.Dimension(), p.Phrase, p.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("upsert voice profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit profile upsert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, identityID id.IdentityID) (*models.VoiceProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT identity_id, embedding, phrase, created_at
		FROM voice_profiles
		WHERE identity_id = $1
	`, uuid.UUID(identityID))
	p, err := scanProfile(pgtype.NewMap(), row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("voice profile not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get voice profile: %w", err)
	}
	return p, nil
}

// AllProfiles is a full table scan.
func (s *PostgresStore) AllProfiles(ctx context.Context) ([]*models.VoiceProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity_id, embedding, phrase, created_at
		FROM voice_profiles
	`)
	if err != nil {
		return nil, fmt.Errorf("list voice profiles: %w", err)
	}
	defer rows.Close()

	// pgtype.Map is not safe for concurrent use; one per call.
	typeMap := pgtype.NewMap()
	var out []*models.VoiceProfile
	for rows.Next() {
		p, err := scanProfile(typeMap, rows)
		if err != nil {
			return nil, fmt.Errorf("scan voice profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate voice profiles: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, identityID id.IdentityID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM voice_profiles WHERE identity_id = $1`, uuid.UUID(identityID))
	if err != nil {
		return fmt.Errorf("delete voice profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete voice profile rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("voice profile not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM voice_profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count voice profiles: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(typeMap *pgtype.Map, row rowScanner) (*models.VoiceProfile, error) {
	var (
		identityID uuid.UUID
		embedding  []float64
		phrase     string
		createdAt  time.Time
	)
	if err := row.Scan(&identityID, typeMap.SQLScanner(&embedding), &phrase, &createdAt); err != nil {
		return nil, err
	}
	return &models.VoiceProfile{
		IdentityID: id.IdentityID(identityID),
		Embedding:  models.Embedding(embedding),
		Phrase:     phrase,
		CreatedAt:  createdAt,
	}, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
