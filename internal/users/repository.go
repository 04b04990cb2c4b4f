package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akvora/backend/internal/models"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("user not found")

const userColumns = `id, COALESCE(external_id,''), COALESCE(akvora_id,''), email, first_name, last_name, phone,
	certificate_name, avatar_url, role, COALESCE(password_hash,''), status, block_reason, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.ExternalID, &u.AkvoraID, &u.Email, &u.FirstName, &u.LastName, &u.Phone,
		&u.CertificateName, &u.AvatarURL, &u.Role, &u.Password, &u.Status, &u.BlockReason, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByExternalID returns a user by identity-provider subject.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID))
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email)))
}

// UpsertFromIdentity creates or refreshes the local row for an
// identity-provider account. Existing profile fields are preserved; only
// the email is refreshed from the provider.
func (r *Repository) UpsertFromIdentity(ctx context.Context, externalID, email string) (*models.User, error) {
	const q = `INSERT INTO users (external_id, akvora_id, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (external_id) WHERE external_id IS NOT NULL
		DO UPDATE SET email = EXCLUDED.email, updated_at = NOW()
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, externalID, newAkvoraID(), strings.ToLower(email)))
}

// List returns all users, newest first, for the admin console.
func (r *Repository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}

// Block marks a user BLOCKED with the given reason. Admin accounts cannot be blocked.
func (r *Repository) Block(ctx context.Context, id uuid.UUID, reason string) (*models.User, error) {
	const q = `UPDATE users SET status = 'BLOCKED', block_reason = $2, blocked_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND role <> 'admin'
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, reason))
}

// Unblock clears block state and restores ACTIVE status.
func (r *Repository) Unblock(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `UPDATE users SET status = 'ACTIVE', block_reason = '', blocked_at = NULL, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

// SoftDelete marks a user DELETED. The row is retained so registrations and
// certificates keep their references. Admin accounts cannot be deleted.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET status = 'DELETED', updated_at = NOW() WHERE id = $1 AND role <> 'admin'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile updates the caller-editable profile fields.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, firstName, lastName, phone, certificateName string) (*models.User, error) {
	const q = `UPDATE users SET first_name = $2, last_name = $3, phone = $4, certificate_name = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, firstName, lastName, phone, certificateName))
}

// newAkvoraID mints a short member ID shown on certificates and the admin console.
func newAkvoraID() string {
	id := uuid.New().String()
	return fmt.Sprintf("AKV-%d-%s", time.Now().Year(), strings.ToUpper(id[:8]))
}
