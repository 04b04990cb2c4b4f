package notifications

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akvora/backend/internal/models"
)

// ErrNotFound is returned when a notification does not exist or belongs to
// another user.
var ErrNotFound = errors.New("notification not found")

const notificationColumns = `id, user_external_id, kind, title, message, related_event, related_registration, url, read, created_at`

// Repository persists in-app notifications.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	err := row.Scan(&n.ID, &n.UserExternalID, &n.Kind, &n.Title, &n.Message,
		&n.RelatedEvent, &n.RelatedRegistration, &n.URL, &n.Read, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// Create stores a notification for a user.
func (r *Repository) Create(ctx context.Context, n *models.Notification) error {
	const q = `INSERT INTO notifications (user_external_id, kind, title, message, related_event, related_registration, url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, read, created_at`
	return r.pool.QueryRow(ctx, q, n.UserExternalID, n.Kind, n.Title, n.Message,
		n.RelatedEvent, n.RelatedRegistration, n.URL).Scan(&n.ID, &n.Read, &n.CreatedAt)
}

// ListForUser returns a user's notifications, newest first, capped at limit.
func (r *Repository) ListForUser(ctx context.Context, userExternalID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE user_external_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userExternalID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *n)
	}
	return list, rows.Err()
}

// UnreadCount returns the number of unread notifications for a user.
func (r *Repository) UnreadCount(ctx context.Context, userExternalID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_external_id = $1 AND read = FALSE`, userExternalID).Scan(&count)
	return count, err
}

// MarkRead marks one of the user's notifications as read.
func (r *Repository) MarkRead(ctx context.Context, id uuid.UUID, userExternalID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_external_id = $2`, id, userExternalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks all of the user's notifications as read.
func (r *Repository) MarkAllRead(ctx context.Context, userExternalID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_external_id = $1 AND read = FALSE`, userExternalID)
	return err
}
