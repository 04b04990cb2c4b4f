package events

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

// Sentinel errors surfaced to handlers for HTTP status mapping.
var (
	ErrNotFound            = errors.New("event not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrAlreadyRegistered   = errors.New("already registered for this event")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrReasonRequired      = errors.New("rejection reason is required")
)

const eventColumns = `id, title, description, type, date, end_date, duration, location, is_online,
	meeting_link, max_participants, instructor, instructor_bio, image_url, tags, requirements,
	what_you_will_learn, price, upi_id, payee_name, created_by, created_at, updated_at,
	(SELECT COUNT(*) FROM event_participants ep WHERE ep.event_id = events.id) AS participant_count`

// Repository handles event and participant persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Type, &e.Date, &e.EndDate, &e.Duration,
		&e.Location, &e.IsOnline, &e.MeetingLink, &e.MaxParticipants, &e.Instructor, &e.InstructorBio,
		&e.ImageURL, &e.Tags, &e.Requirements, &e.WhatYouWillLearn, &e.Price, &e.UPIID, &e.PayeeName,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt, &e.ParticipantCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e.Status = LifecycleStatus(time.Now(), e.Date, e.EndDate)
	return &e, nil
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, description, type, date, end_date, duration, location, is_online,
			meeting_link, max_participants, instructor, instructor_bio, image_url, tags, requirements,
			what_you_will_learn, price, upi_id, payee_name, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, e.Title, e.Description, e.Type, e.Date, e.EndDate, e.Duration,
		e.Location, e.IsOnline, e.MeetingLink, e.MaxParticipants, e.Instructor, e.InstructorBio,
		e.ImageURL, e.Tags, e.Requirements, e.WhatYouWillLearn, e.Price, e.UPIID, e.PayeeName, e.CreatedBy).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	e.Status = LifecycleStatus(time.Now(), e.Date, e.EndDate)
	return nil
}

// GetByID returns an event by ID with derived lifecycle status.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

// ListFilter narrows the public event listing.
type ListFilter struct {
	Type   string
	Status string // derived lifecycle status; filtered after scan
	Search string
}

// List returns events matching the filter, soonest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events`
	var args []interface{}
	var conds []string
	if f.Type != "" {
		args = append(args, f.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	for i, cond := range conds {
		if i == 0 {
			q += " WHERE " + cond
		} else {
			q += " AND " + cond
		}
	}
	q += " ORDER BY date ASC NULLS LAST"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Update updates an event's editable fields.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET title = $2, description = $3, type = $4, date = $5, end_date = $6,
			duration = $7, location = $8, is_online = $9, meeting_link = $10, max_participants = $11,
			instructor = $12, instructor_bio = $13, image_url = $14, tags = $15, requirements = $16,
			what_you_will_learn = $17, price = $18, upi_id = $19, payee_name = $20, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, e.ID, e.Title, e.Description, e.Type, e.Date, e.EndDate, e.Duration,
		e.Location, e.IsOnline, e.MeetingLink, e.MaxParticipants, e.Instructor, e.InstructorBio,
		e.ImageURL, e.Tags, e.Requirements, e.WhatYouWillLearn, e.Price, e.UPIID, e.PayeeName).
		Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update event: %w", err)
	}
	e.Status = LifecycleStatus(time.Now(), e.Date, e.EndDate)
	return nil
}

// Delete removes an event (participants cascade).
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const participantColumns = `id, event_id, user_external_id, email, display_name, status, rejection_reason, registered_at`

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(&p.ID, &p.EventID, &p.UserExternalID, &p.Email, &p.DisplayName, &p.Status, &p.RejectionReason, &p.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return &p, nil
}

// AddParticipant inserts a participant row with the given status. Returns
// ErrAlreadyRegistered if the (event, user) pair already exists.
func (r *Repository) AddParticipant(ctx context.Context, eventID uuid.UUID, userExternalID, email, displayName, status string) (*models.Participant, error) {
	const q = `INSERT INTO event_participants (event_id, user_external_id, email, display_name, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id, user_external_id) DO NOTHING
		RETURNING ` + participantColumns
	p, err := scanParticipant(r.pool.QueryRow(ctx, q, eventID, userExternalID, email, displayName, status))
	if errors.Is(err, ErrParticipantNotFound) {
		return nil, ErrAlreadyRegistered
	}
	return p, err
}

// GetParticipant returns the participant row for (event, user).
func (r *Repository) GetParticipant(ctx context.Context, eventID uuid.UUID, userExternalID string) (*models.Participant, error) {
	const q = `SELECT ` + participantColumns + ` FROM event_participants WHERE event_id = $1 AND user_external_id = $2`
	return scanParticipant(r.pool.QueryRow(ctx, q, eventID, userExternalID))
}

// ListParticipants returns all participants of an event, newest first.
func (r *Repository) ListParticipants(ctx context.Context, eventID uuid.UUID) ([]models.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+participantColumns+` FROM event_participants WHERE event_id = $1 ORDER BY registered_at DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// ListParticipationForUser returns all participant rows for a user across
// events of the given types, newest event first.
func (r *Repository) ListParticipationForUser(ctx context.Context, userExternalID string, types []string) ([]models.Participant, map[uuid.UUID]*models.Event, error) {
	const q = `SELECT p.id, p.event_id, p.user_external_id, p.email, p.display_name, p.status, p.rejection_reason, p.registered_at
		FROM event_participants p
		JOIN events e ON e.id = p.event_id
		WHERE p.user_external_id = $1 AND e.type = ANY($2)
		ORDER BY e.date DESC NULLS LAST`
	rows, err := r.pool.Query(ctx, q, userExternalID, types)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var list []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, nil, err
		}
		list = append(list, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	eventsByID := make(map[uuid.UUID]*models.Event, len(list))
	for _, p := range list {
		if _, ok := eventsByID[p.EventID]; ok {
			continue
		}
		e, err := r.GetByID(ctx, p.EventID)
		if err != nil {
			return nil, nil, err
		}
		eventsByID[p.EventID] = e
	}
	return list, eventsByID, nil
}

// RemoveParticipant deletes the participant row (explicit unregister).
func (r *Repository) RemoveParticipant(ctx context.Context, eventID uuid.UUID, userExternalID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM event_participants WHERE event_id = $1 AND user_external_id = $2`, eventID, userExternalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// SetParticipantStatus transitions a participant between approval states.
// Any state may move to any other; a self-transition is a no-op returning
// the current row. Rejection requires a reason; leaving rejected clears it.
func (r *Repository) SetParticipantStatus(ctx context.Context, eventID uuid.UUID, userExternalID, status, reason string) (*models.Participant, error) {
	reason, err := normalizeStatusChange(status, reason)
	if err != nil {
		return nil, err
	}

	current, err := r.GetParticipant(ctx, eventID, userExternalID)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}

	const q = `UPDATE event_participants SET status = $3, rejection_reason = $4
		WHERE event_id = $1 AND user_external_id = $2
		RETURNING ` + participantColumns
	return scanParticipant(r.pool.QueryRow(ctx, q, eventID, userExternalID, status, reason))
}

// normalizeStatusChange validates a status transition input and returns the
// reason to store. Rejection needs a non-blank reason; any other status
// stores none.
func normalizeStatusChange(status, reason string) (string, error) {
	if !models.ValidStatus(status) {
		return "", ErrInvalidStatus
	}
	if status != models.StatusRejected {
		return "", nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", ErrReasonRequired
	}
	return reason, nil
}

// TypeStats aggregates per-type counts for the admin dashboard.
type TypeStats struct {
	Type              string `json:"type"`
	Count             int    `json:"count"`
	TotalParticipants int    `json:"totalParticipants"`
	Upcoming          int    `json:"upcoming"`
}

// DashboardStats returns totals and per-type breakdowns.
func (r *Repository) DashboardStats(ctx context.Context) (totalEvents, totalParticipants int, byType []TypeStats, err error) {
	const q = `SELECT e.type, COUNT(DISTINCT e.id),
			COUNT(p.id),
			COUNT(DISTINCT e.id) FILTER (WHERE e.date > NOW())
		FROM events e
		LEFT JOIN event_participants p ON p.event_id = e.id
		GROUP BY e.type`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return 0, 0, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s TypeStats
		if err := rows.Scan(&s.Type, &s.Count, &s.TotalParticipants, &s.Upcoming); err != nil {
			return 0, 0, nil, err
		}
		totalEvents += s.Count
		totalParticipants += s.TotalParticipants
		byType = append(byType, s)
	}
	return totalEvents, totalParticipants, byType, rows.Err()
}
