package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akvora/backend/internal/models"
)

// Sentinel errors for the registration flow.
var (
	ErrNotFound          = errors.New("registration not found")
	ErrAlreadyRegistered = errors.New("already registered for this event")
	ErrReferenceUsed     = errors.New("payment reference already used")
)

const registrationColumns = `id, user_id, event_id, name_on_certificate, payment_reference,
	status, rejection_reason, rejected_at, admin_message, created_at, updated_at`

// Repository persists registrations. Writes that must stay consistent with
// the participant roster run in a single transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.NameOnCertificate, &reg.PaymentReference,
		&reg.Status, &reg.RejectionReason, &reg.RejectedAt, &reg.AdminMessage, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &reg, nil
}

// mapUniqueViolation translates Postgres unique violations into sentinel
// errors. The constraints arbitrate races the application cannot.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "registrations_payment_reference_key":
			return ErrReferenceUsed
		case "registrations_user_id_event_id_key":
			return ErrAlreadyRegistered
		}
		return ErrReferenceUsed
	}
	return err
}

// GetByID returns a registration by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
}

// GetByUserAndEvent returns the registration for a (user, event) pair.
func (r *Repository) GetByUserAndEvent(ctx context.Context, userID, eventID uuid.UUID) (*models.Registration, error) {
	return scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 AND event_id = $2`, userID, eventID))
}

// ReferenceInUse reports whether another registration already holds the
// payment reference. exclude skips the caller's own row on resubmission.
// This is the fast-fail path; the unique constraint arbitrates races.
func (r *Repository) ReferenceInUse(ctx context.Context, reference string, exclude uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE payment_reference = $1 AND id <> $2)`,
		reference, exclude).Scan(&exists)
	return exists, err
}

// participantSeed carries the fields needed to upsert the participant row
// alongside a registration write.
type participantSeed struct {
	UserExternalID string
	Email          string
	DisplayName    string
}

func upsertParticipant(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, seed participantSeed, status string) error {
	const q = `INSERT INTO event_participants (event_id, user_external_id, email, display_name, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id, user_external_id) DO UPDATE SET status = EXCLUDED.status, rejection_reason = ''`
	_, err := tx.Exec(ctx, q, eventID, seed.UserExternalID, seed.Email, seed.DisplayName, status)
	return err
}

// setParticipantStatus mutates an existing roster row in place. Roster rows
// are never removed on a status change, only by explicit unregister, so
// registered_at survives the round trip through rejected.
func setParticipantStatus(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, userExternalID, status, reason string) error {
	if status != models.StatusRejected {
		reason = ""
	}
	_, err := tx.Exec(ctx, `UPDATE event_participants SET status = $3, rejection_reason = $4
		WHERE event_id = $1 AND user_external_id = $2`, eventID, userExternalID, status, reason)
	return err
}

// Create inserts a registration and, when it is born approved (free events),
// the participant row in the same transaction.
func (r *Repository) Create(ctx context.Context, reg *models.Registration, seed participantSeed) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO registrations (user_id, event_id, name_on_certificate, payment_reference, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, rejection_reason, admin_message, created_at, updated_at`
	err = tx.QueryRow(ctx, q, reg.UserID, reg.EventID, reg.NameOnCertificate, reg.PaymentReference, reg.Status).
		Scan(&reg.ID, &reg.RejectionReason, &reg.AdminMessage, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return mapUniqueViolation(err)
	}

	if reg.Status == models.StatusApproved {
		if err := upsertParticipant(ctx, tx, reg.EventID, seed, models.StatusApproved); err != nil {
			return fmt.Errorf("upsert participant: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Resubmit overwrites a rejected registration in place: new reference and
// certificate name, rejection details cleared, status back to pending (or
// approved for free events, with the participant row restored in the same
// transaction). The row keeps its identity so the audit trail stays on one
// registration.
func (r *Repository) Resubmit(ctx context.Context, reg *models.Registration, seed participantSeed) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `UPDATE registrations
		SET name_on_certificate = $2, payment_reference = $3, status = $4,
			rejection_reason = '', rejected_at = NULL, admin_message = '', updated_at = NOW()
		WHERE id = $1 AND status = 'rejected'
		RETURNING ` + registrationColumns
	updated, err := scanRegistration(tx.QueryRow(ctx, q, reg.ID, reg.NameOnCertificate, reg.PaymentReference, reg.Status))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// row moved out of rejected concurrently
			return ErrAlreadyRegistered
		}
		return mapUniqueViolation(err)
	}
	if updated.Status == models.StatusApproved {
		if err := upsertParticipant(ctx, tx, updated.EventID, seed, models.StatusApproved); err != nil {
			return fmt.Errorf("upsert participant: %w", err)
		}
	} else {
		if err := setParticipantStatus(ctx, tx, updated.EventID, seed.UserExternalID, updated.Status, ""); err != nil {
			return fmt.Errorf("update participant: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	*reg = *updated
	return nil
}

// SetStatus applies an admin transition and keeps the participant roster in
// step within one transaction: approved upserts the participant row, any
// other status mutates an existing row in place. Callers handle idempotent
// self-transitions before calling.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status, reason, adminMessage string, seed participantSeed) (*models.Registration, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `UPDATE registrations
		SET status = $2,
			rejection_reason = CASE WHEN $2 = 'rejected' THEN $3 ELSE '' END,
			rejected_at = CASE WHEN $2 = 'rejected' THEN NOW() ELSE NULL END,
			admin_message = $4,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + registrationColumns
	reg, err := scanRegistration(tx.QueryRow(ctx, q, id, status, reason, adminMessage))
	if err != nil {
		return nil, err
	}

	if status == models.StatusApproved {
		if err := upsertParticipant(ctx, tx, reg.EventID, seed, models.StatusApproved); err != nil {
			return nil, fmt.Errorf("upsert participant: %w", err)
		}
	} else {
		if err := setParticipantStatus(ctx, tx, reg.EventID, seed.UserExternalID, status, reason); err != nil {
			return nil, fmt.Errorf("update participant: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return reg, nil
}

// ListForUser returns a user's registrations joined with event summaries,
// newest first. Meeting link confidentiality is applied by the service.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.RegistrationWithEvent, error) {
	const q = `SELECT r.id, r.user_id, r.event_id, r.name_on_certificate, r.payment_reference,
			r.status, r.rejection_reason, r.rejected_at, r.admin_message, r.created_at, r.updated_at,
			e.id, e.title, e.type, e.date, e.end_date, e.image_url, e.price, e.meeting_link
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.RegistrationWithEvent
	for rows.Next() {
		var item models.RegistrationWithEvent
		err := rows.Scan(&item.ID, &item.UserID, &item.EventID, &item.NameOnCertificate, &item.PaymentReference,
			&item.Status, &item.RejectionReason, &item.RejectedAt, &item.AdminMessage, &item.CreatedAt, &item.UpdatedAt,
			&item.Event.ID, &item.Event.Title, &item.Event.Type, &item.Event.Date, &item.Event.EndDate,
			&item.Event.ImageURL, &item.Event.Price, &item.Event.MeetingLink)
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	return list, rows.Err()
}

// ListForEvent returns all registrations for an event with registrant
// identity, for the admin review queue. Optional status filter.
func (r *Repository) ListForEvent(ctx context.Context, eventID uuid.UUID, status string) ([]models.RegistrationWithUser, error) {
	q := `SELECT r.id, r.user_id, r.event_id, r.name_on_certificate, r.payment_reference,
			r.status, r.rejection_reason, r.rejected_at, r.admin_message, r.created_at, r.updated_at,
			u.first_name, u.last_name, u.email, u.akvora_id, u.external_id, u.certificate_name
		FROM registrations r
		JOIN users u ON u.id = r.user_id
		WHERE r.event_id = $1`
	args := []interface{}{eventID}
	if status != "" {
		q += ` AND r.status = $2`
		args = append(args, status)
	}
	q += ` ORDER BY r.created_at DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.RegistrationWithUser
	for rows.Next() {
		var item models.RegistrationWithUser
		var akvoraID, externalID, certName *string
		err := rows.Scan(&item.ID, &item.UserID, &item.EventID, &item.NameOnCertificate, &item.PaymentReference,
			&item.Status, &item.RejectionReason, &item.RejectedAt, &item.AdminMessage, &item.CreatedAt, &item.UpdatedAt,
			&item.User.FirstName, &item.User.LastName, &item.User.Email, &akvoraID, &externalID, &certName)
		if err != nil {
			return nil, err
		}
		if akvoraID != nil {
			item.User.AkvoraID = *akvoraID
		}
		if externalID != nil {
			item.User.ExternalID = *externalID
		}
		if certName != nil {
			item.User.CertificateName = *certName
		}
		list = append(list, item)
	}
	return list, rows.Err()
}

// History returns a user's combined participation feed: workshop
// registrations plus webinar/internship participant rows, newest first.
func (r *Repository) History(ctx context.Context, userID uuid.UUID, userExternalID string) ([]models.HistoryItem, error) {
	const q = `SELECT e.id, e.title, e.type, e.date, e.end_date, e.image_url, e.instructor, e.meeting_link,
			r.created_at, r.status
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		WHERE r.user_id = $1
	UNION ALL
		SELECT e.id, e.title, e.type, e.date, e.end_date, e.image_url, e.instructor, e.meeting_link,
			p.registered_at, p.status
		FROM event_participants p
		JOIN events e ON e.id = p.event_id
		WHERE p.user_external_id = $2 AND e.type <> 'workshop'
	ORDER BY 9 DESC`
	rows, err := r.pool.Query(ctx, q, userID, userExternalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.HistoryItem
	for rows.Next() {
		var item models.HistoryItem
		err := rows.Scan(&item.ID, &item.Title, &item.Type, &item.Date, &item.EndDate,
			&item.ImageURL, &item.Instructor, &item.MeetingLink, &item.RegisteredAt, &item.RegistrationStatus)
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	return list, rows.Err()
}

// CountByStatus returns pending/approved/rejected totals for the admin
// dashboard.
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM registrations GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{
		models.StatusPending:  0,
		models.StatusApproved: 0,
		models.StatusRejected: 0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
