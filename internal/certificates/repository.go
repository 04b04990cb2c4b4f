package certificates

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akvora/backend/internal/models"
)

var (
	ErrNotFound      = errors.New("certificate not found")
	ErrAlreadyIssued = errors.New("certificate already issued for this registration")
)

const certificateColumns = `id, registration_id, serial, object_key, issued_by, issued_at`

// Repository persists issued certificates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a certificates repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCertificate(row pgx.Row) (*models.Certificate, error) {
	var cert models.Certificate
	err := row.Scan(&cert.ID, &cert.RegistrationID, &cert.Serial, &cert.ObjectKey, &cert.IssuedBy, &cert.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cert, nil
}

// NewSerial generates a verifiable certificate serial: AKV-CERT-<year>-<10 hex>.
func NewSerial() (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("AKV-CERT-%d-%s", time.Now().Year(), hex.EncodeToString(buf)), nil
}

// Create stores an issued certificate. One certificate per registration.
func (r *Repository) Create(ctx context.Context, cert *models.Certificate) error {
	const q = `INSERT INTO certificates (registration_id, serial, object_key, issued_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, issued_at`
	err := r.pool.QueryRow(ctx, q, cert.RegistrationID, cert.Serial, cert.ObjectKey, cert.IssuedBy).
		Scan(&cert.ID, &cert.IssuedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyIssued
		}
		return err
	}
	return nil
}

// GetByRegistration returns the certificate issued for a registration.
func (r *Repository) GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*models.Certificate, error) {
	return scanCertificate(r.pool.QueryRow(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE registration_id = $1`, registrationID))
}

// GetBySerial returns a certificate by its public serial, for verification.
func (r *Repository) GetBySerial(ctx context.Context, serial string) (*models.Certificate, error) {
	return scanCertificate(r.pool.QueryRow(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE serial = $1`, serial))
}

// CertificateDetail joins a certificate with the event and recipient name,
// for verification pages and the user's own list.
type CertificateDetail struct {
	models.Certificate
	EventID       uuid.UUID  `json:"eventId"`
	EventTitle    string     `json:"eventTitle"`
	EventType     string     `json:"eventType"`
	EventDate     *time.Time `json:"eventDate,omitempty"`
	RecipientName string     `json:"recipientName"`
}

const detailQuery = `SELECT c.id, c.registration_id, c.serial, c.object_key, c.issued_by, c.issued_at,
		e.id, e.title, e.type, e.date, r.name_on_certificate
	FROM certificates c
	JOIN registrations r ON r.id = c.registration_id
	JOIN events e ON e.id = r.event_id`

func scanDetail(row pgx.Row) (*CertificateDetail, error) {
	var d CertificateDetail
	err := row.Scan(&d.ID, &d.RegistrationID, &d.Serial, &d.ObjectKey, &d.IssuedBy, &d.IssuedAt,
		&d.EventID, &d.EventTitle, &d.EventType, &d.EventDate, &d.RecipientName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// GetOwned returns a certificate by ID only when the underlying
// registration belongs to userID.
func (r *Repository) GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.Certificate, error) {
	const q = `SELECT c.id, c.registration_id, c.serial, c.object_key, c.issued_by, c.issued_at
		FROM certificates c
		JOIN registrations r ON r.id = c.registration_id
		WHERE c.id = $1 AND r.user_id = $2`
	return scanCertificate(r.pool.QueryRow(ctx, q, id, userID))
}

// DetailBySerial returns the public verification view for a serial.
func (r *Repository) DetailBySerial(ctx context.Context, serial string) (*CertificateDetail, error) {
	return scanDetail(r.pool.QueryRow(ctx, detailQuery+` WHERE c.serial = $1`, serial))
}

// ListForUser returns all certificates issued to a user's registrations.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]CertificateDetail, error) {
	rows, err := r.pool.Query(ctx, detailQuery+` WHERE r.user_id = $1 ORDER BY c.issued_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []CertificateDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *d)
	}
	return list, rows.Err()
}

// Delete revokes a certificate.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (*models.Certificate, error) {
	cert, err := scanCertificate(r.pool.QueryRow(ctx,
		`DELETE FROM certificates WHERE id = $1 RETURNING `+certificateColumns, id))
	if err != nil {
		return nil, err
	}
	return cert, nil
}
