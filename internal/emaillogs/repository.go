package emaillogs

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blessbox/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create records one delivery attempt.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	var subject, errMsg *string
	if el.Subject != "" {
		subject = &el.Subject
	}
	if el.ErrorMessage != "" {
		errMsg = &el.ErrorMessage
	}
	const q = `INSERT INTO email_logs (qr_code_set_id, registration_id, email_type, recipient_email, subject, status, sent_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, el.QRCodeSetID, el.RegistrationID, el.EmailType, el.RecipientEmail,
		subject, el.Status, el.SentAt, errMsg).Scan(&el.ID, &el.CreatedAt)
}

// ListBySet returns email logs for a QR code set, newest first.
func (r *Repository) ListBySet(ctx context.Context, setID uuid.UUID) ([]*models.EmailLog, error) {
	const q = `SELECT id, qr_code_set_id, registration_id, email_type, recipient_email, subject, status, sent_at, error_message, created_at
		FROM email_logs
		WHERE qr_code_set_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, setID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.QRCodeSetID, &el.RegistrationID, &el.EmailType, &el.RecipientEmail, &subject, &el.Status, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, err
		}
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
