package registrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blessbox/backend/internal/checkin"
	"github.com/blessbox/backend/internal/models"
)

var (
	// ErrNotFound is returned when a registration does not exist in the caller's organization.
	ErrNotFound = errors.New("registration not found")
	// ErrInvalidTransition is returned when the requested status change is not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid registration transition")
	// ErrDuplicateToken is returned when an insert collides on check_in_token.
	ErrDuplicateToken = errors.New("duplicate check-in token")
)

// Repository handles registration persistence. It implements checkin.Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ checkin.Store = (*Repository)(nil)

const regColumns = `r.id, r.qr_code_set_id, r.qr_code_id, r.qr_label, r.registration_data, r.form_schema,
	r.delivery_status, r.check_in_token, r.token_status, r.checked_in_at, r.checked_in_by,
	r.registered_at, r.updated_at`

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	var data, schema []byte
	var delivery, token string
	err := row.Scan(&reg.ID, &reg.QRCodeSetID, &reg.QRCodeID, &reg.QRLabel, &data, &schema,
		&delivery, &reg.CheckInToken, &token, &reg.CheckedInAt, &reg.CheckedInBy,
		&reg.RegisteredAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	reg.DeliveryStatus = models.DeliveryStatus(delivery)
	reg.TokenStatus = models.TokenStatus(token)
	if err := json.Unmarshal(data, &reg.RegistrationData); err != nil {
		return nil, fmt.Errorf("decode registration_data: %w", err)
	}
	if err := json.Unmarshal(schema, &reg.FormSchema); err != nil {
		return nil, fmt.Errorf("decode form_schema: %w", err)
	}
	return &reg, nil
}

// scanOne maps pgx.ErrNoRows to nil, nil.
func scanOne(row pgx.Row) (*models.Registration, error) {
	reg, err := scanRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return reg, err
}

func collect(rows pgx.Rows) ([]*models.Registration, error) {
	defer rows.Close()
	var list []*models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}

// Create inserts a registration with its token. reg.CheckInToken must be set.
func (r *Repository) Create(ctx context.Context, reg *models.Registration) error {
	data, err := json.Marshal(reg.RegistrationData)
	if err != nil {
		return err
	}
	schema, err := json.Marshal(reg.FormSchema)
	if err != nil {
		return err
	}
	const q = `INSERT INTO registrations (qr_code_set_id, qr_code_id, qr_label, registration_data, form_schema,
			delivery_status, check_in_token, token_status)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, 'active')
		RETURNING id, delivery_status, token_status, registered_at, updated_at`
	var delivery, token string
	err = r.pool.QueryRow(ctx, q, reg.QRCodeSetID, reg.QRCodeID, reg.QRLabel, data, schema, reg.CheckInToken).
		Scan(&reg.ID, &delivery, &token, &reg.RegisteredAt, &reg.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "registrations_check_in_token_key" {
			return ErrDuplicateToken
		}
		return err
	}
	reg.DeliveryStatus = models.DeliveryStatus(delivery)
	reg.TokenStatus = models.TokenStatus(token)
	return nil
}

// FindRegistrationByToken returns the registration in orgID holding token, or nil if none.
func (r *Repository) FindRegistrationByToken(ctx context.Context, orgID uuid.UUID, token string) (*models.Registration, error) {
	q := `SELECT ` + regColumns + `
		FROM registrations r
		INNER JOIN qr_code_sets s ON s.id = r.qr_code_set_id
		WHERE r.check_in_token = $1 AND s.organization_id = $2`
	return scanOne(r.pool.QueryRow(ctx, q, token, orgID))
}

// ApplyCheckIn marks the token used and the registration checked in, only while the token is active.
// The WHERE clause is the compare-and-set: concurrent callers cannot both match.
func (r *Repository) ApplyCheckIn(ctx context.Context, orgID, registrationID uuid.UUID, checkedInBy string, at time.Time) (*models.Registration, error) {
	q := `UPDATE registrations r
		SET token_status = 'used', delivery_status = 'checked-in',
			checked_in_at = $3, checked_in_by = $4, updated_at = NOW()
		FROM qr_code_sets s
		WHERE r.id = $1 AND s.id = r.qr_code_set_id AND s.organization_id = $2
			AND r.token_status = 'active' AND r.delivery_status IN ('pending', 'delivered')
		RETURNING ` + regColumns
	reg, err := scanOne(r.pool.QueryRow(ctx, q, registrationID, orgID, at, checkedInBy))
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, checkin.ErrCheckInConflict
	}
	return reg, nil
}

// GetByID returns a registration of a set, or nil if none.
func (r *Repository) GetByID(ctx context.Context, setID, id uuid.UUID) (*models.Registration, error) {
	q := `SELECT ` + regColumns + ` FROM registrations r WHERE r.id = $1 AND r.qr_code_set_id = $2`
	return scanOne(r.pool.QueryRow(ctx, q, id, setID))
}

// Get returns a registration by ID regardless of set, or nil if none. For workers.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	q := `SELECT ` + regColumns + ` FROM registrations r WHERE r.id = $1`
	return scanOne(r.pool.QueryRow(ctx, q, id))
}

// ListFilter narrows ListBySet.
type ListFilter struct {
	Status models.DeliveryStatus // empty for all
	Limit  int
	Offset int
}

// ListBySet returns registrations of a set, newest first.
func (r *Repository) ListBySet(ctx context.Context, setID uuid.UUID, f ListFilter) ([]*models.Registration, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	q := `SELECT ` + regColumns + ` FROM registrations r
		WHERE r.qr_code_set_id = $1 AND ($2 = '' OR r.delivery_status = $2)
		ORDER BY r.registered_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, q, setID, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListAllBySet returns every registration of a set, oldest first. For exports.
func (r *Repository) ListAllBySet(ctx context.Context, setID uuid.UUID) ([]*models.Registration, error) {
	q := `SELECT ` + regColumns + ` FROM registrations r WHERE r.qr_code_set_id = $1 ORDER BY r.registered_at ASC`
	rows, err := r.pool.Query(ctx, q, setID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// MarkDelivered moves a pending registration to delivered. It reports whether the row changed;
// registrations already delivered, checked in or cancelled are left alone.
func (r *Repository) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE registrations SET delivery_status = 'delivered', updated_at = NOW()
		WHERE id = $1 AND delivery_status = 'pending'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Cancel moves a pending or delivered registration to cancelled and revokes its token in one statement.
// It returns ErrNotFound if the registration is not in the set and ErrInvalidTransition if it is terminal.
func (r *Repository) Cancel(ctx context.Context, setID, id uuid.UUID) (*models.Registration, error) {
	q := `UPDATE registrations r
		SET delivery_status = 'cancelled', token_status = 'revoked', updated_at = NOW()
		WHERE r.id = $1 AND r.qr_code_set_id = $2
			AND r.delivery_status IN ('pending', 'delivered') AND r.token_status = 'active'
		RETURNING ` + regColumns
	reg, err := scanOne(r.pool.QueryRow(ctx, q, id, setID))
	if err != nil {
		return nil, err
	}
	if reg != nil {
		return reg, nil
	}
	current, err := r.GetByID(ctx, setID, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("%s registration: %w", current.DeliveryStatus, ErrInvalidTransition)
}

// StatusCounts is the number of registrations per delivery status.
type StatusCounts map[models.DeliveryStatus]int

// CountsBySet returns per-status registration counts for a set.
func (r *Repository) CountsBySet(ctx context.Context, setID uuid.UUID) (StatusCounts, error) {
	rows, err := r.pool.Query(ctx, `SELECT delivery_status, COUNT(*) FROM registrations
		WHERE qr_code_set_id = $1 GROUP BY delivery_status`, setID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := StatusCounts{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.DeliveryStatus(status)] = n
	}
	return counts, rows.Err()
}
