package qrcodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blessbox/backend/internal/models"
)

// Repository handles QR code set and QR code persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a QR code repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const setColumns = `id, organization_id, name, language, form_fields, is_active, created_by, created_at, updated_at`

func scanSet(row pgx.Row) (*models.QRCodeSet, error) {
	var s models.QRCodeSet
	var fields []byte
	err := row.Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Language, &fields, &s.IsActive, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &s.FormFields); err != nil {
		return nil, fmt.Errorf("decode form_fields: %w", err)
	}
	return &s, nil
}

// CreateSet inserts a new QR code set.
func (r *Repository) CreateSet(ctx context.Context, s *models.QRCodeSet) error {
	fields, err := json.Marshal(s.FormFields)
	if err != nil {
		return err
	}
	const q = `INSERT INTO qr_code_sets (organization_id, name, language, form_fields, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.OrganizationID, s.Name, s.Language, fields, s.IsActive, s.CreatedBy).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetSet returns a set by ID, or nil if none.
func (r *Repository) GetSet(ctx context.Context, id uuid.UUID) (*models.QRCodeSet, error) {
	s, err := scanSet(r.pool.QueryRow(ctx, `SELECT `+setColumns+` FROM qr_code_sets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// GetOrganizationID returns the owning organization of a set. ok is false if the set does not exist.
func (r *Repository) GetOrganizationID(ctx context.Context, setID uuid.UUID) (orgID uuid.UUID, ok bool, err error) {
	err = r.pool.QueryRow(ctx, `SELECT organization_id FROM qr_code_sets WHERE id = $1`, setID).Scan(&orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return orgID, true, nil
}

// ListSets returns the sets of an organization, newest first.
func (r *Repository) ListSets(ctx context.Context, orgID uuid.UUID) ([]*models.QRCodeSet, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+setColumns+` FROM qr_code_sets WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.QRCodeSet
	for rows.Next() {
		s, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// UpdateSet changes name, language, form and active flag. Existing registrations keep their schema snapshot.
func (r *Repository) UpdateSet(ctx context.Context, s *models.QRCodeSet) error {
	fields, err := json.Marshal(s.FormFields)
	if err != nil {
		return err
	}
	const q = `UPDATE qr_code_sets SET name = $2, language = $3, form_fields = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, s.ID, s.Name, s.Language, fields, s.IsActive).Scan(&s.UpdatedAt)
}

// AddCode adds an entry point to a set.
func (r *Repository) AddCode(ctx context.Context, code *models.QRCode) error {
	const q = `INSERT INTO qr_codes (qr_code_set_id, label, slug)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, code.QRCodeSetID, code.Label, code.Slug).Scan(&code.ID, &code.CreatedAt)
}

// GetCode returns an entry point of a set, or nil if it does not belong to the set.
func (r *Repository) GetCode(ctx context.Context, setID, codeID uuid.UUID) (*models.QRCode, error) {
	const q = `SELECT id, qr_code_set_id, label, slug, created_at FROM qr_codes WHERE id = $1 AND qr_code_set_id = $2`
	var c models.QRCode
	err := r.pool.QueryRow(ctx, q, codeID, setID).Scan(&c.ID, &c.QRCodeSetID, &c.Label, &c.Slug, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCodes returns the entry points of a set.
func (r *Repository) ListCodes(ctx context.Context, setID uuid.UUID) ([]models.QRCode, error) {
	const q = `SELECT id, qr_code_set_id, label, slug, created_at FROM qr_codes WHERE qr_code_set_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, setID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.QRCode
	for rows.Next() {
		var c models.QRCode
		if err := rows.Scan(&c.ID, &c.QRCodeSetID, &c.Label, &c.Slug, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
