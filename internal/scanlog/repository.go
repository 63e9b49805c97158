package scanlog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blessbox/backend/internal/models"
)

// Repository handles check_in_scans. It implements checkin.ScanRecorder.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a scan log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordScan appends one accepted scan.
func (r *Repository) RecordScan(ctx context.Context, scan *models.CheckInScan) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO check_in_scans (registration_id, qr_code_set_id, scanned_by, outcome, scanned_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		scan.RegistrationID, scan.QRCodeSetID, scan.ScannedBy, scan.Outcome, scan.ScannedAt).Scan(&scan.ID)
}

// ListBySet returns the most recent scans for a set.
func (r *Repository) ListBySet(ctx context.Context, setID uuid.UUID, limit int) ([]models.CheckInScan, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, registration_id, qr_code_set_id, scanned_by, outcome, scanned_at
		 FROM check_in_scans WHERE qr_code_set_id = $1 ORDER BY scanned_at DESC LIMIT $2`,
		setID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.CheckInScan
	for rows.Next() {
		var s models.CheckInScan
		if err := rows.Scan(&s.ID, &s.RegistrationID, &s.QRCodeSetID, &s.ScannedBy, &s.Outcome, &s.ScannedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Aggregates summarizes scanning activity for a set.
type Aggregates struct {
	TotalScans    int `json:"total_scans"`
	ReplayScans   int `json:"replay_scans"`
	DistinctStaff int `json:"distinct_staff"`
}

// GetAggregates returns scan totals for analytics.
func (r *Repository) GetAggregates(ctx context.Context, setID uuid.UUID) (*Aggregates, error) {
	const q = `SELECT COUNT(*),
			COUNT(*) FILTER (WHERE outcome = $2),
			COUNT(DISTINCT scanned_by)
		FROM check_in_scans WHERE qr_code_set_id = $1`
	var agg Aggregates
	if err := r.pool.QueryRow(ctx, q, setID, models.ScanOutcomeReplay).Scan(&agg.TotalScans, &agg.ReplayScans, &agg.DistinctStaff); err != nil {
		return nil, err
	}
	return &agg, nil
}
