package emaillogs

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessbox/backend/internal/models"
	"github.com/blessbox/backend/pkg/database"
)

func TestCreateAndList(t *testing.T) {
	dsn := os.Getenv("CHECKIN_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CHECKIN_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, database.PoolOptions{}, nil)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, database.Migrate(ctx, pool, nil))

	var userID, orgID, setID, regID uuid.UUID
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO users (email, password_hash) VALUES ($1, 'x') RETURNING id`,
		uuid.NewString()+"@test.local").Scan(&userID))
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO organizations (name, slug) VALUES ('Test', $1) RETURNING id`,
		"org-"+uuid.NewString()).Scan(&orgID))
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO qr_code_sets (organization_id, name, created_by) VALUES ($1, 'Set', $2) RETURNING id`,
		orgID, userID).Scan(&setID))
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO registrations (qr_code_set_id) VALUES ($1) RETURNING id`,
		setID).Scan(&regID))

	repo := NewRepository(pool)
	sentAt := time.Now().UTC()
	sent := &models.EmailLog{
		QRCodeSetID:    setID,
		RegistrationID: regID,
		EmailType:      models.EmailTypeRegistrationConfirmation,
		RecipientEmail: "ada@example.com",
		Subject:        "You're registered: Set",
		Status:         models.EmailLogStatusSent,
		SentAt:         &sentAt,
	}
	require.NoError(t, repo.Create(ctx, sent))
	assert.NotEqual(t, uuid.Nil, sent.ID)

	failed := &models.EmailLog{
		QRCodeSetID:    setID,
		RegistrationID: regID,
		EmailType:      models.EmailTypeCheckInReminder,
		RecipientEmail: "ada@example.com",
		Status:         models.EmailLogStatusFailed,
		ErrorMessage:   "421 try later",
	}
	require.NoError(t, repo.Create(ctx, failed))

	logs, err := repo.ListBySet(ctx, setID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	byType := map[string]*models.EmailLog{}
	for _, l := range logs {
		byType[l.EmailType] = l
	}
	assert.Equal(t, "You're registered: Set", byType[models.EmailTypeRegistrationConfirmation].Subject)
	assert.NotNil(t, byType[models.EmailTypeRegistrationConfirmation].SentAt)
	assert.Equal(t, "421 try later", byType[models.EmailTypeCheckInReminder].ErrorMessage)
	assert.Nil(t, byType[models.EmailTypeCheckInReminder].SentAt)
	assert.Empty(t, byType[models.EmailTypeCheckInReminder].Subject)
}
