package registrations

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessbox/backend/internal/checkin"
	"github.com/blessbox/backend/internal/models"
	"github.com/blessbox/backend/internal/qrcodes"
	"github.com/blessbox/backend/pkg/queue"
)

type fakeStore struct {
	mu    sync.Mutex
	regs  map[uuid.UUID]*models.Registration
	dupes int // Create returns ErrDuplicateToken this many times first
}

func newFakeStore() *fakeStore { return &fakeStore{regs: map[uuid.UUID]*models.Registration{}} }

func (s *fakeStore) Create(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dupes > 0 {
		s.dupes--
		return ErrDuplicateToken
	}
	reg.ID = uuid.New()
	reg.DeliveryStatus = models.DeliveryPending
	reg.TokenStatus = models.TokenActive
	cp := *reg
	s.regs[reg.ID] = &cp
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, setID, id uuid.UUID) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[id]
	if !ok || r.QRCodeSetID != setID {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) ListBySet(_ context.Context, setID uuid.UUID, f ListFilter) ([]*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Registration
	for _, r := range s.regs {
		if r.QRCodeSetID == setID && (f.Status == "" || r.DeliveryStatus == f.Status) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) Cancel(_ context.Context, setID, id uuid.UUID) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[id]
	if !ok || r.QRCodeSetID != setID {
		return nil, ErrNotFound
	}
	if !models.CanTransition(r.DeliveryStatus, models.DeliveryCancelled) {
		return nil, ErrInvalidTransition
	}
	r.DeliveryStatus = models.DeliveryCancelled
	r.TokenStatus = models.TokenRevoked
	cp := *r
	return &cp, nil
}

type fakeSets struct {
	set  *models.QRCodeSet
	code *models.QRCode
}

func (f fakeSets) GetSet(_ context.Context, id uuid.UUID) (*models.QRCodeSet, error) {
	if f.set != nil && f.set.ID == id {
		return f.set, nil
	}
	return nil, nil
}

func (f fakeSets) GetCode(_ context.Context, setID, codeID uuid.UUID) (*models.QRCode, error) {
	if f.code != nil && f.code.ID == codeID && f.code.QRCodeSetID == setID {
		return f.code, nil
	}
	return nil, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []queue.EmailPayload
}

func (m *fakeMailer) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, p)
	return nil
}

type fixture struct {
	router *gin.Engine
	store  *fakeStore
	mailer *fakeMailer
	set    *models.QRCodeSet
	code   *models.QRCode
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	set := &models.QRCodeSet{ID: uuid.New(), OrganizationID: uuid.New(), Name: "Food drive", FormFields: testSchema, IsActive: true}
	code := &models.QRCode{ID: uuid.New(), QRCodeSetID: set.ID, Label: "North gate", Slug: "north-gate"}
	f := &fixture{store: newFakeStore(), mailer: &fakeMailer{}, set: set, code: code}
	h := NewHandler(f.store, fakeSets{set: set, code: code}, f.mailer, checkin.NewTokenGenerator("https://app.blessbox.org"), nil)

	r := gin.New()
	r.POST("/qr-code-sets/:id/register", h.Submit)
	scoped := r.Group("/qr-code-sets/:id", func(c *gin.Context) {
		c.Set(qrcodes.ContextQRCodeSetID, uuid.MustParse(c.Param("id")))
	})
	scoped.GET("/registrations", h.List)
	scoped.GET("/registrations/:registrationId", h.Get)
	scoped.POST("/registrations/:registrationId/cancel", h.Cancel)
	scoped.POST("/emails/resend", h.Resend)
	f.router = r
	return f
}

func (f *fixture) do(method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (f *fixture) submit(t *testing.T) SubmitResponse {
	t.Helper()
	w, _ := f.do(http.MethodPost, "/qr-code-sets/"+f.set.ID.String()+"/register", gin.H{
		"qr_code_id": f.code.ID.String(),
		"data":       map[string]string{"f_name": "Ada Lovelace", "f_mail": "ADA@example.com"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var env struct {
		Data SubmitResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Data
}

func TestSubmitIssuesTokenAndQueuesEmail(t *testing.T) {
	f := newFixture(t)
	res := f.submit(t)

	assert.True(t, checkin.IsValidTokenFormat(res.Token))
	assert.Equal(t, "https://app.blessbox.org/check-in/"+res.Token, res.CheckInURL)
	assert.Equal(t, models.DeliveryPending, res.DeliveryStatus)
	assert.True(t, res.EmailQueued)

	stored := f.store.regs[res.RegistrationID]
	require.NotNil(t, stored)
	assert.Equal(t, testSchema, stored.FormSchema, "schema is snapshotted")
	assert.Equal(t, "North gate", stored.QRLabel)
	assert.Equal(t, "ada@example.com", stored.RegistrationData["f_mail"])

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "ada@example.com", f.mailer.sent[0].RecipientEmail)
	assert.Equal(t, "Ada Lovelace", f.mailer.sent[0].RecipientName)
	assert.Equal(t, res.CheckInURL, f.mailer.sent[0].CheckInURL)
	assert.Equal(t, models.EmailTypeRegistrationConfirmation, f.mailer.sent[0].EmailType)
}

func TestSubmitRetriesTokenCollision(t *testing.T) {
	f := newFixture(t)
	f.store.dupes = 2
	res := f.submit(t)
	assert.NotEqual(t, uuid.Nil, res.RegistrationID)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	w, body := f.do(http.MethodPost, "/qr-code-sets/"+f.set.ID.String()+"/register", gin.H{
		"data": map[string]string{"f_name": "Ada", "f_mail": "nope"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", body["code"])
	assert.Equal(t, map[string]interface{}{"f_mail": "invalid email"}, body["fields"])
	assert.Empty(t, f.store.regs)
}

func TestSubmitNumericValue(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(http.MethodPost, "/qr-code-sets/"+f.set.ID.String()+"/register", gin.H{
		"data": gin.H{"f_name": "Ada", "f_mail": "a@b.co", "f_size": 42},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, f.store.regs, 1)
	for _, reg := range f.store.regs {
		assert.Equal(t, "42", reg.RegistrationData["f_size"])
	}

	w, body := f.do(http.MethodPost, "/qr-code-sets/"+f.set.ID.String()+"/register", gin.H{
		"data": gin.H{"f_name": "Ada", "f_mail": "a@b.co", "f_size": []int{4}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]interface{}{"f_size": "must be a single value"}, body["fields"])
}

func TestSubmitUnknownOrInactiveSet(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(http.MethodPost, "/qr-code-sets/"+uuid.NewString()+"/register", gin.H{"data": map[string]string{}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.set.IsActive = false
	w, _ = f.do(http.MethodPost, "/qr-code-sets/"+f.set.ID.String()+"/register", gin.H{"data": map[string]string{}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitForeignQRCode(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(http.MethodPost, "/qr-code-sets/"+f.set.ID.String()+"/register", gin.H{
		"qr_code_id": uuid.NewString(),
		"data":       map[string]string{"f_name": "Ada", "f_mail": "a@b.co"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelRevokesThenConflicts(t *testing.T) {
	f := newFixture(t)
	res := f.submit(t)
	path := "/qr-code-sets/" + f.set.ID.String() + "/registrations/" + res.RegistrationID.String() + "/cancel"

	w, body := f.do(http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "cancelled", data["delivery_status"])
	assert.Equal(t, "revoked", data["token_status"])

	w, body = f.do(http.MethodPost, path, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", body["code"])

	other := "/qr-code-sets/" + uuid.NewString() + "/registrations/" + res.RegistrationID.String() + "/cancel"
	w, _ = f.do(http.MethodPost, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResend(t *testing.T) {
	f := newFixture(t)
	res := f.submit(t)
	base := "/qr-code-sets/" + f.set.ID.String()

	w, _ := f.do(http.MethodPost, base+"/emails/resend", gin.H{"registration_id": res.RegistrationID.String(), "email_type": "check_in_reminder"})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, f.mailer.sent, 2)
	assert.Equal(t, models.EmailTypeCheckInReminder, f.mailer.sent[1].EmailType)

	w, _ = f.do(http.MethodPost, base+"/emails/resend", gin.H{"registration_id": res.RegistrationID.String(), "email_type": "spam"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.do(http.MethodPost, base+"/registrations/"+res.RegistrationID.String()+"/cancel", nil)
	w, _ = f.do(http.MethodPost, base+"/emails/resend", gin.H{"registration_id": res.RegistrationID.String()})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListAndGet(t *testing.T) {
	f := newFixture(t)
	res := f.submit(t)
	base := "/qr-code-sets/" + f.set.ID.String()

	w, body := f.do(http.MethodGet, base+"/registrations?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := body["data"].([]interface{})
	require.Len(t, list, 1)
	contact := list[0].(map[string]interface{})["contact"].(map[string]interface{})
	assert.Equal(t, "Ada Lovelace", contact["name"])

	w, _ = f.do(http.MethodGet, base+"/registrations?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(http.MethodGet, base+"/registrations/"+res.RegistrationID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(http.MethodGet, base+"/registrations/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
