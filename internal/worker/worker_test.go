package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessbox/backend/internal/mailer"
	"github.com/blessbox/backend/internal/models"
	"github.com/blessbox/backend/pkg/queue"
	"github.com/blessbox/backend/pkg/storage"
)

type fakeSource struct {
	jobs    []*queue.Job
	keys    []string
	retried []*queue.Job
}

func (f *fakeSource) Dequeue(_ context.Context, _ time.Duration, keys ...string) (*queue.Job, string, error) {
	f.keys = keys
	if len(f.jobs) == 0 {
		return nil, "", nil
	}
	j := f.jobs[0]
	f.jobs = f.jobs[1:]
	key, _ := queue.KeyFor(j.Type)
	return j, key, nil
}

func (f *fakeSource) Retry(_ context.Context, job *queue.Job) (bool, error) {
	job.Attempt++
	f.retried = append(f.retried, job)
	return job.Attempt >= queue.MaxRetries, nil
}

type procFunc func(ctx context.Context, job *queue.Job) error

func (f procFunc) Process(ctx context.Context, job *queue.Job) error { return f(ctx, job) }

func job(t *testing.T, typ queue.JobType, payload interface{}) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Job{ID: uuid.NewString(), Type: typ, Payload: raw, CreatedAt: time.Now()}
}

func TestRunnerDispatchesByType(t *testing.T) {
	src := &fakeSource{}
	r := NewRunner(src, nil)
	var got []queue.JobType
	record := procFunc(func(_ context.Context, j *queue.Job) error {
		got = append(got, j.Type)
		return nil
	})
	require.NoError(t, r.Handle(queue.JobTypeEmail, record))
	require.NoError(t, r.Handle(queue.JobTypeExport, record))

	src.jobs = []*queue.Job{
		job(t, queue.JobTypeExport, queue.ExportPayload{}),
		job(t, queue.JobTypeEmail, queue.EmailPayload{}),
	}
	for i := 0; i < 2; i++ {
		handled, err := r.RunOnce(context.Background())
		require.NoError(t, err)
		assert.True(t, handled)
	}
	handled, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, handled)

	assert.Equal(t, []queue.JobType{queue.JobTypeExport, queue.JobTypeEmail}, got)
	assert.Equal(t, []string{queue.QueueEmails, queue.QueueExports}, src.keys)
	assert.Empty(t, src.retried)
}

func TestRunnerRetriesFailedJobs(t *testing.T) {
	src := &fakeSource{}
	r := NewRunner(src, nil)
	require.NoError(t, r.Handle(queue.JobTypeEmail, procFunc(func(context.Context, *queue.Job) error {
		return errors.New("smtp down")
	})))
	src.jobs = []*queue.Job{job(t, queue.JobTypeEmail, queue.EmailPayload{})}

	handled, err := r.RunOnce(context.Background())
	assert.True(t, handled)
	require.Error(t, err)
	require.Len(t, src.retried, 1)
	assert.Equal(t, 1, src.retried[0].Attempt)
}

func TestRunnerRejectsUnknownType(t *testing.T) {
	r := NewRunner(&fakeSource{}, nil)
	assert.Error(t, r.Handle("sms", procFunc(func(context.Context, *queue.Job) error { return nil })))
}

func TestRunStopsOnCancel(t *testing.T) {
	r := NewRunner(&fakeSource{}, nil)
	r.poll = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type fakeRegs struct {
	mu        sync.Mutex
	regs      map[uuid.UUID]*models.Registration
	delivered []uuid.UUID
	markErr   error
}

func (f *fakeRegs) Get(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[id], nil
}

func (f *fakeRegs) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, id)
	if f.markErr != nil {
		return false, f.markErr
	}
	r := f.regs[id]
	if r.DeliveryStatus != models.DeliveryPending {
		return false, nil
	}
	r.DeliveryStatus = models.DeliveryDelivered
	return true, nil
}

func (f *fakeRegs) ListAllBySet(_ context.Context, setID uuid.UUID) ([]*models.Registration, error) {
	var out []*models.Registration
	for _, r := range f.regs {
		if r.QRCodeSetID == setID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeSets map[uuid.UUID]*models.QRCodeSet

func (f fakeSets) GetSet(_ context.Context, id uuid.UUID) (*models.QRCodeSet, error) {
	return f[id], nil
}

type fakeSender struct {
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeLogs struct{ entries []models.EmailLog }

func (f *fakeLogs) Create(_ context.Context, el *models.EmailLog) error {
	f.entries = append(f.entries, *el)
	return nil
}

var testFields = []models.FormField{
	{ID: "name", Label: "Name", Type: models.FieldTypeText, Semantic: models.SemanticName},
	{ID: "email", Label: "Email", Type: models.FieldTypeEmail, Semantic: models.SemanticEmail},
}

func fixture(status models.DeliveryStatus) (*fakeRegs, fakeSets, *models.Registration) {
	set := &models.QRCodeSet{ID: uuid.New(), Name: "Harvest Supper", FormFields: testFields}
	tok := "3f2b8c1e-9a4d-4e7f-8b6a-1c2d3e4f5a6b"
	reg := &models.Registration{
		ID:               uuid.New(),
		QRCodeSetID:      set.ID,
		QRLabel:          "Front door",
		RegistrationData: map[string]string{"name": "Ada", "email": "ada@example.com"},
		FormSchema:       testFields,
		DeliveryStatus:   status,
		CheckInToken:     &tok,
		TokenStatus:      models.TokenActive,
		RegisteredAt:     time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	return &fakeRegs{regs: map[uuid.UUID]*models.Registration{reg.ID: reg}}, fakeSets{set.ID: set}, reg
}

func emailJob(t *testing.T, reg *models.Registration) *queue.Job {
	return job(t, queue.JobTypeEmail, queue.EmailPayload{
		EmailType:      models.EmailTypeRegistrationConfirmation,
		QRCodeSetID:    reg.QRCodeSetID,
		RegistrationID: reg.ID,
		RecipientEmail: "ada@example.com",
		RecipientName:  "Ada",
		CheckInURL:     "https://blessbox.org/check-in/" + *reg.CheckInToken,
	})
}

func TestDeliverySendsAndMarksDelivered(t *testing.T) {
	regs, sets, reg := fixture(models.DeliveryPending)
	sender := &fakeSender{}
	logs := &fakeLogs{}
	p := NewDeliveryProcessor(regs, sets, sender, logs, nil)

	require.NoError(t, p.Process(context.Background(), emailJob(t, reg)))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ada@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Subject, "Harvest Supper")
	assert.Contains(t, sender.sent[0].TextBody, "/check-in/"+*reg.CheckInToken)
	assert.Equal(t, models.DeliveryDelivered, reg.DeliveryStatus)

	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.EmailLogStatusSent, logs.entries[0].Status)
	assert.NotNil(t, logs.entries[0].SentAt)
}

func TestDeliveryResendKeepsDeliveredStatus(t *testing.T) {
	regs, sets, reg := fixture(models.DeliveryDelivered)
	p := NewDeliveryProcessor(regs, sets, &fakeSender{}, &fakeLogs{}, nil)

	require.NoError(t, p.Process(context.Background(), emailJob(t, reg)))
	assert.Equal(t, models.DeliveryDelivered, reg.DeliveryStatus)
}

func TestDeliverySkipsTerminalRegistrations(t *testing.T) {
	for _, st := range []models.DeliveryStatus{models.DeliveryCancelled, models.DeliveryCheckedIn} {
		regs, sets, reg := fixture(st)
		sender := &fakeSender{}
		logs := &fakeLogs{}
		p := NewDeliveryProcessor(regs, sets, sender, logs, nil)

		require.NoError(t, p.Process(context.Background(), emailJob(t, reg)), st)
		assert.Empty(t, sender.sent, st)
		assert.Empty(t, logs.entries, st)
		assert.Empty(t, regs.delivered, st)
	}
}

func TestDeliveryFailureIsLoggedAndReturned(t *testing.T) {
	regs, sets, reg := fixture(models.DeliveryPending)
	logs := &fakeLogs{}
	p := NewDeliveryProcessor(regs, sets, &fakeSender{err: errors.New("421 try later")}, logs, nil)

	err := p.Process(context.Background(), emailJob(t, reg))
	require.Error(t, err)
	assert.Equal(t, models.DeliveryPending, reg.DeliveryStatus)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.EmailLogStatusFailed, logs.entries[0].Status)
	assert.Contains(t, logs.entries[0].ErrorMessage, "421")
}

func TestDeliveryMarkFailureAfterSendIsNotRetried(t *testing.T) {
	regs, sets, reg := fixture(models.DeliveryPending)
	regs.markErr = errors.New("connection reset")
	sender := &fakeSender{}
	logs := &fakeLogs{}

	require.NoError(t, NewDeliveryProcessor(regs, sets, sender, logs, nil).Process(context.Background(), emailJob(t, reg)))
	assert.Len(t, sender.sent, 1)
	assert.Equal(t, models.DeliveryPending, reg.DeliveryStatus)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.EmailLogStatusSent, logs.entries[0].Status)
}

func TestDeliveryMissingRegistrationIsDropped(t *testing.T) {
	regs, sets, reg := fixture(models.DeliveryPending)
	j := emailJob(t, reg)
	delete(regs.regs, reg.ID)
	sender := &fakeSender{}

	require.NoError(t, NewDeliveryProcessor(regs, sets, sender, &fakeLogs{}, nil).Process(context.Background(), j))
	assert.Empty(t, sender.sent)
}

type memObjects struct {
	bucket  string
	objects map[string][]byte
}

func (m *memObjects) ExportsBucket() string { return m.bucket }

func (m *memObjects) Upload(_ context.Context, bucket, key, _ string, body io.Reader) error {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(body); err != nil {
		return err
	}
	m.objects[bucket+"/"+key] = buf.Bytes()
	return nil
}

func TestExportWritesDocument(t *testing.T) {
	regs, sets, reg := fixture(models.DeliveryDelivered)
	store := &memObjects{bucket: "exports", objects: map[string][]byte{}}
	p := NewExportProcessor(regs, sets, store, nil)
	at := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	exportID := storage.NewExportID()
	require.NoError(t, p.Process(context.Background(), job(t, queue.JobTypeExport, queue.ExportPayload{
		ExportID:    exportID,
		QRCodeSetID: reg.QRCodeSetID,
		RequestedBy: "owner@example.com",
	})))

	key, err := storage.ExportKey(reg.QRCodeSetID.String(), exportID)
	require.NoError(t, err)
	raw, ok := store.objects["exports/"+key]
	require.True(t, ok)

	var doc ExportDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "Harvest Supper", doc.SetName)
	assert.Equal(t, at, doc.GeneratedAt)
	require.Len(t, doc.Registrations, 1)
	assert.Equal(t, "ada@example.com", doc.Registrations[0].Contact.Email)
	assert.NotContains(t, string(raw), *reg.CheckInToken)
}

func TestExportRejectsBadID(t *testing.T) {
	regs, sets, reg := fixture(models.DeliveryDelivered)
	p := NewExportProcessor(regs, sets, &memObjects{objects: map[string][]byte{}}, nil)

	err := p.Process(context.Background(), job(t, queue.JobTypeExport, queue.ExportPayload{
		ExportID:    "../../etc",
		QRCodeSetID: reg.QRCodeSetID,
	}))
	assert.ErrorIs(t, err, storage.ErrInvalidExportID)
}
