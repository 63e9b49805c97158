package exports

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessbox/backend/internal/middleware"
	"github.com/blessbox/backend/internal/qrcodes"
	"github.com/blessbox/backend/pkg/queue"
	"github.com/blessbox/backend/pkg/storage"
)

type fakeQueue struct {
	jobs []queue.ExportPayload
	err  error
}

func (f *fakeQueue) EnqueueExport(_ context.Context, p queue.ExportPayload) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, p)
	return nil
}

type fakeObjects struct{ keys map[string]bool }

func (f *fakeObjects) Exists(_ context.Context, bucket, key string) (bool, error) {
	return f.keys[bucket+"/"+key], nil
}

func (f *fakeObjects) GeneratePresignedDownloadURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://s3.test/" + bucket + "/" + key + "?sig=x", nil
}

func (f *fakeObjects) ExportsBucket() string        { return "exports" }
func (f *fakeObjects) PresignExpire() time.Duration { return 10 * time.Minute }

type envelope struct {
	Success bool           `json:"success"`
	Data    StatusResponse `json:"data"`
}

func router(h *Handler, setID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/qr-code-sets/:id", func(c *gin.Context) {
		c.Set(qrcodes.ContextQRCodeSetID, setID)
		c.Set(middleware.ContextUserEmail, "owner@example.com")
		c.Next()
	})
	g.POST("/exports", h.Create)
	g.GET("/exports/:exportId", h.Get)
	return r
}

func do(t *testing.T, r http.Handler, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestCreateQueuesExport(t *testing.T) {
	setID := uuid.New()
	q := &fakeQueue{}
	r := router(NewHandler(q, &fakeObjects{}, nil), setID)

	w, body := do(t, r, http.MethodPost, "/qr-code-sets/"+setID.String()+"/exports")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "pending", body.Data.Status)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, body.Data.ExportID, q.jobs[0].ExportID)
	assert.Equal(t, setID, q.jobs[0].QRCodeSetID)
	assert.Equal(t, "owner@example.com", q.jobs[0].RequestedBy)
	assert.False(t, body.Data.RequestedAt.IsZero())
}

func TestCreateQueueFailure(t *testing.T) {
	setID := uuid.New()
	r := router(NewHandler(&fakeQueue{err: errors.New("redis down")}, &fakeObjects{}, nil), setID)

	w, body := do(t, r, http.MethodPost, "/qr-code-sets/"+setID.String()+"/exports")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, body.Success)
}

func TestGetPendingThenReady(t *testing.T) {
	setID := uuid.New()
	objects := &fakeObjects{keys: map[string]bool{}}
	r := router(NewHandler(&fakeQueue{}, objects, nil), setID)
	exportID := storage.NewExportID()
	path := "/qr-code-sets/" + setID.String() + "/exports/" + exportID

	w, body := do(t, r, http.MethodGet, path)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "pending", body.Data.Status)
	assert.Empty(t, body.Data.DownloadURL)

	key, err := storage.ExportKey(setID.String(), exportID)
	require.NoError(t, err)
	objects.keys["exports/"+key] = true

	w, body = do(t, r, http.MethodGet, path)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body.Data.Status)
	assert.True(t, strings.Contains(body.Data.DownloadURL, key))
	assert.Equal(t, 600, body.Data.ExpiresIn)
}

func TestGetInvalidExportID(t *testing.T) {
	setID := uuid.New()
	r := router(NewHandler(&fakeQueue{}, &fakeObjects{}, nil), setID)

	w, _ := do(t, r, http.MethodGet, "/qr-code-sets/"+setID.String()+"/exports/not-a-ksuid")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
