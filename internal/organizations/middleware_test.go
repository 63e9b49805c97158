package organizations

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/blessbox/backend/internal/middleware"
)

type fakeRoles struct {
	roles map[uuid.UUID]string
	err   error
}

func (f fakeRoles) GetUserRole(_ context.Context, _, userID uuid.UUID) (string, error) {
	return f.roles[userID], f.err
}

func newRouter(roles RoleLookup, manage bool, userID uuid.UUID, platformRole string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/organizations/:id", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextUserRole, platformRole)
		c.Next()
	}, RequireMember(roles, manage, nil), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(middleware.ContextOrganizationRole))
	})
	return r
}

func do(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRequireMember(t *testing.T) {
	orgID := uuid.New()
	owner, staff, outsider := uuid.New(), uuid.New(), uuid.New()
	roles := fakeRoles{roles: map[uuid.UUID]string{owner: "owner", staff: "staff"}}

	cases := []struct {
		name   string
		user   uuid.UUID
		role   string
		manage bool
		path   string
		want   int
		body   string
	}{
		{"staff may scan", staff, "staff", false, "/organizations/" + orgID.String(), http.StatusOK, "staff"},
		{"staff may not manage", staff, "staff", true, "/organizations/" + orgID.String(), http.StatusForbidden, ""},
		{"owner may manage", owner, "staff", true, "/organizations/" + orgID.String(), http.StatusOK, "owner"},
		{"outsider refused", outsider, "staff", false, "/organizations/" + orgID.String(), http.StatusForbidden, ""},
		{"admin bypass", outsider, "admin", true, "/organizations/" + orgID.String(), http.StatusOK, "owner"},
		{"bad id", owner, "staff", false, "/organizations/nope", http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(newRouter(roles, tc.manage, tc.user, tc.role), tc.path)
			assert.Equal(t, tc.want, w.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, w.Body.String())
			}
		})
	}
}

func TestRequireMemberLookupError(t *testing.T) {
	roles := fakeRoles{err: errors.New("db down")}
	w := do(newRouter(roles, false, uuid.New(), "staff"), "/organizations/"+uuid.NewString())
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
