package organizations

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occasio/backend/internal/middleware"
	"github.com/occasio/backend/internal/models"
)

func TestHandler_VerifyRejectionReason(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, store, _ := newTestService()
	o, err := svc.Create(context.Background(), uuid.New(), Profile{Name: "Pending Org"})
	require.NoError(t, err)

	r := gin.New()
	r.PATCH("/organizations/:id/verify", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, uuid.New())
		c.Set(middleware.ContextUserRole, string(models.RoleAdmin))
		c.Next()
	}, NewHandler(svc).Verify)

	body, _ := json.Marshal(map[string]any{"approved": false, "rejectionReason": "incomplete documents"})
	req := httptest.NewRequest(http.MethodPatch, "/organizations/"+o.ID.String()+"/verify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored := store.orgs[o.ID]
	assert.Equal(t, models.OrganizationStatusRejected, stored.Status)
	require.NotNil(t, stored.RejectionReason)
	assert.Equal(t, "incomplete documents", *stored.RejectionReason)

	req = httptest.NewRequest(http.MethodPatch, "/organizations/"+o.ID.String()+"/verify", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
