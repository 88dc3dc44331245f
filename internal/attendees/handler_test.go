package attendees

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

	"github.com/occasio/backend/internal/events"
	"github.com/occasio/backend/internal/models"
)

func TestHandler_VerifyTicketCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture()
	e := f.event("2026-05-10", "11:00", nil)
	res, err := f.svc.Join(context.Background(), e.ID, uuid.New())
	require.NoError(t, err)

	r := gin.New()
	r.POST("/events/:id/verify-attendee", func(c *gin.Context) {
		c.Set(events.ContextEvent, e)
		c.Next()
	}, NewHandler(f.svc).Verify)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/events/"+e.ID.String()+"/verify-attendee", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	payload, _ := json.Marshal(map[string]string{"ticketCode": res.Ticket.TicketCode})
	w := post(string(payload))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data VerifyResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.AttendeeStatusConfirmed, body.Data.Attendee.Status)

	w = post(`{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
