package organizations

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occasio/backend/internal/clock"
	"github.com/occasio/backend/internal/middleware"
	"github.com/occasio/backend/internal/models"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	orgs    map[uuid.UUID]*models.Organization
	members []models.OrganizationUser
}

func newFakeStore() *fakeStore {
	return &fakeStore{orgs: map[uuid.UUID]*models.Organization{}}
}

func (s *fakeStore) Create(_ context.Context, o *models.Organization) error {
	for _, existing := range s.orgs {
		if existing.Name == o.Name {
			return errDuplicateName
		}
	}
	o.ID = uuid.New()
	cp := *o
	s.orgs[o.ID] = &cp
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	o, ok := s.orgs[id]
	if !ok {
		return nil, errOrgNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *fakeStore) List(_ context.Context, f ListFilter) ([]models.Organization, error) {
	var out []models.Organization
	for _, o := range s.orgs {
		if f.Status == "" || o.Status == f.Status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *fakeStore) ListPending(ctx context.Context) ([]models.Organization, error) {
	return s.List(ctx, ListFilter{Status: models.OrganizationStatusPending})
}

func (s *fakeStore) ListForUser(_ context.Context, userID uuid.UUID) ([]models.Organization, error) {
	var out []models.Organization
	for _, m := range s.members {
		if m.UserID == userID {
			out = append(out, *s.orgs[m.OrganizationID])
		}
	}
	return out, nil
}

func (s *fakeStore) Update(_ context.Context, o *models.Organization) error {
	cp := *o
	s.orgs[o.ID] = &cp
	return nil
}

func (s *fakeStore) SetVerification(_ context.Context, o *models.Organization) error {
	cp := *o
	s.orgs[o.ID] = &cp
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := s.orgs[id]; !ok {
		return errOrgNotFound
	}
	delete(s.orgs, id)
	return nil
}

func (s *fakeStore) AddMember(_ context.Context, m *models.OrganizationUser) error {
	for _, existing := range s.members {
		if existing.OrganizationID == m.OrganizationID && existing.UserID == m.UserID {
			return errAlreadyMember
		}
	}
	m.ID = uuid.New()
	s.members = append(s.members, *m)
	return nil
}

func (s *fakeStore) GetMembership(_ context.Context, orgID, userID uuid.UUID) (*models.OrganizationUser, error) {
	for _, m := range s.members {
		if m.OrganizationID == orgID && m.UserID == userID {
			cp := m
			return &cp, nil
		}
	}
	return nil, errMemberNotFound
}

func (s *fakeStore) ListMembers(_ context.Context, orgID uuid.UUID) ([]models.OrganizationMember, error) {
	var out []models.OrganizationMember
	for _, m := range s.members {
		if m.OrganizationID == orgID {
			out = append(out, models.OrganizationMember{OrganizationUser: m})
		}
	}
	return out, nil
}

type fakeUsers map[string]*models.User

func (u fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if user, ok := u[email]; ok {
		return user, nil
	}
	return nil, models.NotFound("User not found")
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

func newTestService() (*Service, *fakeStore, fakeUsers) {
	store := newFakeStore()
	users := fakeUsers{}
	return NewService(store, users, passTx{}, clock.NewFixed(testNow), nil), store, users
}

func createApproved(t *testing.T, svc *Service, store *fakeStore, owner uuid.UUID) *models.Organization {
	t.Helper()
	o, err := svc.Create(context.Background(), owner, Profile{Name: "Org " + owner.String()[:8]})
	require.NoError(t, err)
	store.orgs[o.ID].Status = models.OrganizationStatusApproved
	return o
}

func TestCreate_PendingWithPrimaryOwner(t *testing.T) {
	svc, store, _ := newTestService()
	creator := uuid.New()

	o, err := svc.Create(context.Background(), creator, Profile{Name: "  Tech Meetups  ", Email: "hi@tech.dev"})
	require.NoError(t, err)
	assert.Equal(t, "Tech Meetups", o.Name)
	assert.Equal(t, models.OrganizationStatusPending, o.Status)

	m, err := store.GetMembership(context.Background(), o.ID, creator)
	require.NoError(t, err)
	assert.True(t, m.IsPrimary)
	assert.Equal(t, models.OrgRoleOwner, m.Role)

	_, err = svc.Create(context.Background(), uuid.New(), Profile{Name: "Tech Meetups"})
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Equal(t, "Organization name already exists", err.Error())

	_, err = svc.Create(context.Background(), creator, Profile{Name: "   "})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	adminID := uuid.New()

	approved, err := svc.Create(ctx, uuid.New(), Profile{Name: "Approved"})
	require.NoError(t, err)
	reason := "should be ignored"
	got, err := svc.Verify(ctx, approved.ID, adminID, true, &reason)
	require.NoError(t, err)
	assert.Equal(t, models.OrganizationStatusApproved, got.Status)
	assert.Nil(t, got.RejectionReason)
	require.NotNil(t, got.VerifiedAt)
	assert.Equal(t, testNow, *got.VerifiedAt)
	assert.Equal(t, adminID, *got.VerifiedBy)

	rejected, err := svc.Create(ctx, uuid.New(), Profile{Name: "Rejected"})
	require.NoError(t, err)
	reason = "incomplete details"
	got, err = svc.Verify(ctx, rejected.ID, adminID, false, &reason)
	require.NoError(t, err)
	assert.Equal(t, models.OrganizationStatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "incomplete details", *got.RejectionReason)

	// No transition out of approved or rejected.
	_, err = svc.Verify(ctx, rejected.ID, adminID, true, nil)
	assert.ErrorIs(t, err, models.ErrInvalidOperation)
	_, err = svc.Verify(ctx, approved.ID, adminID, false, nil)
	assert.ErrorIs(t, err, models.ErrInvalidOperation)

	_, err = svc.Verify(ctx, uuid.New(), adminID, true, nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, "Organization not found", err.Error())
}

func TestUpdate_RequiresMembership(t *testing.T) {
	svc, store, _ := newTestService()
	o := createApproved(t, svc, store, uuid.New())

	name := "Hijacked"
	_, err := svc.Update(context.Background(), o.ID, uuid.New(), UpdateInput{Name: &name})
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Equal(t, "You are not authorized to update this organization", err.Error())
	assert.NotEqual(t, "Hijacked", store.orgs[o.ID].Name)
}

func TestUpdate_RequiresApproval(t *testing.T) {
	svc, store, _ := newTestService()
	owner := uuid.New()
	o, err := svc.Create(context.Background(), owner, Profile{Name: "Pending"})
	require.NoError(t, err)

	desc := "new"
	_, err = svc.Update(context.Background(), o.ID, owner, UpdateInput{Description: &desc})
	assert.ErrorIs(t, err, models.ErrInvalidOperation)
	assert.Equal(t, "Organization must be approved before updating", err.Error())
	assert.Empty(t, store.orgs[o.ID].Description)
}

func TestUpdate_AppliesProfileOnly(t *testing.T) {
	svc, store, _ := newTestService()
	owner := uuid.New()
	o := createApproved(t, svc, store, owner)

	desc, site := "Monthly meetups", "https://tech.dev"
	got, err := svc.Update(context.Background(), o.ID, owner, UpdateInput{Description: &desc, Website: &site})
	require.NoError(t, err)
	assert.Equal(t, "Monthly meetups", got.Description)
	assert.Equal(t, "https://tech.dev", got.Website)
	assert.Equal(t, o.Name, got.Name)
	assert.Equal(t, models.OrganizationStatusApproved, store.orgs[o.ID].Status)
}

func TestAddMember(t *testing.T) {
	ctx := context.Background()
	svc, store, users := newTestService()
	owner := uuid.New()
	o := createApproved(t, svc, store, owner)
	invitee := &models.User{ID: uuid.New(), Email: "new@tech.dev"}
	users[invitee.Email] = invitee

	m, err := svc.AddMember(ctx, o.ID, models.Actor{UserID: owner, Role: models.RoleUser}, " New@Tech.dev ")
	require.NoError(t, err)
	assert.Equal(t, invitee.ID, m.UserID)
	assert.Equal(t, models.OrgRoleMember, m.Role)

	// Plain members cannot add others.
	_, err = svc.AddMember(ctx, o.ID, models.Actor{UserID: invitee.ID, Role: models.RoleUser}, "x@tech.dev")
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = svc.AddMember(ctx, o.ID, models.Actor{UserID: owner, Role: models.RoleUser}, "new@tech.dev")
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = svc.AddMember(ctx, o.ID, models.Actor{UserID: uuid.New(), Role: models.RoleAdmin}, "ghost@tech.dev")
	assert.ErrorIs(t, err, models.ErrNotFound)

	members, err := svc.ListMembers(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestDelete(t *testing.T) {
	svc, store, _ := newTestService()
	o := createApproved(t, svc, store, uuid.New())

	require.NoError(t, svc.Delete(context.Background(), o.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), o.ID), models.ErrNotFound)
}

func TestRequireMember(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, store, _ := newTestService()
	owner := uuid.New()
	o := createApproved(t, svc, store, owner)
	h := NewHandler(svc)

	route := func(actor models.Actor) *gin.Engine {
		r := gin.New()
		r.GET("/organizations/:id/members", func(c *gin.Context) {
			c.Set(middleware.ContextUserID, actor.UserID)
			c.Set(middleware.ContextUserRole, string(actor.Role))
			c.Next()
		}, RequireMember(svc), h.ListMembers)
		return r
	}
	get := func(r *gin.Engine, id string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/organizations/"+id+"/members", nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, get(route(models.Actor{UserID: owner, Role: models.RoleUser}), o.ID.String()))
	assert.Equal(t, http.StatusOK, get(route(models.Actor{UserID: uuid.New(), Role: models.RoleAdmin}), o.ID.String()))
	assert.Equal(t, http.StatusForbidden, get(route(models.Actor{UserID: uuid.New(), Role: models.RoleUser}), o.ID.String()))
	assert.Equal(t, http.StatusNotFound, get(route(models.Actor{UserID: owner, Role: models.RoleUser}), uuid.NewString()))
	assert.Equal(t, http.StatusBadRequest, get(route(models.Actor{UserID: owner, Role: models.RoleUser}), "nope"))
}
