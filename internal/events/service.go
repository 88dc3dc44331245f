package events

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/pagination"
	"github.com/occasio/backend/pkg/storage"
)

// Store is the event persistence used by Service.
type Store interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetSummary(ctx context.Context, id uuid.UUID) (*models.EventSummary, error)
	List(ctx context.Context, f ListFilter, p pagination.Params) ([]models.EventSummary, int, error)
	Update(ctx context.Context, e *models.Event) error
	Cancel(ctx context.Context, id uuid.UUID) error
	UpdateImage(ctx context.Context, id uuid.UUID, url string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Organizations answers ownership questions about organizations.
type Organizations interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
}

// Attendees lists active registrations of an event, with user emails.
type Attendees interface {
	ListActiveByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error)
}

// ImageStore stores banner images.
type ImageStore interface {
	UploadBanner(ctx context.Context, contentType string, body io.Reader, size int64) (string, error)
	DeleteBanner(ctx context.Context, url string) error
	PresignBannerUpload(ctx context.Context, contentType string) (uploadURL, publicURL string, err error)
	PresignExpire() time.Duration
	OwnsURL(url string) bool
}

// Reminders sends event reminder emails.
type Reminders interface {
	Enabled() bool
	EventReminder(ctx context.Context, e *models.Event, a models.Attendee) error
}

// Service implements event management.
type Service struct {
	store     Store
	orgs      Organizations
	attendees Attendees
	images    ImageStore
	reminders Reminders
	status    *StatusResolver
	logger    *zap.Logger
}

// Deps groups the optional collaborators of Service. Images and Reminders may be nil.
type Deps struct {
	Store     Store
	Orgs      Organizations
	Attendees Attendees
	Images    ImageStore
	Reminders Reminders
	Status    *StatusResolver
}

// NewService creates an event service.
func NewService(d Deps, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     d.Store,
		orgs:      d.Orgs,
		attendees: d.Attendees,
		images:    d.Images,
		reminders: d.Reminders,
		status:    d.Status,
		logger:    logger,
	}
}

// Status returns the service's status resolver.
func (s *Service) Status() *StatusResolver { return s.status }

// CreateInput is the data for a new event.
type CreateInput struct {
	Title          string
	Description    string
	Location       string
	Category       string
	EventDate      string
	StartTime      string
	EndTime        *string
	MaxAttendees   *int
	OrganizationID *uuid.UUID
	// Image is an optional base64 image data URL.
	Image string
}

// UpdateInput is a partial event update. Nil fields are left unchanged; an empty EndTime clears it.
type UpdateInput struct {
	Title        *string
	Description  *string
	Location     *string
	Category     *string
	EventDate    *string
	StartTime    *string
	EndTime      *string
	MaxAttendees *int
}

func validateSchedule(start string, end *string) error {
	sh, sm, ok := ParseClock(start)
	if !ok {
		return models.Validation("start_time must be HH:MM")
	}
	if end == nil {
		return nil
	}
	eh, em, ok := ParseClock(*end)
	if !ok {
		return models.Validation("end_time must be HH:MM")
	}
	if eh*60+em <= sh*60+sm {
		return models.Validation("end_time must be after start_time")
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, models.Validation("event_date must be YYYY-MM-DD")
	}
	return d, nil
}

func validateCapacity(n *int) error {
	if n != nil && *n <= 0 {
		return models.Validation("max_attendees must be greater than 0")
	}
	return nil
}

// Create publishes a new event owned by the actor or by one of the actor's approved organizations.
func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput) (*models.EventSummary, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, models.Validation("title is required")
	}
	date, err := parseDate(in.EventDate)
	if err != nil {
		return nil, err
	}
	if in.EndTime != nil && strings.TrimSpace(*in.EndTime) == "" {
		in.EndTime = nil
	}
	if err := validateSchedule(in.StartTime, in.EndTime); err != nil {
		return nil, err
	}
	if err := validateCapacity(in.MaxAttendees); err != nil {
		return nil, err
	}

	owner := models.IndividualOwner(actor.UserID)
	if in.OrganizationID != nil {
		if err := s.ensureCanPublishFor(ctx, *in.OrganizationID, actor); err != nil {
			return nil, err
		}
		owner = models.OrganizationOwner(*in.OrganizationID)
	}

	e := &models.Event{
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Location:     in.Location,
		Category:     in.Category,
		EventDate:    date,
		StartTime:    strings.TrimSpace(in.StartTime),
		EndTime:      in.EndTime,
		MaxAttendees: in.MaxAttendees,
		Owner:        owner,
		CreatedBy:    actor.UserID,
	}
	e.Status = CalculateStatus(e, s.status.Now(), s.status.Policy())

	if in.Image != "" {
		url, err := s.storeDataURL(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		e.Image = url
	}

	if err := s.store.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info("event created", zap.String("event_id", e.ID.String()), zap.String("owner_type", string(owner.Kind)))
	return &models.EventSummary{Event: *e}, nil
}

func (s *Service) ensureCanPublishFor(ctx context.Context, orgID uuid.UUID, actor models.Actor) error {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		ok, err := s.orgs.IsMember(ctx, orgID, actor.UserID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if !ok {
			return models.Forbidden("You are not a member of this organization")
		}
	}
	if org.Status != models.OrganizationStatusApproved {
		return models.Invalid("Organization must be approved before publishing events")
	}
	return nil
}

func (s *Service) storeDataURL(ctx context.Context, dataURL string) (string, error) {
	if s.images == nil {
		return "", models.Invalid("Image storage is not configured")
	}
	contentType, data, err := storage.DecodeImageDataURL(dataURL)
	if err != nil {
		return "", models.Validation("image must be a base64 image data URL")
	}
	url, err := s.images.UploadBanner(ctx, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("upload banner: %w", err)
	}
	return url, nil
}

// IsManager reports whether actor may manage e: its individual organizer, a member of
// its owning organization, or an admin.
func (s *Service) IsManager(ctx context.Context, e *models.Event, actor models.Actor) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	if uid, ok := e.Owner.UserID(); ok {
		return uid == actor.UserID, nil
	}
	orgID, _ := e.Owner.OrganizationID()
	return s.orgs.IsMember(ctx, orgID, actor.UserID)
}

// managed loads an event and fails with InvalidOperation(msg) when actor cannot manage it.
func (s *Service) managed(ctx context.Context, id uuid.UUID, actor models.Actor, msg string) (*models.Event, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.IsManager(ctx, e, actor)
	if err != nil {
		return nil, fmt.Errorf("check manager: %w", err)
	}
	if !ok {
		return nil, models.Invalid(msg)
	}
	return e, nil
}

// ManagedEvent loads an event for a manager-only read; non-managers get Forbidden.
func (s *Service) ManagedEvent(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Event, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.IsManager(ctx, e, actor)
	if err != nil {
		return nil, fmt.Errorf("check manager: %w", err)
	}
	if !ok {
		return nil, models.Forbidden("You are not allowed to manage this event")
	}
	s.status.Resolve(e)
	return e, nil
}

// Get returns an event with its effective status.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.EventSummary, error) {
	sum, err := s.store.GetSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	s.status.Resolve(&sum.Event)
	return sum, nil
}

// ListQuery filters List.
type ListQuery struct {
	Status   models.EventStatus
	Category string
	Search   string
}

// List returns a page of events. The status filter applies to the stored status.
func (s *Service) List(ctx context.Context, q ListQuery, p pagination.Params) (pagination.Page[models.EventSummary], error) {
	if q.Status != "" && !q.Status.Valid() {
		return pagination.Page[models.EventSummary]{}, models.Validation("invalid status")
	}
	return s.list(ctx, ListFilter{Status: q.Status, Category: q.Category, Search: q.Search}, p)
}

// Relation selects the events returned by ListForUser.
type Relation string

const (
	RelationJoined    Relation = "joined"
	RelationOrganized Relation = "organized"
)

// ListForUser returns events the user joined or organizes.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, rel Relation, status models.EventStatus, p pagination.Params) (pagination.Page[models.EventSummary], error) {
	if status != "" && !status.Valid() {
		return pagination.Page[models.EventSummary]{}, models.Validation("invalid status")
	}
	f := ListFilter{Status: status}
	switch rel {
	case RelationJoined, "":
		f.JoinedBy = &userID
	case RelationOrganized:
		f.OrganizedBy = &userID
	default:
		return pagination.Page[models.EventSummary]{}, models.Validation("type must be joined or organized")
	}
	return s.list(ctx, f, p)
}

func (s *Service) list(ctx context.Context, f ListFilter, p pagination.Params) (pagination.Page[models.EventSummary], error) {
	items, total, err := s.store.List(ctx, f, p)
	if err != nil {
		return pagination.Page[models.EventSummary]{}, err
	}
	for i := range items {
		s.status.Resolve(&items[i].Event)
	}
	return pagination.NewPage(items, p, total), nil
}

// Update applies a partial update. Completed and cancelled events are frozen.
func (s *Service) Update(ctx context.Context, id uuid.UUID, actor models.Actor, in UpdateInput) (*models.EventSummary, error) {
	e, err := s.managed(ctx, id, actor, "You can only update your own events")
	if err != nil {
		return nil, err
	}
	switch s.status.Compute(e) {
	case models.EventStatusCompleted, models.EventStatusCancelled:
		return nil, models.Invalid("Cannot update a completed or cancelled event")
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, models.Validation("title is required")
		}
		e.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Location != nil {
		e.Location = *in.Location
	}
	if in.Category != nil {
		e.Category = *in.Category
	}
	if in.EventDate != nil {
		d, err := parseDate(*in.EventDate)
		if err != nil {
			return nil, err
		}
		e.EventDate = d
	}
	if in.StartTime != nil {
		e.StartTime = strings.TrimSpace(*in.StartTime)
	}
	if in.EndTime != nil {
		if strings.TrimSpace(*in.EndTime) == "" {
			e.EndTime = nil
		} else {
			end := strings.TrimSpace(*in.EndTime)
			e.EndTime = &end
		}
	}
	if in.MaxAttendees != nil {
		if err := validateCapacity(in.MaxAttendees); err != nil {
			return nil, err
		}
		e.MaxAttendees = in.MaxAttendees
	}
	if err := validateSchedule(e.StartTime, e.EndTime); err != nil {
		return nil, err
	}

	e.Status = CalculateStatus(e, s.status.Now(), s.status.Policy())
	if err := s.store.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return s.Get(ctx, id)
}

// Cancel marks an event cancelled. Cancellation is permanent.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.EventSummary, error) {
	e, err := s.managed(ctx, id, actor, "You can only cancel your own events")
	if err != nil {
		return nil, err
	}
	switch s.status.Compute(e) {
	case models.EventStatusCancelled:
		return nil, models.Invalid("This event has already been cancelled")
	case models.EventStatusCompleted:
		return nil, models.Invalid("Cannot cancel a completed event")
	}
	if err := s.store.Cancel(ctx, id); err != nil {
		return nil, fmt.Errorf("cancel event: %w", err)
	}
	s.logger.Info("event cancelled", zap.String("event_id", id.String()), zap.String("by", actor.UserID.String()))
	return s.Get(ctx, id)
}

// Delete removes an event and its registrations.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor models.Actor) error {
	e, err := s.managed(ctx, id, actor, "You can only delete your own events")
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if e.Image != "" && s.images != nil {
		if err := s.images.DeleteBanner(ctx, e.Image); err != nil {
			s.logger.Warn("delete banner failed", zap.String("event_id", id.String()), zap.Error(err))
		}
	}
	return nil
}

// UploadBanner stores an uploaded image as the event banner.
func (s *Service) UploadBanner(ctx context.Context, id uuid.UUID, actor models.Actor, contentType, filename string, body io.Reader, size int64) (*models.EventSummary, error) {
	e, err := s.managed(ctx, id, actor, "You can only update your own events")
	if err != nil {
		return nil, err
	}
	if s.images == nil {
		return nil, models.Invalid("Image storage is not configured")
	}
	if !storage.ValidateImageType(contentType, filename) {
		return nil, models.Validation("file must be a JPEG, PNG, WebP or GIF image")
	}
	if size > storage.MaxBannerSize {
		return nil, models.Validation("file is too large")
	}
	if _, ok := storage.AllowedImageTypes[strings.ToLower(contentType)]; !ok {
		contentType = storage.ContentTypeForFilename(filename)
	}
	url, err := s.images.UploadBanner(ctx, contentType, body, size)
	if err != nil {
		return nil, fmt.Errorf("upload banner: %w", err)
	}
	if err := s.store.UpdateImage(ctx, id, url); err != nil {
		return nil, fmt.Errorf("update image: %w", err)
	}
	if e.Image != "" {
		if err := s.images.DeleteBanner(ctx, e.Image); err != nil {
			s.logger.Warn("delete previous banner failed", zap.String("event_id", id.String()), zap.Error(err))
		}
	}
	return s.Get(ctx, id)
}

// BannerUpload is a pre-signed direct upload target for an event banner.
type BannerUpload struct {
	UploadURL string    `json:"upload_url"`
	ImageURL  string    `json:"image_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PresignBanner returns a pre-signed URL the manager's browser can PUT the banner to.
// The banner is attached afterwards with SetBanner.
func (s *Service) PresignBanner(ctx context.Context, id uuid.UUID, actor models.Actor, contentType string) (*BannerUpload, error) {
	if _, err := s.managed(ctx, id, actor, "You can only update your own events"); err != nil {
		return nil, err
	}
	if s.images == nil {
		return nil, models.Invalid("Image storage is not configured")
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if _, ok := storage.AllowedImageTypes[contentType]; !ok {
		return nil, models.Validation("content_type must be a JPEG, PNG, WebP or GIF image")
	}
	uploadURL, imageURL, err := s.images.PresignBannerUpload(ctx, contentType)
	if err != nil {
		return nil, fmt.Errorf("presign banner: %w", err)
	}
	return &BannerUpload{
		UploadURL: uploadURL,
		ImageURL:  imageURL,
		ExpiresAt: s.status.Now().Add(s.images.PresignExpire()),
	}, nil
}

// SetBanner attaches a banner uploaded through PresignBanner. Only bucket URLs are accepted.
func (s *Service) SetBanner(ctx context.Context, id uuid.UUID, actor models.Actor, imageURL string) (*models.EventSummary, error) {
	e, err := s.managed(ctx, id, actor, "You can only update your own events")
	if err != nil {
		return nil, err
	}
	if s.images == nil {
		return nil, models.Invalid("Image storage is not configured")
	}
	if !s.images.OwnsURL(imageURL) {
		return nil, models.Validation("image_url must come from a banner upload")
	}
	if err := s.store.UpdateImage(ctx, id, imageURL); err != nil {
		return nil, fmt.Errorf("update image: %w", err)
	}
	if e.Image != "" && e.Image != imageURL {
		if err := s.images.DeleteBanner(ctx, e.Image); err != nil {
			s.logger.Warn("delete previous banner failed", zap.String("event_id", id.String()), zap.Error(err))
		}
	}
	return s.Get(ctx, id)
}

// NotifyAttendees queues a reminder for every registered or confirmed attendee and
// returns how many were queued.
func (s *Service) NotifyAttendees(ctx context.Context, id uuid.UUID, actor models.Actor) (int, error) {
	e, err := s.managed(ctx, id, actor, "You can only notify attendees of your own events")
	if err != nil {
		return 0, err
	}
	if s.reminders == nil || !s.reminders.Enabled() {
		return 0, models.Invalid("Email service is not configured")
	}
	attendees, err := s.attendees.ListActiveByEvent(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("list attendees: %w", err)
	}
	if len(attendees) == 0 {
		return 0, models.Invalid("No attendees to notify")
	}
	s.status.Resolve(e)

	sent := 0
	for _, a := range attendees {
		if err := s.reminders.EventReminder(ctx, e, a); err != nil {
			s.logger.Warn("queue reminder failed",
				zap.String("event_id", id.String()),
				zap.String("attendee_id", a.ID.String()),
				zap.Error(err))
			continue
		}
		sent++
	}
	if sent == 0 {
		return 0, errors.New("no reminders could be queued")
	}
	return sent, nil
}
