package events

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/occasio/backend/internal/clock"
	"github.com/occasio/backend/internal/models"
)

// DefaultDuration is used as the event length when no end time is set.
const DefaultDuration = 2 * time.Hour

const writeBackTimeout = 5 * time.Second

// StatusPolicy controls how event date and wall-clock times are turned into instants.
type StatusPolicy struct {
	DefaultDuration time.Duration
	Location        *time.Location
}

// DefaultStatusPolicy uses a 2 hour duration and the server's local time zone.
func DefaultStatusPolicy() StatusPolicy {
	return StatusPolicy{DefaultDuration: DefaultDuration, Location: time.Local}
}

// Window returns the [start, end) interval during which the event is ongoing.
// A malformed start time falls back to the start of the day; a missing or
// malformed end time falls back to start plus the default duration.
func (p StatusPolicy) Window(e *models.Event) (start, end time.Time) {
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	dur := p.DefaultDuration
	if dur <= 0 {
		dur = DefaultDuration
	}
	y, m, d := e.EventDate.Date()

	h, min, ok := ParseClock(e.StartTime)
	if !ok {
		h, min = 0, 0
	}
	start = time.Date(y, m, d, h, min, 0, 0, loc)

	if e.EndTime != nil {
		if eh, emin, ok := ParseClock(*e.EndTime); ok {
			return start, time.Date(y, m, d, eh, emin, 0, 0, loc)
		}
	}
	return start, start.Add(dur)
}

// CalculateStatus derives the effective status of e at now. A persisted
// cancellation always wins.
func CalculateStatus(e *models.Event, now time.Time, p StatusPolicy) models.EventStatus {
	if e.Status == models.EventStatusCancelled {
		return models.EventStatusCancelled
	}
	start, end := p.Window(e)
	switch {
	case now.Before(start):
		return models.EventStatusUpcoming
	case now.Before(end):
		return models.EventStatusOngoing
	default:
		return models.EventStatusCompleted
	}
}

// ParseClock parses "HH:MM" (an optional ":SS" suffix is ignored).
func ParseClock(s string) (hour, minute int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return 0, 0, false
	}
	return hour, minute, true
}

// StatusWriter persists a recomputed status.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error
}

// StatusResolver computes effective statuses and refreshes the persisted cache in the background.
type StatusResolver struct {
	policy    StatusPolicy
	clock     clock.Clock
	writer    StatusWriter
	writeBack bool
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewStatusResolver creates a resolver. With writeBack false (or a nil writer) it never writes.
func NewStatusResolver(policy StatusPolicy, c clock.Clock, writer StatusWriter, writeBack bool, logger *zap.Logger) *StatusResolver {
	if c == nil {
		c = clock.NewSystem()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusResolver{policy: policy, clock: c, writer: writer, writeBack: writeBack && writer != nil, logger: logger}
}

// Now returns the resolver's current time.
func (r *StatusResolver) Now() time.Time { return r.clock.Now() }

// Policy returns the status policy in use.
func (r *StatusResolver) Policy() StatusPolicy { return r.policy }

// Compute returns the effective status of e without side effects.
func (r *StatusResolver) Compute(e *models.Event) models.EventStatus {
	return CalculateStatus(e, r.clock.Now(), r.policy)
}

// Resolve sets e.Status to its effective value and schedules a write-back when it changed.
// The write-back never blocks or fails the caller.
func (r *StatusResolver) Resolve(e *models.Event) models.EventStatus {
	computed := r.Compute(e)
	if computed != e.Status && e.Status != models.EventStatusCancelled {
		r.scheduleWrite(e.ID, computed)
	}
	e.Status = computed
	return computed
}

func (r *StatusResolver) scheduleWrite(id uuid.UUID, status models.EventStatus) {
	if !r.writeBack {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeBackTimeout)
		defer cancel()
		if err := r.writer.UpdateStatus(ctx, id, status); err != nil {
			r.logger.Warn("event status write-back failed",
				zap.String("event_id", id.String()),
				zap.String("status", string(status)),
				zap.Error(err))
		}
	}()
}

// Wait blocks until pending write-backs finish.
func (r *StatusResolver) Wait() {
	r.wg.Wait()
}
