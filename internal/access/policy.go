// Package access holds the role and maintenance guards every write path
// runs before touching storage.
package access

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amirk1998/univ-erp/internal/logger"
	"github.com/amirk1998/univ-erp/internal/models"
	"github.com/amirk1998/univ-erp/internal/repository"
	"github.com/amirk1998/univ-erp/pkg/errors"
)

// SettingsReader reads raw global settings.
type SettingsReader interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// Policy is stateless apart from its collaborators and is safe for
// concurrent use.
type Policy struct {
	settings SettingsReader
	now      func() time.Time
	loc      *time.Location
}

type Option func(*Policy)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// WithLocation sets the zone date-only deadlines are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(p *Policy) { p.loc = loc }
}

func NewPolicy(settings SettingsReader, opts ...Option) *Policy {
	p := &Policy{
		settings: settings,
		now:      time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Now returns the policy clock's current time.
func (p *Policy) Now() time.Time {
	return p.now()
}

func (p *Policy) EnsureAdmin(s *models.Session) error {
	if !s.IsAdmin() {
		return errors.AccessDenied("action requires ADMIN privileges")
	}
	return nil
}

func (p *Policy) EnsureInstructor(s *models.Session) error {
	if !s.IsInstructor() {
		return errors.AccessDenied("action requires INSTRUCTOR privileges")
	}
	return nil
}

func (p *Policy) EnsureStudent(s *models.Session) error {
	if !s.IsStudent() {
		return errors.AccessDenied("action requires STUDENT privileges")
	}
	return nil
}

// MaintenanceOn reads the maintenance flag. A read failure counts as OFF.
func (p *Policy) MaintenanceOn(ctx context.Context) bool {
	raw, ok, err := p.settings.Get(ctx, repository.SettingMaintenance)
	if err != nil {
		logger.FromContext(ctx).Warn("maintenance flag unreadable, treating as off", "error", err)
		return false
	}
	if !ok {
		return false
	}

	on, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		logger.FromContext(ctx).Warn("maintenance flag malformed, treating as off", "value", raw)
		return false
	}
	return on
}

// EnsureNotInMaintenance blocks every non-admin session while maintenance
// is on. A nil session is always refused.
func (p *Policy) EnsureNotInMaintenance(ctx context.Context, s *models.Session) error {
	if s == nil {
		return errors.AccessDenied("no active session")
	}
	if s.IsAdmin() {
		return nil
	}
	if p.MaintenanceOn(ctx) {
		return errors.AccessDenied("maintenance is on, write operations are disabled")
	}
	return nil
}

func (p *Policy) EnsureStudentAndNotInMaintenance(ctx context.Context, s *models.Session) error {
	if err := p.EnsureStudent(s); err != nil {
		return err
	}
	return p.EnsureNotInMaintenance(ctx, s)
}

func (p *Policy) EnsureInstructorAndNotInMaintenance(ctx context.Context, s *models.Session) error {
	if err := p.EnsureInstructor(s); err != nil {
		return err
	}
	return p.EnsureNotInMaintenance(ctx, s)
}

// Deadline returns the instant the setting under key closes at. A missing,
// unreadable or malformed setting yields def. A date-only value closes at
// the end of that day.
func (p *Policy) Deadline(ctx context.Context, key string, def time.Time) time.Time {
	raw, ok, err := p.settings.Get(ctx, key)
	if err != nil {
		logger.FromContext(ctx).Warn("deadline setting unreadable, using default", "key", key, "error", err)
		return def
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}

	deadline, err := p.ParseDeadline(raw)
	if err != nil {
		logger.FromContext(ctx).Warn("deadline setting malformed, using default", "key", key, "value", raw)
		return def
	}
	return deadline
}

// ParseDeadline accepts RFC 3339 timestamps, "YYYY-MM-DD HH:MM:SS" and
// plain dates.
func (p *Policy) ParseDeadline(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateTime, raw, p.loc); err == nil {
		return t, nil
	}
	if d, err := time.ParseInLocation(time.DateOnly, raw, p.loc); err == nil {
		return d.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised deadline %q", raw)
}

// EnsureBeforeDeadline fails with ErrDeadlinePassed once now is after the
// deadline stored under key. def applies when the setting cannot be used;
// a zero deadline never closes.
func (p *Policy) EnsureBeforeDeadline(ctx context.Context, key string, def time.Time) error {
	return p.EnsureBefore(p.Deadline(ctx, key, def), strings.ReplaceAll(key, "_", " "))
}

// EnsureBefore checks a concrete deadline.
func (p *Policy) EnsureBefore(deadline time.Time, what string) error {
	if deadline.IsZero() {
		return nil
	}
	if p.now().After(deadline) {
		return errors.NewAppError(
			errors.ErrDeadlinePassed,
			fmt.Sprintf("%s was %s", what, deadline.In(p.loc).Format(time.DateTime)),
			http.StatusConflict,
		)
	}
	return nil
}
