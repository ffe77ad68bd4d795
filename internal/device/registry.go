package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Listener receives lifecycle events after they are committed.
// Listeners run on the caller's goroutine and must not block.
type Listener func(Event)

// Registry implements the device lifecycle on top of a Repository.
//
// It holds no device state of its own: every read goes to the repository,
// so listings and stats always reflect the latest committed writes.
// Concurrent issue requests for the same device are not serialised beyond
// the store's single-statement atomicity; the last write wins.
//
// All public methods are safe for concurrent use.
type Registry struct {
	repo   Repository
	logger Logger
	now    func() time.Time

	listeners   []Listener
	listenersMu sync.RWMutex
}

// NewRegistry creates a device registry backed by repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetClock replaces the wall clock used for creation timestamps, default
// dates and monthly statistics.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Subscribe registers l for every subsequent lifecycle event.
func (r *Registry) Subscribe(l Listener) {
	r.listenersMu.Lock()
	r.listeners = append(r.listeners, l)
	r.listenersMu.Unlock()
}

func (r *Registry) emit(t EventType, d Device) {
	r.listenersMu.RLock()
	listeners := make([]Listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.listenersMu.RUnlock()

	ev := Event{Type: t, Device: d, At: r.now()}
	for _, l := range listeners {
		l(ev)
	}
}

// CreateDevice validates and stores a new device.
//
// When in.IsIssued is false, IssuedTo and DateIssued are discarded rather
// than rejected. DateAdded defaults to today. Returns ErrDuplicateDeviceID
// if the label is taken and a *ValidationError for bad input.
func (r *Registry) CreateDevice(ctx context.Context, in NewDevice) (*Device, error) {
	if err := ValidateNew(in); err != nil {
		return nil, err
	}

	now := r.now()
	d := &Device{
		DeviceID:   strings.TrimSpace(in.DeviceID),
		IsIssued:   in.IsIssued,
		IssuedTo:   trimmed(in.IssuedTo),
		DateIssued: in.DateIssued,
		CreatedAt:  now,
	}
	if in.DateAdded != nil && !in.DateAdded.IsZero() {
		d.DateAdded = *in.DateAdded
	} else {
		d.DateAdded = DateOf(now)
	}
	d.clearIssuance()

	_, err := r.repo.GetByDeviceID(ctx, d.DeviceID)
	switch {
	case err == nil:
		return nil, ErrDuplicateDeviceID
	case !errors.Is(err, ErrDeviceNotFound):
		return nil, fmt.Errorf("checking device ID: %w", err)
	}

	if err := r.repo.Insert(ctx, d); err != nil {
		if errors.Is(err, ErrDuplicateDeviceID) {
			return nil, err
		}
		return nil, fmt.Errorf("creating device: %w", err)
	}

	r.logger.Info("device created", "id", d.ID, "device_id", d.DeviceID, "issued", d.IsIssued)
	r.emit(EventCreated, *d)
	return d, nil
}

// GetDevice retrieves a device by id.
func (r *Registry) GetDevice(ctx context.Context, id int64) (*Device, error) {
	return r.repo.GetByID(ctx, id)
}

// UpdateDevice applies a partial change to a device's issuance fields.
//
// It is the single write path behind IssueDevice and ReturnDevice. After
// the change is applied, a device that is not issued has its holder and
// issue date cleared; a device that is issued must have both. Setting
// IsIssued to true on a device that is already issued fails with
// ErrAlreadyIssued. An update that leaves the issuance fields as they were
// emits no event.
func (r *Registry) UpdateDevice(ctx context.Context, id int64, u Update) (*Device, error) {
	var (
		wasIssued bool
		before    Device
	)

	d, err := r.repo.Update(ctx, id, func(d *Device) error {
		wasIssued = d.IsIssued
		before = *d

		if u.IsIssued != nil {
			if *u.IsIssued && wasIssued {
				return ErrAlreadyIssued
			}
			d.IsIssued = *u.IsIssued
		}
		if u.IssuedTo != nil {
			d.IssuedTo = trimmed(u.IssuedTo)
		}
		if u.DateIssued != nil {
			di := *u.DateIssued
			d.DateIssued = &di
		}

		d.clearIssuance()
		return validateIssued(d)
	})
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) || errors.Is(err, ErrAlreadyIssued) || errors.Is(err, ErrInvalidDevice) {
			return nil, err
		}
		return nil, fmt.Errorf("updating device %d: %w", id, err)
	}

	if sameIssuance(&before, d) {
		r.logger.Debug("device update changed nothing", "id", d.ID, "device_id", d.DeviceID)
		return d, nil
	}

	event := EventUpdated
	switch {
	case !wasIssued && d.IsIssued:
		event = EventIssued
	case wasIssued && !d.IsIssued:
		event = EventReturned
	}

	r.logger.Info("device updated", "id", d.ID, "device_id", d.DeviceID, "event", event)
	r.emit(event, *d)
	return d, nil
}

// sameIssuance reports whether a and b agree on every issuance field.
func sameIssuance(a, b *Device) bool {
	if a.IsIssued != b.IsIssued {
		return false
	}
	if (a.IssuedTo == nil) != (b.IssuedTo == nil) || (a.IssuedTo != nil && *a.IssuedTo != *b.IssuedTo) {
		return false
	}
	if (a.DateIssued == nil) != (b.DateIssued == nil) || (a.DateIssued != nil && *a.DateIssued != *b.DateIssued) {
		return false
	}
	return true
}

// IssueDevice checks a device out to holder on date.
// Returns ErrAlreadyIssued if the device is not available.
func (r *Registry) IssueDevice(ctx context.Context, id int64, holder string, date Date) (*Device, error) {
	issued := true
	return r.UpdateDevice(ctx, id, Update{
		IsIssued:   &issued,
		IssuedTo:   &holder,
		DateIssued: &date,
	})
}

// ReturnDevice makes a device available again. Returning a device that is
// already available leaves it unchanged.
func (r *Registry) ReturnDevice(ctx context.Context, id int64) (*Device, error) {
	issued := false
	return r.UpdateDevice(ctx, id, Update{IsIssued: &issued})
}

// DeleteDevice permanently removes a device, issued or not.
// Returns ErrDeviceNotFound if the id does not exist.
func (r *Registry) DeleteDevice(ctx context.Context, id int64) error {
	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := r.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return err
		}
		return fmt.Errorf("deleting device %d: %w", id, err)
	}

	r.logger.Info("device deleted", "id", id, "device_id", d.DeviceID)
	r.emit(EventDeleted, *d)
	return nil
}

// ListDevices returns the devices matching f, newest first.
func (r *Registry) ListDevices(ctx context.Context, f Filter) ([]Device, error) {
	all, err := r.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	return Query(all, f), nil
}

// Stats computes inventory statistics from a full scan.
func (r *Registry) Stats(ctx context.Context) (Stats, error) {
	all, err := r.repo.ListAll(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("computing stats: %w", err)
	}
	return ComputeStats(all, r.now()), nil
}

// trimmed returns a trimmed copy of s, or nil when s is nil or blank.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
