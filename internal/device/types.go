package device

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a calendar date.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// MarshalJSON encodes the date as a "YYYY-MM-DD" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Device is a trackable inventory item.
//
// IssuedTo and DateIssued are non-nil exactly when IsIssued is true.
type Device struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"deviceId"`
	DateAdded  Date      `json:"dateAdded"`
	IsIssued   bool      `json:"isIssued"`
	IssuedTo   *string   `json:"issuedTo"`
	DateIssued *Date     `json:"dateIssued"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Status reports whether the device is available or issued.
func (d *Device) Status() Status {
	if d.IsIssued {
		return StatusIssued
	}
	return StatusAvailable
}

// clearIssuance drops the holder fields of a device that is not issued.
func (d *Device) clearIssuance() {
	if !d.IsIssued {
		d.IssuedTo = nil
		d.DateIssued = nil
	}
}

// NewDevice is the input to CreateDevice.
type NewDevice struct {
	DeviceID string
	// DateAdded defaults to today when nil.
	DateAdded  *Date
	IsIssued   bool
	IssuedTo   *string
	DateIssued *Date
}

// Update is a partial change to a device's issuance fields.
// Nil fields are left as they are.
type Update struct {
	IsIssued   *bool
	IssuedTo   *string
	DateIssued *Date
}

// Status selects devices by issuance state.
type Status string

const (
	StatusAll       Status = "all"
	StatusAvailable Status = "available"
	StatusIssued    Status = "issued"
)

// ParseStatus maps a query value to a Status. Empty means StatusAll.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusAvailable:
		return StatusAvailable, nil
	case StatusIssued:
		return StatusIssued, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidDevice, s)
	}
}

// Filter narrows a device listing. Both conditions must match.
type Filter struct {
	Search string
	Status Status
}

// Stats aggregates the inventory.
type Stats struct {
	TotalDevices     int `json:"totalDevices"`
	AvailableDevices int `json:"availableDevices"`
	IssuedDevices    int `json:"issuedDevices"`
	AddedThisMonth   int `json:"addedThisMonth"`
}

// EventType names a device lifecycle change.
type EventType string

const (
	EventCreated  EventType = "device.created"
	EventIssued   EventType = "device.issued"
	EventReturned EventType = "device.returned"
	EventUpdated  EventType = "device.updated"
	EventDeleted  EventType = "device.deleted"
)

// Event is emitted after a lifecycle change has been committed.
// For EventDeleted, Device holds the record as it was before removal.
type Event struct {
	Type   EventType `json:"type"`
	Device Device    `json:"device"`
	At     time.Time `json:"at"`
}
