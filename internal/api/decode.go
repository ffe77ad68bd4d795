package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/nerrad567/device-inventory/internal/device"
)

// errMalformedBody is returned when the request body is not a JSON object.
var errMalformedBody = errors.New("request body must be a JSON object")

// objectDecoder reads a JSON object field by field so that every problem
// in a request can be reported at once instead of stopping at the first.
//
//	d, err := decodeObject(r)
//	id := d.String("deviceId", true)
//	issued := d.Bool("isIssued")
//	added := d.Date("dateAdded", false)
//	if fields := d.Finish(); len(fields) > 0 { ... }
type objectDecoder struct {
	raw    map[string]json.RawMessage
	used   map[string]struct{}
	errors []FieldError
}

// decodeObject parses the request body into its top-level fields.
func decodeObject(r *http.Request) (*objectDecoder, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, errMalformedBody
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errMalformedBody
	}

	return &objectDecoder{
		raw:  raw,
		used: make(map[string]struct{}, len(raw)),
	}, nil
}

func (d *objectDecoder) fail(field, message string) {
	d.errors = append(d.errors, FieldError{Field: field, Message: message})
}

// lookup marks field as known and returns its raw value. A JSON null is
// reported as absent.
func (d *objectDecoder) lookup(field string) (json.RawMessage, bool) {
	d.used[field] = struct{}{}
	v, ok := d.raw[field]
	if !ok || string(v) == "null" {
		return nil, false
	}
	return v, true
}

// String reads a string field. When required, a missing, null or blank
// value is an error. An optional blank string is treated as null.
func (d *objectDecoder) String(field string, required bool) *string {
	v, ok := d.lookup(field)
	if !ok {
		if required {
			d.fail(field, "is required")
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		d.fail(field, "must be a string")
		return nil
	}
	if strings.TrimSpace(s) == "" {
		if required {
			d.fail(field, "is required")
		}
		return nil
	}
	return &s
}

// Bool reads an optional boolean field.
func (d *objectDecoder) Bool(field string) *bool {
	v, ok := d.lookup(field)
	if !ok {
		return nil
	}

	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		d.fail(field, "must be a boolean")
		return nil
	}
	return &b
}

// Date reads a YYYY-MM-DD field. An empty string is treated as null, which
// is an error only when required.
func (d *objectDecoder) Date(field string, required bool) *device.Date {
	v, ok := d.lookup(field)
	if !ok {
		if required {
			d.fail(field, "is required")
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		d.fail(field, "must be a date string (YYYY-MM-DD)")
		return nil
	}
	if strings.TrimSpace(s) == "" {
		if required {
			d.fail(field, "is required")
		}
		return nil
	}

	date, err := device.ParseDate(s)
	if err != nil {
		d.fail(field, "must be a valid date (YYYY-MM-DD)")
		return nil
	}
	return &date
}

// Finish reports unknown fields and returns every error collected, sorted
// by field name for stable output.
func (d *objectDecoder) Finish() []FieldError {
	for field := range d.raw {
		if _, ok := d.used[field]; !ok {
			d.fail(field, "is not allowed")
		}
	}
	sort.SliceStable(d.errors, func(i, j int) bool {
		return d.errors[i].Field < d.errors[j].Field
	})
	return d.errors
}
