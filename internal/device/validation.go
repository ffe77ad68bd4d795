package device

import (
	"strings"
	"unicode/utf8"
)

const (
	maxDeviceIDLength = 100
	maxHolderLength   = 200
)

// ValidateNew checks a create request. IssuedTo and DateIssued are only
// checked when IsIssued is true; otherwise they are discarded on create.
func ValidateNew(in NewDevice) error {
	verr := &ValidationError{}

	id := strings.TrimSpace(in.DeviceID)
	switch {
	case id == "":
		verr.Add("deviceId", "is required")
	case utf8.RuneCountInString(id) > maxDeviceIDLength:
		verr.Add("deviceId", "must be at most 100 characters")
	}

	if in.IsIssued {
		validateIssuance(verr, in.IssuedTo, in.DateIssued)
	}

	return verr.Err()
}

// validateIssued checks the issuance fields of a device that is, or is
// about to be, issued.
func validateIssued(d *Device) error {
	if !d.IsIssued {
		return nil
	}
	verr := &ValidationError{}
	validateIssuance(verr, d.IssuedTo, d.DateIssued)
	return verr.Err()
}

func validateIssuance(verr *ValidationError, issuedTo *string, dateIssued *Date) {
	switch {
	case issuedTo == nil || strings.TrimSpace(*issuedTo) == "":
		verr.Add("issuedTo", "is required when the device is issued")
	case utf8.RuneCountInString(*issuedTo) > maxHolderLength:
		verr.Add("issuedTo", "must be at most 200 characters")
	}

	if dateIssued == nil || dateIssued.IsZero() {
		verr.Add("dateIssued", "is required when the device is issued")
	}
}
