package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/device-inventory/internal/device"
)

// handleListDevices returns devices newest first.
//
// Query parameters:
//   - search: case-insensitive substring of the device label
//   - status: all (default), available or issued
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status, err := device.ParseStatus(q.Get("status"))
	if err != nil {
		writeValidationError(w, "invalid query", []FieldError{
			{Field: "status", Message: "must be one of all, available, issued"},
		})
		return
	}

	devices, err := s.registry.ListDevices(r.Context(), device.Filter{
		Search: q.Get("search"),
		Status: status,
	})
	if err != nil {
		s.writeDeviceError(w, r, err, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, devices)
}

// handleDeviceStats returns aggregate inventory counts.
func (s *Server) handleDeviceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.registry.Stats(r.Context())
	if err != nil {
		s.writeDeviceError(w, r, err, "failed to compute device stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDeviceID(w, r)
	if !ok {
		return
	}

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		s.writeDeviceError(w, r, err, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice creates a new device.
//
// Body: {deviceId, dateAdded?, isIssued?, issuedTo?, dateIssued?}. When
// isIssued is false the holder fields are ignored.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	d, err := decodeObject(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var in device.NewDevice
	if v := d.String("deviceId", true); v != nil {
		in.DeviceID = *v
	}
	in.DateAdded = d.Date("dateAdded", false)
	if v := d.Bool("isIssued"); v != nil {
		in.IsIssued = *v
	}
	in.IssuedTo = d.String("issuedTo", false)
	in.DateIssued = d.Date("dateIssued", false)

	if fields := d.Finish(); len(fields) > 0 {
		writeValidationError(w, "invalid device data", fields)
		return
	}

	dev, err := s.registry.CreateDevice(r.Context(), in)
	if err != nil {
		s.writeDeviceError(w, r, err, "failed to create device")
		return
	}

	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice partially updates a device's issuance fields.
//
// Body: any of {isIssued, issuedTo, dateIssued}. Absent or null fields are
// left unchanged.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDeviceID(w, r)
	if !ok {
		return
	}

	d, err := decodeObject(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	u := device.Update{
		IsIssued:   d.Bool("isIssued"),
		IssuedTo:   d.String("issuedTo", false),
		DateIssued: d.Date("dateIssued", false),
	}
	if fields := d.Finish(); len(fields) > 0 {
		writeValidationError(w, "invalid device data", fields)
		return
	}

	dev, err := s.registry.UpdateDevice(r.Context(), id, u)
	if err != nil {
		s.writeDeviceError(w, r, err, "failed to update device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleIssueDevice checks a device out. Body: {issuedTo, dateIssued}.
func (s *Server) handleIssueDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDeviceID(w, r)
	if !ok {
		return
	}

	d, err := decodeObject(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	holder := d.String("issuedTo", true)
	date := d.Date("dateIssued", true)
	if fields := d.Finish(); len(fields) > 0 {
		writeValidationError(w, "invalid device data", fields)
		return
	}

	dev, err := s.registry.IssueDevice(r.Context(), id, *holder, *date)
	if err != nil {
		s.writeDeviceError(w, r, err, "failed to issue device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleReturnDevice makes a device available again. Returning an
// available device is a no-op that still succeeds.
func (s *Server) handleReturnDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDeviceID(w, r)
	if !ok {
		return
	}

	dev, err := s.registry.ReturnDevice(r.Context(), id)
	if err != nil {
		s.writeDeviceError(w, r, err, "failed to return device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice permanently removes a device.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDeviceID(w, r)
	if !ok {
		return
	}

	if err := s.registry.DeleteDevice(r.Context(), id); err != nil {
		s.writeDeviceError(w, r, err, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseDeviceID reads the {id} path parameter, writing a 400 on failure.
func parseDeviceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid device id")
		return 0, false
	}
	return id, true
}

// writeDeviceError maps device package errors to HTTP responses.
// Unexpected errors are logged and hidden behind fallback.
func (s *Server) writeDeviceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *device.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]FieldError, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			fields = append(fields, FieldError{Field: f.Field, Message: f.Message})
		}
		writeValidationError(w, "invalid device data", fields)
	case errors.Is(err, device.ErrDuplicateDeviceID):
		writeError(w, http.StatusBadRequest, ErrCodeDuplicateDeviceID, "device ID already exists")
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, device.ErrAlreadyIssued):
		writeConflict(w, "device is already issued")
	case errors.Is(err, device.ErrInvalidDevice):
		writeBadRequest(w, "invalid device data")
	default:
		s.logger.Error(fallback,
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID(r.Context()),
		)
		writeInternalError(w, fallback)
	}
}
