package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/device-inventory/internal/auth"
)

// Auth constants.
const (
	// ticketTTL is how long a WebSocket ticket is valid.
	ticketTTL = 60 * time.Second

	// ticketBytes is the number of random bytes used for WebSocket tickets.
	ticketBytes = 32
)

// credentialsRequest is the request body for POST /api/register and /api/login.
type credentialsRequest struct {
	Username string
	Password string
}

// decodeCredentials reads a credentials body, reporting every missing or
// mistyped field.
func decodeCredentials(r *http.Request) (credentialsRequest, []FieldError, error) {
	d, err := decodeObject(r)
	if err != nil {
		return credentialsRequest{}, nil, err
	}

	var req credentialsRequest
	if v := d.String("username", true); v != nil {
		req.Username = strings.TrimSpace(*v)
	}
	if v := d.String("password", true); v != nil {
		req.Password = *v
	}
	return req, d.Finish(), nil
}

// handleRegister creates an account and returns a session.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, fields, err := decodeCredentials(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if len(fields) > 0 {
		s.recordAuth("register", "invalid")
		writeValidationError(w, "invalid registration data", fields)
		return
	}

	session, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			s.recordAuth("register", "invalid")
			writeValidationError(w, "invalid registration data", authFieldErrors(verr))
		case errors.Is(err, auth.ErrUsernameExists):
			s.recordAuth("register", "conflict")
			writeBadRequest(w, "username already exists")
		default:
			s.logger.Error("registration failed", "error", err, "request_id", requestID(r.Context()))
			writeInternalError(w, "failed to register user")
		}
		return
	}

	s.recordAuth("register", "success")
	writeJSON(w, http.StatusCreated, session)
}

// handleLogin authenticates a user and returns a JWT session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, fields, err := decodeCredentials(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if len(fields) > 0 {
		s.recordAuth("login", "invalid")
		writeValidationError(w, "invalid login data", fields)
		return
	}

	session, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.recordAuth("login", "rejected")
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("login failed", "error", err, "request_id", requestID(r.Context()))
		writeInternalError(w, "failed to log in")
		return
	}

	s.recordAuth("login", "success")
	writeJSON(w, http.StatusOK, session)
}

// handleLogout revokes the caller's token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "not authenticated")
		return
	}

	if err := s.auth.Logout(r.Context(), claims); err != nil {
		s.logger.Error("logout failed", "error", err, "request_id", requestID(r.Context()))
		writeInternalError(w, "failed to log out")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCurrentUser returns the authenticated user's account.
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "not authenticated")
		return
	}

	user, err := s.auth.CurrentUser(r.Context(), claims)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeUnauthorized(w, "account no longer exists")
			return
		}
		s.logger.Error("loading current user failed", "error", err, "request_id", requestID(r.Context()))
		writeInternalError(w, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (s *Server) recordAuth(action, outcome string) {
	if s.metrics != nil {
		s.metrics.AuthAttempt(action, outcome)
	}
}

// authAction names the credential endpoint a request targets.
func authAction(r *http.Request) string {
	if strings.HasSuffix(r.URL.Path, "/register") {
		return "register"
	}
	return "login"
}

func authFieldErrors(verr *auth.ValidationError) []FieldError {
	out := make([]FieldError, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		out = append(out, FieldError{Field: f.Field, Message: f.Message})
	}
	return out
}

// ─── WebSocket tickets ─────────────────────────────────────────────

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ticketTTL.
type ticketStore struct {
	tickets map[string]ticketEntry
	now     func() time.Time
	mu      sync.Mutex
}

type ticketEntry struct {
	userID    string
	username  string
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{
		tickets: make(map[string]ticketEntry),
		now:     time.Now,
	}
}

// issue stores a fresh ticket for the given identity.
func (t *ticketStore) issue(userID, username string) string {
	ticket := generateTicket()

	t.mu.Lock()
	t.tickets[ticket] = ticketEntry{
		userID:    userID,
		username:  username,
		expiresAt: t.now().Add(ticketTTL),
	}
	t.mu.Unlock()

	return ticket
}

// consume checks a ticket and removes it (single-use).
func (t *ticketStore) consume(ticket string) (ticketEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}
	delete(t.tickets, ticket)

	if !t.now().Before(entry.expiresAt) {
		return ticketEntry{}, false
	}
	return entry, true
}

// cleanExpired removes expired tickets from the store.
func (t *ticketStore) cleanExpired() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for ticket, entry := range t.tickets {
		if !now.Before(entry.expiresAt) {
			delete(t.tickets, ticket)
		}
	}
}

func (t *ticketStore) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tickets)
}

// handleWSTicket generates a single-use WebSocket authentication ticket.
// Browsers cannot set headers on the upgrade request, so the client trades
// its bearer token for a short-lived ticket passed in the query string.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "not authenticated")
		return
	}

	ticket := s.tickets.issue(claims.Subject, claims.Username)

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":    ticket,
		"expiresIn": int(ticketTTL.Seconds()),
	})
}

// generateTicket creates a cryptographically random ticket string.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// cleanTicketsLoop runs cleanExpired periodically until the context is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.cleanExpired()
		}
	}
}
