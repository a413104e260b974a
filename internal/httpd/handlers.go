// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package httpd

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// Metric outcome labels.
const (
	outcomeOK     = "ok"
	outcomeDenied = "denied"
	outcomeError  = "error"
)

// payload is the uniform response body. Exactly the fields a given endpoint
// promises are set; the rest are omitted.
type payload struct {
	Email      string `json:"email,omitempty"`
	Message    string `json:"message,omitempty"`
	ResetToken string `json:"reset_token,omitempty"`
}

// handleWelcome returns the service greeting.
func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, payload{Message: "Bienvenue"})
}

// handleRegister creates a new user from form fields email and password.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	log := s.requestLogger(r, "register")

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		s.record("register", outcomeDenied)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, payload{Message: "email and password are required"})
		return
	}

	if _, err := s.svc.Register(r.Context(), email, password); err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			s.record("register", outcomeDenied)
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, payload{Message: "email already registered"})
			return
		}
		if errors.Is(err, auth.ErrInvalidEmail) {
			s.record("register", outcomeDenied)
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, payload{Message: "invalid email address"})
			return
		}
		s.record("register", outcomeError)
		errutil.LogError(log, "registration failed", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, payload{Message: "internal error"})
		return
	}

	s.record("register", outcomeOK)
	log.InfoContext(r.Context(), "user registered", "email", email)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, payload{Email: email, Message: "user created"})
}

// handleLogin validates credentials, then mints a session. The two-step
// validate-then-create contract keeps CreateSession free of password
// checks; the 401 must happen here, before any token exists.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	log := s.requestLogger(r, "login")

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		s.record("login", outcomeDenied)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, payload{Message: "email and password are required"})
		return
	}

	valid, err := s.svc.ValidateLogin(r.Context(), email, password)
	if err != nil {
		s.record("login", outcomeError)
		errutil.LogError(log, "login validation failed", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, payload{Message: "internal error"})
		return
	}
	if !valid {
		s.record("login", outcomeDenied)
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, payload{Message: "invalid credentials"})
		return
	}

	token, err := s.svc.CreateSession(r.Context(), email)
	if err != nil || token == "" {
		s.record("login", outcomeError)
		errutil.LogError(log, "session creation failed", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, payload{Message: "internal error"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	s.record("login", outcomeOK)
	log.InfoContext(r.Context(), "user logged in", "email", email)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, payload{Email: email, Message: "logged in"})
}

// handleLogout destroys the session named by the cookie and redirects home.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	log := s.requestLogger(r, "logout")

	user, ok := s.sessionUser(w, r, "logout")
	if !ok {
		return
	}

	if err := s.svc.DestroySession(r.Context(), user.ID); err != nil {
		s.record("logout", outcomeError)
		errutil.LogError(log, "session destroy failed", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, payload{Message: "internal error"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	s.record("logout", outcomeOK)
	log.InfoContext(r.Context(), "user logged out", "user_id", user.ID.String())
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleProfile returns the email of the session's user.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(w, r, "profile")
	if !ok {
		return
	}

	s.record("profile", outcomeOK)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, payload{Email: user.Email})
}

// handleResetRequest issues a reset token for the given email.
// The token is returned in the response body; delivering it out of band
// (email) is not this service's job.
func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	log := s.requestLogger(r, "reset_request")

	email := r.PostFormValue("email")
	if email == "" {
		s.record("reset_request", outcomeDenied)
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, payload{Message: "email is required"})
		return
	}

	token, err := s.svc.IssueResetToken(r.Context(), email)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			s.record("reset_request", outcomeDenied)
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, payload{Message: "forbidden"})
			return
		}
		s.record("reset_request", outcomeError)
		errutil.LogError(log, "reset token issue failed", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, payload{Message: "internal error"})
		return
	}

	s.record("reset_request", outcomeOK)
	log.InfoContext(r.Context(), "reset token issued", "email", email)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, payload{Email: email, ResetToken: token})
}

// handleResetUpdate consumes a reset token and sets the new password.
func (s *Server) handleResetUpdate(w http.ResponseWriter, r *http.Request) {
	log := s.requestLogger(r, "reset_update")

	email := r.PostFormValue("email")
	token := r.PostFormValue("reset_token")
	newPassword := r.PostFormValue("new_password")
	if email == "" || token == "" || newPassword == "" {
		s.record("reset_update", outcomeDenied)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, payload{Message: "email, reset_token and new_password are required"})
		return
	}

	if err := s.svc.ConsumePasswordReset(r.Context(), token, newPassword); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			s.record("reset_update", outcomeDenied)
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, payload{Message: "forbidden"})
			return
		}
		s.record("reset_update", outcomeError)
		errutil.LogError(log, "password reset failed", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, payload{Message: "internal error"})
		return
	}

	s.record("reset_update", outcomeOK)
	log.InfoContext(r.Context(), "password updated", "email", email)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, payload{Email: email, Message: "Password updated"})
}

// sessionUser resolves the session cookie to a user. On any failure it
// writes a 403 and records a denied outcome; invalid and missing cookies
// are deliberately indistinguishable to the client.
func (s *Server) sessionUser(w http.ResponseWriter, r *http.Request, operation string) (*auth.User, bool) {
	log := s.requestLogger(r, operation)

	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		s.record(operation, outcomeDenied)
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, payload{Message: "forbidden"})
		return nil, false
	}

	user, err := s.svc.ResolveSession(r.Context(), cookie.Value)
	if err != nil {
		s.record(operation, outcomeError)
		errutil.LogError(log, "session resolve failed", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, payload{Message: "internal error"})
		return nil, false
	}
	if user == nil {
		s.record(operation, outcomeDenied)
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, payload{Message: "forbidden"})
		return nil, false
	}

	return user, true
}

// requestLogger scopes the server logger to one request.
func (s *Server) requestLogger(r *http.Request, operation string) *slog.Logger {
	return s.logger.With(
		"operation", operation,
		"request_id", middleware.GetReqID(r.Context()),
	)
}
