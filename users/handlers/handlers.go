// Package handlers provides the HTTP surface of the user service.
//
// A user logs in with a username and password, which binds their session
// cookie to that account until logout or expiry. Authenticated users may
// register new accounts and read user records; changing a password is
// limited to the account owner or an admin, and deleting an account is
// limited to admins acting on accounts other than their own.
//
// Each handler validates its input, consults the access policy for the
// authenticated principal, delegates to the user store or credential hasher,
// and maps the outcome to an HTTP status with a JSON message body. The
// server is initialized in cmd/serve/main.go; persistence lives in state/,
// session lifecycle in sessions/ and access rules in auth/.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"userAuthService/database"
	"userAuthService/httputils"
	"userAuthService/users/auth"
	"userAuthService/users/password"
	"userAuthService/users/sessions"
	"userAuthService/users/state"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type CreateUserRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdatePasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// Server holds the collaborators every handler needs. It is constructed
// once per process and passed to the router explicitly.
type Server struct {
	db       *database.Database
	sessions *sessions.Manager
	validate *validator.Validate
	log      *logrus.Logger
	metrics  *Metrics
}

func NewServer(db *database.Database, manager *sessions.Manager, log *logrus.Logger) *Server {
	return &Server{
		db:       db,
		sessions: manager,
		validate: validator.New(),
		log:      log,
		metrics:  NewMetrics(),
	}
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.HandleIndex)
	mux.HandleFunc("POST /login", s.HandleLogin)
	mux.HandleFunc("GET /logout", s.loginRequired(s.HandleLogout))
	mux.HandleFunc("POST /user", s.loginRequired(s.HandleCreateUser))
	mux.HandleFunc("GET /user/{id}", s.loginRequired(s.HandleGetUser))
	mux.HandleFunc("PUT /user/{id}", s.loginRequired(s.HandleUpdateUser))
	mux.HandleFunc("DELETE /user/{id}", s.loginRequired(s.HandleDeleteUser))
	return mux
}

func (s *Server) loginRequired(next http.HandlerFunc) http.HandlerFunc {
	return auth.LoginRequired(s.db, s.sessions, next)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	s.metrics.Errors.WithLabelValues(endpoint).Inc()
	httputils.WriteError(s.log, w, r, err)
}

func sessionCookie(token string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	s.metrics.Requests.WithLabelValues("/").Inc()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Hello World"))
}

func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	s.metrics.Requests.WithLabelValues("/login").Inc()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, "/login", httputils.Unauthorized("username and password are required"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.fail(w, r, "/login", httputils.Unauthorized("username and password are required"))
		return
	}

	// The response is identical for an unknown username and a wrong
	// password.
	user, err := state.GetUserByUsername(s.db.GetDB(), req.Username)
	if err != nil {
		s.fail(w, r, "/login", httputils.Unauthorized("invalid username or password"))
		return
	}
	if !password.Verify(req.Password, user.PasswordHash) {
		s.fail(w, r, "/login", httputils.Unauthorized("invalid username or password"))
		return
	}

	_, token, err := s.sessions.Create(user.ID)
	if err != nil {
		s.fail(w, r, "/login", err)
		return
	}

	http.SetCookie(w, sessionCookie(token, int(s.sessions.Expiry().Seconds())))
	s.log.WithFields(logrus.Fields{
		"operation": "login",
		"user_id":   user.ID,
	}).Info("user logged in")
	httputils.WriteMessage(w, http.StatusOK, "logged in")
}

func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	s.metrics.Requests.WithLabelValues("/logout").Inc()

	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		s.fail(w, r, "/logout", httputils.Unauthorized("authentication required"))
		return
	}
	if err := s.sessions.Delete(session); err != nil {
		s.fail(w, r, "/logout", err)
		return
	}

	http.SetCookie(w, sessionCookie("", -1))
	s.log.WithFields(logrus.Fields{
		"operation": "logout",
		"user_id":   session.UserID,
	}).Info("user logged out")
	httputils.WriteMessage(w, http.StatusOK, "logged out")
}

func (s *Server) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	s.metrics.Requests.WithLabelValues("/user").Inc()

	principal, ok := auth.FromContext(r.Context())
	if !ok {
		s.fail(w, r, "/user", httputils.Unauthorized("authentication required"))
		return
	}
	if err := auth.CanCreateUser(principal); err != nil {
		s.fail(w, r, "/user", err)
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, "/user", httputils.Unauthorized("username and password are required"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.fail(w, r, "/user", httputils.Unauthorized("username and password are required"))
		return
	}

	digest, err := password.Hash(req.Password)
	if err != nil {
		s.fail(w, r, "/user", err)
		return
	}

	// New accounts always get the user role, whatever the request body says.
	user, err := state.CreateUser(s.db.GetDB(), req.Username, digest, state.RoleUser)
	if errors.Is(err, state.ErrUsernameTaken) {
		s.fail(w, r, "/user", httputils.Conflict("username already taken"))
		return
	}
	if err != nil {
		s.fail(w, r, "/user", err)
		return
	}

	s.log.WithFields(logrus.Fields{
		"operation":  "create user",
		"user_id":    user.ID,
		"created_by": principal.ID,
	}).Info("user created")
	httputils.WriteMessage(w, http.StatusOK, "user created")
}

func (s *Server) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	s.metrics.Requests.WithLabelValues("/user/{id}").Inc()

	principal, ok := auth.FromContext(r.Context())
	if !ok {
		s.fail(w, r, "/user/{id}", httputils.Unauthorized("authentication required"))
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "/user/{id}", httputils.BadRequest("invalid user id"))
		return
	}
	if err := auth.CanReadUser(principal, id); err != nil {
		s.fail(w, r, "/user/{id}", err)
		return
	}

	user, err := state.GetUserByID(s.db.GetDB(), id)
	if errors.Is(err, state.ErrUserNotFound) {
		s.fail(w, r, "/user/{id}", httputils.NotFound("user not found"))
		return
	}
	if err != nil {
		s.fail(w, r, "/user/{id}", err)
		return
	}

	httputils.WriteJSON(w, http.StatusOK, UserResponse{ID: user.ID, Username: user.Username})
}

func (s *Server) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	s.metrics.Requests.WithLabelValues("/user/{id}").Inc()

	principal, ok := auth.FromContext(r.Context())
	if !ok {
		s.fail(w, r, "/user/{id}", httputils.Unauthorized("authentication required"))
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "/user/{id}", httputils.BadRequest("invalid user id"))
		return
	}

	var req UpdatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, "/user/{id}", httputils.Unauthorized("password is required"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.fail(w, r, "/user/{id}", httputils.Unauthorized("password is required"))
		return
	}

	// Permission is decided before the target's existence is checked.
	if err := auth.CanUpdatePassword(principal, id); err != nil {
		s.fail(w, r, "/user/{id}", err)
		return
	}

	digest, err := password.Hash(req.Password)
	if err != nil {
		s.fail(w, r, "/user/{id}", err)
		return
	}

	err = state.UpdatePassword(s.db.GetDB(), id, digest)
	if errors.Is(err, state.ErrUserNotFound) {
		s.fail(w, r, "/user/{id}", httputils.NotFound("user not found"))
		return
	}
	if err != nil {
		s.fail(w, r, "/user/{id}", err)
		return
	}

	s.log.WithFields(logrus.Fields{
		"operation":  "update password",
		"user_id":    id,
		"updated_by": principal.ID,
	}).Info("password updated")
	httputils.WriteMessage(w, http.StatusOK, "password updated")
}

func (s *Server) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	s.metrics.Requests.WithLabelValues("/user/{id}").Inc()

	principal, ok := auth.FromContext(r.Context())
	if !ok {
		s.fail(w, r, "/user/{id}", httputils.Unauthorized("authentication required"))
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "/user/{id}", httputils.BadRequest("invalid user id"))
		return
	}

	// Permission is decided before the target's existence is checked.
	if err := auth.CanDeleteUser(principal, id); err != nil {
		s.fail(w, r, "/user/{id}", err)
		return
	}

	// Deleting the row cascades to the target's sessions.
	err = state.DeleteUser(s.db.GetDB(), id)
	if errors.Is(err, state.ErrUserNotFound) {
		s.fail(w, r, "/user/{id}", httputils.NotFound("user not found"))
		return
	}
	if err != nil {
		s.fail(w, r, "/user/{id}", err)
		return
	}

	s.log.WithFields(logrus.Fields{
		"operation":  "delete user",
		"user_id":    id,
		"deleted_by": principal.ID,
	}).Info("user deleted")
	httputils.WriteMessage(w, http.StatusOK, "user deleted")
}
