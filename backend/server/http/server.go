// Package http serves the REST API around the live session
// coordinator: authentication, user profiles and lesson scheduling.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dan-kuzbass/chess-stars/backend/service"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type GenericResponse struct {
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Server struct {
	logger  zerolog.Logger
	auth    *service.AuthService
	users   *service.UserService
	lessons *service.LessonService
	*http.Server
}

type Config struct {
	Logger        *zerolog.Logger
	AuthService   *service.AuthService
	UserService   *service.UserService
	LessonService *service.LessonService
	ListenAddr    string
}

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger:  cfg.Logger.With().Str("component", "api-server").Logger(),
		auth:    cfg.AuthService,
		users:   cfg.UserService,
		lessons: cfg.LessonService,
	}

	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/health", srv.health).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", srv.login).Methods("POST", "OPTIONS")

	authed := api.NewRoute().Subrouter()
	authed.Use(srv.requireAuth)

	authed.HandleFunc("/users/profile", srv.getProfile).Methods("GET", "OPTIONS")
	authed.HandleFunc("/users/profile", srv.updateProfile).Methods("PATCH", "OPTIONS")
	authed.HandleFunc("/users/trainers", srv.listTrainers).Methods("GET", "OPTIONS")
	authed.HandleFunc("/users/my-students", srv.listMyStudents).Methods("GET", "OPTIONS")
	authed.HandleFunc("/users/students-without-trainer", srv.listFreeStudents).Methods("GET", "OPTIONS")
	authed.HandleFunc("/users/assign-trainer", srv.assignTrainer).Methods("POST", "OPTIONS")
	authed.HandleFunc("/users/remove-trainer", srv.removeTrainer).Methods("DELETE", "OPTIONS")

	authed.HandleFunc("/lessons", srv.createLesson).Methods("POST", "OPTIONS")
	authed.HandleFunc("/lessons", srv.listLessons).Methods("GET", "OPTIONS")
	authed.HandleFunc("/lessons/{id}", srv.getLesson).Methods("GET", "OPTIONS")
	authed.HandleFunc("/lessons/{id}", srv.updateLesson).Methods("PATCH", "OPTIONS")
	authed.HandleFunc("/lessons/{id}/join", srv.joinLesson).Methods("POST", "OPTIONS")
	authed.HandleFunc("/lessons/{id}/leave", srv.leaveLesson).Methods("POST", "OPTIONS")
	authed.HandleFunc("/lessons/{id}/start", srv.startLesson).Methods("POST", "OPTIONS")
	authed.HandleFunc("/lessons/{id}/end", srv.endLesson).Methods("POST", "OPTIONS")
	authed.HandleFunc("/lessons/{id}/game-state", srv.updateGameState).Methods("PUT", "OPTIONS")

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}
	return srv
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}

func (srv *Server) health(w http.ResponseWriter, _ *http.Request) {
	srv.writeJSON(w, http.StatusOK, GenericResponse{Message: "ok"})
}

func (srv *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	if _, err = w.Write(b); err != nil {
		srv.logger.Error().Err(err).Msg("failed to write response")
	}
}

func (srv *Server) writeError(w http.ResponseWriter, err error) {
	srv.writeJSON(w, statusForError(err), GenericResponse{Error: err.Error()})
}

// statusForError maps service sentinels onto HTTP codes. Anything
// unrecognized is a 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrOnlyTrainer),
		errors.Is(err, service.ErrNotInvited),
		errors.Is(err, service.ErrNotATrainer),
		errors.Is(err, service.ErrNotAStudent):
		return http.StatusForbidden
	case errors.Is(err, service.ErrLessonNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrLessonNotActive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	defer func() {
		_ = r.Body.Close()
	}()
	return json.NewDecoder(r.Body).Decode(v)
}
