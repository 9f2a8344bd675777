package http

import (
	"encoding/json"
	"net/http"

	"github.com/dan-kuzbass/chess-stars/backend/service"
	"github.com/gorilla/mux"
)

func (srv *Server) createLesson(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)
	var in service.CreateLessonInput
	if err := decodeBody(r, &in); err != nil || in.Title == "" {
		srv.writeJSON(w, http.StatusBadRequest, GenericResponse{Error: "title and scheduledAt are required"})
		return
	}
	lesson, err := srv.lessons.Create(r.Context(), userID, in)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusCreated, lesson)
}

func (srv *Server) listLessons(w http.ResponseWriter, r *http.Request) {
	userID, role := requestUser(r)
	lessons, err := srv.lessons.List(r.Context(), userID, role)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, lessons)
}

func (srv *Server) getLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := srv.lessons.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, lesson)
}

func (srv *Server) updateLesson(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)
	var in service.UpdateLessonInput
	if err := decodeBody(r, &in); err != nil {
		srv.writeJSON(w, http.StatusBadRequest, GenericResponse{Error: "malformed request body"})
		return
	}
	lesson, err := srv.lessons.Update(r.Context(), mux.Vars(r)["id"], userID, in)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, lesson)
}

func (srv *Server) joinLesson(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)
	lesson, err := srv.lessons.Join(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, lesson)
}

func (srv *Server) leaveLesson(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)
	if err := srv.lessons.Leave(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, GenericResponse{Message: "OK"})
}

func (srv *Server) startLesson(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)
	lesson, err := srv.lessons.Start(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, lesson)
}

func (srv *Server) endLesson(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)
	lesson, err := srv.lessons.End(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, lesson)
}

func (srv *Server) updateGameState(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)
	var state json.RawMessage
	if err := decodeBody(r, &state); err != nil || len(state) == 0 {
		srv.writeJSON(w, http.StatusBadRequest, GenericResponse{Error: "malformed game state"})
		return
	}
	lesson, err := srv.lessons.UpdateGameState(r.Context(), mux.Vars(r)["id"], userID, state)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, lesson)
}
