package http

import (
	"net/http"

	"github.com/dan-kuzbass/chess-stars/backend/model"
	"github.com/dan-kuzbass/chess-stars/backend/service"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string      `json:"access_token"`
	User        *model.User `json:"user"`
}

func (srv *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil || req.Username == "" || req.Password == "" {
		srv.writeJSON(w, http.StatusBadRequest, GenericResponse{Error: "username and password are required"})
		return
	}

	token, user, err := srv.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, User: user})
}

func (srv *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)
	profile, err := srv.users.Profile(r.Context(), userID)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, profile)
}

func (srv *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)
	var upd service.ProfileUpdate
	if err := decodeBody(r, &upd); err != nil {
		srv.writeJSON(w, http.StatusBadRequest, GenericResponse{Error: "malformed request body"})
		return
	}
	user, err := srv.users.UpdateProfile(r.Context(), userID, upd)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, user)
}

func (srv *Server) listTrainers(w http.ResponseWriter, r *http.Request) {
	trainers, err := srv.users.Trainers(r.Context())
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, trainers)
}

func (srv *Server) listMyStudents(w http.ResponseWriter, r *http.Request) {
	userID, role := requestUser(r)
	if role != model.RoleTrainer && role != model.RoleAdmin {
		srv.writeJSON(w, http.StatusForbidden, GenericResponse{Error: "only trainers can list their students"})
		return
	}
	students, err := srv.users.MyStudents(r.Context(), userID)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, students)
}

func (srv *Server) listFreeStudents(w http.ResponseWriter, r *http.Request) {
	students, err := srv.users.StudentsWithoutTrainer(r.Context())
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, students)
}

func (srv *Server) assignTrainer(w http.ResponseWriter, r *http.Request) {
	userID, role := requestUser(r)
	if role != model.RoleStudent {
		srv.writeJSON(w, http.StatusForbidden, GenericResponse{Error: "only students can assign trainers"})
		return
	}
	var req struct {
		TrainerID string `json:"trainerId"`
	}
	if err := decodeBody(r, &req); err != nil || req.TrainerID == "" {
		srv.writeJSON(w, http.StatusBadRequest, GenericResponse{Error: "trainerId is required"})
		return
	}
	student, err := srv.users.AssignTrainer(r.Context(), userID, req.TrainerID)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, student)
}

func (srv *Server) removeTrainer(w http.ResponseWriter, r *http.Request) {
	userID, role := requestUser(r)
	if role != model.RoleStudent {
		srv.writeJSON(w, http.StatusForbidden, GenericResponse{Error: "only students can remove trainers"})
		return
	}
	student, err := srv.users.RemoveTrainer(r.Context(), userID)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, student)
}
