package server

import (
	"net/http"

	"github.com/jonathan/eligibility-intake/internal/app"
	"github.com/jonathan/eligibility-intake/internal/types"
)

func (s *Server) handleFormOptions(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, types.FormOptions)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	c, ok := s.client(w, r)
	if !ok {
		return
	}
	s.respond(w, r, c, nil)
}

func (s *Server) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	var answers types.FormData
	if !s.decodeJSON(w, r, &answers) {
		return
	}
	c, ok := s.client(w, r)
	if !ok {
		return
	}
	s.respond(w, r, c, c.Controller.SubmitForm(r.Context(), answers))
}

type showAuthRequest struct {
	Mode app.AuthMode `json:"mode"`
}

func (s *Server) handleShowAuth(w http.ResponseWriter, r *http.Request) {
	var req showAuthRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	c, ok := s.client(w, r)
	if !ok {
		return
	}
	s.respond(w, r, c, c.Controller.ShowAuth(req.Mode))
}

func (s *Server) handleCancelAuth(w http.ResponseWriter, r *http.Request) {
	c, ok := s.client(w, r)
	if !ok {
		return
	}
	s.respond(w, r, c, c.Controller.CancelAuth())
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req types.SignUpRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	c, ok := s.client(w, r)
	if !ok {
		return
	}
	s.respond(w, r, c, c.Controller.SignUp(r.Context(), req.FullName, req.Email, req.Password))
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req types.SignInRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	c, ok := s.client(w, r)
	if !ok {
		return
	}
	s.respond(w, r, c, c.Controller.SignIn(r.Context(), req.Email, req.Password))
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	c, ok := s.client(w, r)
	if !ok {
		return
	}
	s.respond(w, r, c, c.Controller.SignOut(r.Context()))
}

type openFormRequest struct {
	Fresh bool `json:"fresh"`
}

func (s *Server) handleOpenForm(w http.ResponseWriter, r *http.Request) {
	var req openFormRequest
	if r.ContentLength != 0 && !s.decodeJSON(w, r, &req) {
		return
	}
	c, ok := s.client(w, r)
	if !ok {
		return
	}
	s.respond(w, r, c, c.Controller.OpenForm(req.Fresh))
}

func (s *Server) handleCloseForm(w http.ResponseWriter, r *http.Request) {
	c, ok := s.client(w, r)
	if !ok {
		return
	}
	s.respond(w, r, c, c.Controller.CloseForm())
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var answers types.FormData
	if !s.decodeJSON(w, r, &answers) {
		return
	}
	c, ok := s.client(w, r)
	if !ok {
		return
	}
	s.respond(w, r, c, c.Controller.SaveDraft(r.Context(), answers))
}

func (s *Server) handleDashboardSubmit(w http.ResponseWriter, r *http.Request) {
	var answers types.FormData
	if !s.decodeJSON(w, r, &answers) {
		return
	}
	c, ok := s.client(w, r)
	if !ok {
		return
	}
	s.respond(w, r, c, c.Controller.SubmitFromDashboard(r.Context(), answers))
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	c, ok := s.client(w, r)
	if !ok {
		return
	}
	s.respond(w, r, c, c.Controller.EditSubmission(r.Context(), r.PathValue("ref")))
}

func (s *Server) handleDashboardDelete(w http.ResponseWriter, r *http.Request) {
	c, ok := s.client(w, r)
	if !ok {
		return
	}
	s.respond(w, r, c, c.Controller.DeleteSubmission(r.Context(), r.PathValue("ref")))
}

func (s *Server) handleStartNew(w http.ResponseWriter, r *http.Request) {
	c, ok := s.client(w, r)
	if !ok {
		return
	}
	s.respond(w, r, c, c.Controller.StartNew())
}
