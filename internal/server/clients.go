package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/jonathan/eligibility-intake/internal/app"
)

// client resolves the request's client from its cookies, creating one on
// first contact. It answers 503 itself when no client can be produced.
func (s *Server) client(w http.ResponseWriter, r *http.Request) (*app.Client, bool) {
	id := cookieValue(r, ClientCookie)
	c, err := s.registry.Get(r.Context(), id, cookieValue(r, TokenCookie))
	if err != nil {
		s.log.Warn("client unavailable", zap.String("client", id), zap.Error(err))
		s.errorResponse(w, http.StatusServiceUnavailable, "Session unavailable. Please try again.")
		return nil, false
	}
	if c.ID != id {
		http.SetCookie(w, s.cookie(ClientCookie, c.ID, 0))
	}
	return c, true
}

// syncToken keeps the token cookie in step with the client's session. It
// must run before the response header is written.
func (s *Server) syncToken(w http.ResponseWriter, r *http.Request, c *app.Client) {
	token := c.Token()
	if token == cookieValue(r, TokenCookie) {
		return
	}
	if token == "" {
		http.SetCookie(w, s.cookie(TokenCookie, "", -1))
		return
	}
	http.SetCookie(w, s.cookie(TokenCookie, token, int(s.tokenTTL.Seconds())))
}

func (s *Server) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// flowResponse is returned by every client-flow endpoint.
type flowResponse struct {
	View   app.View          `json:"view"`
	Error  string            `json:"error,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// respond writes the client's view after an operation. A failed operation
// still carries the view, since the screen may have changed with the error.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, c *app.Client, err error) {
	s.syncToken(w, r, c)
	resp := flowResponse{View: c.Controller.View()}
	if err == nil {
		s.jsonResponse(w, http.StatusOK, resp)
		return
	}

	status := HTTPStatus(err)
	var transition *app.TransitionError
	switch {
	case status >= http.StatusInternalServerError:
		s.log.Error("operation failed", zap.String("client", c.ID), zap.Error(err))
	case errors.As(err, &transition):
		s.log.Debug("operation rejected", zap.String("client", c.ID), zap.Error(err))
	}
	resp.Error = ErrorMessage(err)
	resp.Fields = fieldErrors(err)
	s.jsonResponse(w, status, resp)
}
