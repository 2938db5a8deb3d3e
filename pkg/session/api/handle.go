package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
	"github.com/tendant/simple-2fa/pkg/session"
)

type Handler struct {
	manager *session.Manager
}

func NewHandler(manager *session.Manager) *Handler {
	return &Handler{manager: manager}
}

// Routes mounts the session endpoints on a new router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.PasswordLogin)
	r.Post("/resume", h.Resume)
	return r
}

// PasswordLogin handles POST /login
func (h *Handler) PasswordLogin(w http.ResponseWriter, r *http.Request) {
	var req PasswordLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	res, err := h.manager.PasswordLogin(r.Context(), req.User, req.Password)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, toLoginResponse(res))
}

// Resume handles POST /resume
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	var req ResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Token is required"})
		return
	}

	res, err := h.manager.Resume(r.Context(), req.Token)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, toLoginResponse(res))
}

func toLoginResponse(res session.LoginResult) LoginResponse {
	return LoginResponse{UserID: res.UserID.String(), Token: res.Token, ExpiresAt: res.ExpiresAt}
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	if code == apperrors.ErrCodeInternal {
		slog.Error("Session request failed", "path", r.URL.Path, "error", err)
	}
	render.Status(r, apperrors.MapErrorCodeToHTTPStatus(code))
	render.JSON(w, r, ErrorResponse{Error: apperrors.PublicMessage(err), Code: string(code)})
}
