package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
	"github.com/tendant/simple-2fa/pkg/session"
	"github.com/tendant/simple-2fa/pkg/twofactor"
)

type Handler struct {
	service *twofactor.Service
}

func NewHandler(service *twofactor.Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the two factor endpoints on a new router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	r.Post("/code", h.SendCode)
	r.Post("/verify", h.Verify)
	r.Post("/abort", h.Abort)
	return r
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.service.StartLogin(r.Context(), req.User, req.Password, req.Method)
	if err != nil {
		renderError(w, r, err)
		return
	}

	switch {
	case res.LoggedIn:
		render.JSON(w, r, toLoginResponse(*res.Login))
	case res.AvailableMethods != nil:
		render.JSON(w, r, LoginResponse{AvailableMethods: res.AvailableMethods})
	default:
		render.JSON(w, r, LoginResponse{ChallengeIssued: res.ChallengeIssued})
	}
}

// SendCode handles POST /code
func (h *Handler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req SendCodeRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.service.DispatchCode(r.Context(), req.User, req.Password, req.Method)
	if err != nil {
		renderError(w, r, err)
		return
	}
	if res.LoggedIn {
		render.JSON(w, r, toLoginResponse(*res.Login))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Verify handles POST /verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decode(w, r, &req) {
		return
	}

	login, err := h.service.VerifyAndLogin(r.Context(), req.User, req.Password, req.Code)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, toLoginResponse(login))
}

// Abort handles POST /abort
func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	var req AbortRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.Abort(r.Context(), req.User, req.Password); err != nil {
		renderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body", Code: string(apperrors.ErrCodeValidationFailed)})
		return false
	}
	return true
}

func toLoginResponse(res session.LoginResult) LoginResponse {
	expiresAt := res.ExpiresAt
	return LoginResponse{
		LoggedIn:  true,
		UserID:    res.UserID.String(),
		Token:     res.Token,
		ExpiresAt: &expiresAt,
	}
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	if code == apperrors.ErrCodeInternal {
		slog.Error("Two factor request failed", "path", r.URL.Path, "error", err)
	}
	render.Status(r, apperrors.MapErrorCodeToHTTPStatus(code))
	render.JSON(w, r, ErrorResponse{Error: apperrors.PublicMessage(err), Code: string(code)})
}
