package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/chainhabit/chainhabit/internal/api/respond"
	"github.com/chainhabit/chainhabit/internal/api/validate"
	"github.com/chainhabit/chainhabit/internal/auth"
	"github.com/chainhabit/chainhabit/internal/model"
	"github.com/chainhabit/chainhabit/internal/services"
)

// AuthHandler serves registration, login and password recovery.
type AuthHandler struct {
	users      *services.UserService
	authorizer *auth.Authorizer
}

func NewAuthHandler(users *services.UserService, authorizer *auth.Authorizer) *AuthHandler {
	return &AuthHandler{users: users, authorizer: authorizer}
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Register(in.Username, in.Email, in.Password); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	u, token, err := h.users.Register(r.Context(), in.Username, in.Email, in.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, sessionResponse{Token: token, User: u})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Browser  string `json:"browser"`
		OS       string `json:"os"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Login(in.Email, in.Password); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	device := &model.ActivityDevice{Browser: in.Browser, OS: in.OS, IP: clientIP(r)}
	u, token, err := h.users.Login(r.Context(), in.Email, in.Password, device)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, sessionResponse{Token: token, User: u})
}

// Logout records the session length and revokes the account's tokens.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DurationMinutes int `json:"durationMinutes"`
	}
	// An empty body is fine; the duration just defaults to zero.
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		respond.WriteBadRequest(w, "invalid json")
		return
	}

	u := currentUser(r)
	if err := h.users.Logout(r.Context(), u.UserID, in.DurationMinutes); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.authorizer.RevokeUserTokens(r.Context(), u.UserID); err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// SessionPulse records a periodic session-duration sample from the client.
func (h *AuthHandler) SessionPulse(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DurationMinutes int `json:"durationMinutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if in.DurationMinutes <= 0 {
		respond.WriteBadRequest(w, "durationMinutes must be positive")
		return
	}

	u := currentUser(r)
	if err := h.users.RecordSessionPulse(r.Context(), u.UserID, in.DurationMinutes); err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"message": "recorded"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Email(in.Email); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.users.ForgotPassword(r.Context(), in.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"message": "OTP sent to email"})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Email(in.Email); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.NonEmpty("otp", in.OTP); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.Password(in.NewPassword); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.users.ResetPassword(r.Context(), in.Email, in.OTP, in.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, currentUser(r))
}
