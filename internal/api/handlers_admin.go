package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/chainhabit/chainhabit/internal/api/respond"
	"github.com/chainhabit/chainhabit/internal/api/validate"
	"github.com/chainhabit/chainhabit/internal/services"
)

// AdminHandler serves the admin-only user management and behavioral
// intelligence endpoints. requireAdmin gates the whole subtree.
type AdminHandler struct {
	users    *services.UserService
	insights *services.InsightService
}

func NewAdminHandler(users *services.UserService, insights *services.InsightService) *AdminHandler {
	return &AdminHandler{users: users, insights: insights}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, users)
}

// CreateUser provisions an account and emails the credentials to its owner.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Register(in.Username, in.Email, in.Password); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	u, err := h.users.AdminCreateUser(r.Context(), in.Username, in.Email, in.Password, in.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, u)
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
		Role     *string `json:"role"`
		IsActive *bool   `json:"isActive"`
		Password *string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if in.Email != nil && *in.Email != "" {
		if err := validate.Email(*in.Email); err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
	}
	if in.Password != nil && *in.Password != "" {
		if err := validate.Password(*in.Password); err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
	}

	u, err := h.users.UpdateUser(r.Context(), mux.Vars(r)["userId"], services.UpdateUserParams{
		Username: in.Username,
		Email:    in.Email,
		Role:     in.Role,
		IsActive: in.IsActive,
		Password: in.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, u)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteUser(r.Context(), mux.Vars(r)["userId"]); err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

// UserIntelligence returns the full behavioral snapshot for one account.
func (h *AdminHandler) UserIntelligence(w http.ResponseWriter, r *http.Request) {
	out, err := h.insights.UserIntelligence(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}
