package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/chainhabit/chainhabit/internal/api/respond"
	"github.com/chainhabit/chainhabit/internal/api/validate"
	"github.com/chainhabit/chainhabit/internal/services"
)

// HabitHandler serves the authenticated habit CRUD and toggle endpoints.
// Every route is scoped to the account on the request context; habit IDs
// from other accounts resolve to 404.
type HabitHandler struct {
	habits *services.HabitService
}

func NewHabitHandler(habits *services.HabitService) *HabitHandler {
	return &HabitHandler{habits: habits}
}

func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	habits, err := h.habits.ListHabits(r.Context(), u.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, habits)
}

func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title  string `json:"title"`
		Target int    `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.CreateHabit(in.Title, in.Target); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	u := currentUser(r)
	habit, err := h.habits.CreateHabit(r.Context(), u.UserID, in.Title, in.Target)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, habit)
}

func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title  string `json:"title"`
		Target int    `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}

	u := currentUser(r)
	habit, err := h.habits.UpdateHabit(r.Context(), u.UserID, mux.Vars(r)["habitId"], in.Title, in.Target)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, habit)
}

// Toggle flips the completion marker for one calendar date.
func (h *HabitHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Date(in.Date); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	u := currentUser(r)
	habit, err := h.habits.ToggleDate(r.Context(), u.UserID, mux.Vars(r)["habitId"], in.Date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, habit)
}

func (h *HabitHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Archived bool `json:"archived"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}

	u := currentUser(r)
	habit, err := h.habits.ArchiveHabit(r.Context(), u.UserID, mux.Vars(r)["habitId"], in.Archived)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, habit)
}

func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	if err := h.habits.DeleteHabit(r.Context(), u.UserID, mux.Vars(r)["habitId"]); err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"message": "habit deleted"})
}
