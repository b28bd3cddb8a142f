package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/chainhabit/chainhabit/internal/api/recovery"
	"github.com/chainhabit/chainhabit/internal/auth"
	"github.com/chainhabit/chainhabit/internal/metrics"
	"github.com/chainhabit/chainhabit/internal/services"
)

// Deps carries everything the router needs; run.go assembles it.
type Deps struct {
	Users      *services.UserService
	Habits     *services.HabitService
	Insights   *services.InsightService
	Authorizer *auth.Authorizer
	IsHealthy  func() bool
	Metrics    *metrics.Metrics
	Log        zerolog.Logger
}

// NewRouter wires all HTTP routes. Route layout:
//
//	public:     /api/health, /metrics, /api/auth/{register,login,forgot-password,reset-password}
//	authed:     /api/auth/{me,logout,session-pulse}, /api/habits...
//	admin-only: /api/admin/...
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)
	router.Use(requestLogger(d.Log))
	if d.Metrics != nil {
		router.Use(d.Metrics.Middleware)
	}
	router.NotFoundHandler = notFoundHandler()

	authHandler := NewAuthHandler(d.Users, d.Authorizer)
	habitHandler := NewHabitHandler(d.Habits)
	adminHandler := NewAdminHandler(d.Users, d.Insights)
	healthHandler := NewHealthHandler(d.IsHealthy)

	// Operational endpoints
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Public auth endpoints
	router.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST")
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	router.HandleFunc("/api/auth/forgot-password", authHandler.ForgotPassword).Methods("POST")
	router.HandleFunc("/api/auth/reset-password", authHandler.ResetPassword).Methods("POST")

	// Everything below requires a valid bearer token.
	authed := router.PathPrefix("/api").Subrouter()
	authed.Use(requireAuth(d.Authorizer))

	authed.HandleFunc("/auth/me", authHandler.Me).Methods("GET")
	authed.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST")
	authed.HandleFunc("/auth/session-pulse", authHandler.SessionPulse).Methods("POST")

	authed.HandleFunc("/habits", habitHandler.List).Methods("GET")
	authed.HandleFunc("/habits", habitHandler.Create).Methods("POST")
	authed.HandleFunc("/habits/{habitId}", habitHandler.Update).Methods("PUT")
	authed.HandleFunc("/habits/{habitId}", habitHandler.Delete).Methods("DELETE")
	authed.HandleFunc("/habits/{habitId}/toggle", habitHandler.Toggle).Methods("PATCH")
	authed.HandleFunc("/habits/{habitId}/archive", habitHandler.Archive).Methods("PATCH")

	// Admin subtree
	admin := authed.PathPrefix("/admin").Subrouter()
	admin.Use(requireAdmin)
	admin.HandleFunc("/users", adminHandler.ListUsers).Methods("GET")
	admin.HandleFunc("/create-user", adminHandler.CreateUser).Methods("POST")
	admin.HandleFunc("/users/{userId}", adminHandler.UpdateUser).Methods("PUT")
	admin.HandleFunc("/users/{userId}", adminHandler.DeleteUser).Methods("DELETE")
	admin.HandleFunc("/user-intelligence/{userId}", adminHandler.UserIntelligence).Methods("GET")

	return router
}
