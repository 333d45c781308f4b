package routes

import (
	"net/http"
	"time"

	"github.com/214WANGCAN/adventurer-backend/controllers/auth"
	"github.com/214WANGCAN/adventurer-backend/controllers/users"
	"github.com/214WANGCAN/adventurer-backend/middleware"

	"github.com/gorilla/mux"
)

// UsersRoutes registers authentication and profile routes on the subrouter.
func UsersRoutes(api *mux.Router) {
	// Login/register limiter: 60 per IP per 5 minutes
	loginLimiter := middleware.NewIPRateLimiter(60, 5*time.Minute)
	// Per-user limiter: 120 reads, 60 writes per minute
	userLimiter := middleware.NewUserRateLimiter(120, 60, 60)

	api.Handle("/auth/register", loginLimiter.Middleware(http.HandlerFunc(auth.RegisterHandler))).Methods(http.MethodPost)
	api.Handle("/auth/login", loginLimiter.Middleware(http.HandlerFunc(auth.LoginHandler))).Methods(http.MethodPost)
	api.Handle("/auth/refresh", loginLimiter.Middleware(http.HandlerFunc(auth.RefreshHandler))).Methods(http.MethodPost)
	api.Handle("/auth/logout", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(auth.LogoutHandler)))).Methods(http.MethodPost)
	api.Handle("/auth/logout-all", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(auth.LogoutAllHandler)))).Methods(http.MethodPost)

	api.Handle("/users/me", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(users.MeHandler)))).Methods(http.MethodGet)
	api.Handle("/users/me", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(users.UpdateProfileHandler)))).Methods(http.MethodPatch)
	api.Handle("/users/me/password", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(users.ChangePasswordHandler)))).Methods(http.MethodPost)
	api.Handle("/users/{username}", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(users.UserDetailHandler)))).Methods(http.MethodGet)
}
