package routes

import (
	"net/http"
	"time"

	"github.com/214WANGCAN/adventurer-backend/controllers/notifications"
	"github.com/214WANGCAN/adventurer-backend/controllers/qr"
	"github.com/214WANGCAN/adventurer-backend/controllers/uploads"
	"github.com/214WANGCAN/adventurer-backend/middleware"
	"github.com/214WANGCAN/adventurer-backend/models"

	"github.com/gorilla/mux"
)

// NotificationsRoutes registers notification, upload and QR routes on the
// subrouter.
func NotificationsRoutes(api *mux.Router) {
	userLimiter := middleware.NewUserRateLimiter(120, 60, 60)
	// QR rendering is CPU-bound, so it gets its own tighter IP budget.
	qrLimiter := middleware.NewIPRateLimiter(60, time.Minute)

	admin := middleware.RequireRole(models.RoleAdmin)

	api.Handle("/notifications", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(notifications.LatestHandler)))).Methods(http.MethodGet)
	api.Handle("/notifications/unread", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(notifications.UnreadHandler)))).Methods(http.MethodGet)
	api.Handle("/notifications/read-all", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(notifications.MarkAllReadHandler)))).Methods(http.MethodPost)
	api.Handle("/notifications/{id:[0-9]+}/read", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(notifications.MarkReadHandler)))).Methods(http.MethodPost)

	api.Handle("/admin/broadcast", userLimiter.Middleware(middleware.AuthMiddleware(admin(http.HandlerFunc(notifications.BroadcastHandler))))).Methods(http.MethodPost)

	api.Handle("/uploads/image", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(uploads.UploadImageHandler)))).Methods(http.MethodPost)

	api.Handle("/qr", qrLimiter.Middleware(http.HandlerFunc(qr.GenerateHandler))).Methods(http.MethodGet)
}
