package routes

import (
	"net/http"
	"time"

	"github.com/214WANGCAN/adventurer-backend/controllers/tasks"
	"github.com/214WANGCAN/adventurer-backend/middleware"
	"github.com/214WANGCAN/adventurer-backend/models"

	"github.com/gorilla/mux"
)

// TasksRoutes registers the task board and lifecycle routes on the subrouter.
func TasksRoutes(api *mux.Router) {
	// Board reads are public and polled by the frontend, so the IP budget is
	// generous.
	boardLimiter := middleware.NewIPRateLimiter(300, 5*time.Minute)
	userLimiter := middleware.NewUserRateLimiter(120, 60, 60)

	student := middleware.RequireRole(models.RoleStudent)
	teacher := middleware.RequireRole(models.RoleTeacher, models.RoleAdmin)

	// Board
	api.Handle("/tasks", boardLimiter.Middleware(middleware.OptionalAuthMiddleware(http.HandlerFunc(tasks.TaskListHandler)))).Methods(http.MethodGet)
	api.Handle("/tasks", userLimiter.Middleware(middleware.AuthMiddleware(teacher(http.HandlerFunc(tasks.TaskCreateHandler))))).Methods(http.MethodPost)
	api.Handle("/tasks/mine", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(tasks.MyTasksHandler)))).Methods(http.MethodGet)
	api.Handle("/tasks/{taskid:[0-9]+}", boardLimiter.Middleware(middleware.OptionalAuthMiddleware(http.HandlerFunc(tasks.TaskDetailHandler)))).Methods(http.MethodGet)

	// Lifecycle: student side
	api.Handle("/tasks/{taskid:[0-9]+}/apply", userLimiter.Middleware(middleware.AuthMiddleware(student(http.HandlerFunc(tasks.ApplyHandler))))).Methods(http.MethodPost)
	api.Handle("/tasks/{taskid:[0-9]+}/accept", userLimiter.Middleware(middleware.AuthMiddleware(student(http.HandlerFunc(tasks.AcceptInvitationHandler))))).Methods(http.MethodPost)
	api.Handle("/tasks/{taskid:[0-9]+}/reject", userLimiter.Middleware(middleware.AuthMiddleware(student(http.HandlerFunc(tasks.RejectInvitationHandler))))).Methods(http.MethodPost)
	api.Handle("/tasks/{taskid:[0-9]+}/cancel", userLimiter.Middleware(middleware.AuthMiddleware(student(http.HandlerFunc(tasks.RequestCancelHandler))))).Methods(http.MethodPost)
	api.Handle("/tasks/{taskid:[0-9]+}/urge-approval", userLimiter.Middleware(middleware.AuthMiddleware(student(http.HandlerFunc(tasks.UrgeApprovalHandler))))).Methods(http.MethodPost)

	// Lifecycle: publisher side
	api.Handle("/tasks/{taskid:[0-9]+}/approve-cancel", userLimiter.Middleware(middleware.AuthMiddleware(teacher(http.HandlerFunc(tasks.ApproveCancelHandler))))).Methods(http.MethodPost)
	api.Handle("/tasks/{taskid:[0-9]+}/reject-cancel", userLimiter.Middleware(middleware.AuthMiddleware(teacher(http.HandlerFunc(tasks.RejectCancelHandler))))).Methods(http.MethodPost)
	api.Handle("/tasks/{taskid:[0-9]+}/complete", userLimiter.Middleware(middleware.AuthMiddleware(teacher(http.HandlerFunc(tasks.ApproveCompleteHandler))))).Methods(http.MethodPost)
	api.Handle("/tasks/{taskid:[0-9]+}/reject-complete", userLimiter.Middleware(middleware.AuthMiddleware(teacher(http.HandlerFunc(tasks.RejectCompleteHandler))))).Methods(http.MethodPost)
	api.Handle("/tasks/{taskid:[0-9]+}/remove-participant", userLimiter.Middleware(middleware.AuthMiddleware(teacher(http.HandlerFunc(tasks.RemoveParticipantHandler))))).Methods(http.MethodPost)
}
