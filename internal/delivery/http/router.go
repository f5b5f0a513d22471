package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"orbit/internal/delivery/http/controllers"
	"orbit/internal/delivery/http/middleware"
	"orbit/internal/domain"
)

// NewRouter initializes the HTTP router with all application routes.
func NewRouter(
	authController *controllers.AuthController,
	eventController *controllers.EventController,
	checkInController *controllers.CheckInController,
	userController *controllers.UserController,
	verifier domain.TokenVerifier,
	users domain.UserService,
) *http.ServeMux {
	mux := http.NewServeMux()

	auth := middleware.RequireAuth(verifier)
	hostOnly := middleware.RequireRole(users, domain.RoleHost)

	// Auth
	mux.HandleFunc("POST /auth/signup", authController.SignUp)
	mux.HandleFunc("POST /auth/login", authController.Login)

	// Events
	mux.HandleFunc("POST /events", auth(hostOnly(eventController.CreateEvent)))
	mux.HandleFunc("GET /events", eventController.ListEvents)
	mux.HandleFunc("GET /events/stream", auth(eventController.StreamEvents))
	mux.HandleFunc("GET /events/{eventID}", eventController.GetEvent)
	mux.HandleFunc("GET /events/{eventID}/stream", auth(eventController.StreamEvent))
	mux.HandleFunc("PATCH /events/{eventID}", auth(eventController.UpdateEvent))
	mux.HandleFunc("DELETE /events/{eventID}", auth(eventController.DeleteEvent))
	mux.HandleFunc("POST /events/{eventID}/sync-count", auth(eventController.SyncCount))

	// Check-ins and roster
	mux.HandleFunc("POST /events/{eventID}/checkins", auth(checkInController.CheckIn))
	mux.HandleFunc("DELETE /events/{eventID}/checkins", auth(checkInController.CheckOut))
	mux.HandleFunc("GET /events/{eventID}/checkins", auth(checkInController.ListRoster))
	mux.HandleFunc("GET /events/{eventID}/checkins/me", auth(checkInController.MyCheckIn))
	mux.HandleFunc("GET /events/{eventID}/roster/stream", auth(checkInController.StreamRoster))

	// Profile
	mux.HandleFunc("GET /me", auth(userController.GetMe))
	mux.HandleFunc("GET /me/events", auth(eventController.ListMyEvents))
	mux.HandleFunc("PATCH /me", auth(userController.UpdateMe))
	mux.HandleFunc("GET /me/attended-events", auth(userController.ListAttendedEvents))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
