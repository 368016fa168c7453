package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gatherly/server/internal/api/handlers"
	"github.com/gatherly/server/internal/api/middleware"
	"github.com/gatherly/server/internal/auth"
	"github.com/gatherly/server/internal/blob"
	"github.com/gatherly/server/internal/config"
	"github.com/gatherly/server/internal/domain/events"
	"github.com/gatherly/server/internal/domain/notifications"
	"github.com/gatherly/server/internal/domain/organizations"
	"github.com/gatherly/server/internal/domain/registrations"
	"github.com/gatherly/server/internal/domain/users"
	"github.com/gatherly/server/internal/metrics"
)

// Deps carries the assembled services the router wires to routes. The
// caller owns construction so tests can swap in whatever they need.
type Deps struct {
	Users         *users.Service
	Events        *events.Service
	Registrations *registrations.Workflow
	Organizations *organizations.Service
	Notifications *notifications.Service
	Blobs         blob.Store
	Tokens        *auth.JWTManager
	Pool          handlers.Pinger
	Config        config.Config
	Logger        zerolog.Logger
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger

	authHandler := handlers.NewAuthHandler(deps.Users, deps.Tokens, logger)
	usersHandler := handlers.NewUsersHandler(deps.Users, deps.Blobs, logger)
	eventsHandler := handlers.NewEventsHandler(deps.Events, deps.Registrations, logger)
	regHandler := handlers.NewRegistrationsHandler(deps.Registrations, logger)
	orgHandler := handlers.NewOrganizationsHandler(deps.Organizations, logger)
	notifHandler := handlers.NewNotificationsHandler(deps.Notifications, logger)
	uploadsHandler := handlers.NewUploadsHandler(deps.Blobs, logger)

	requireAuth := middleware.RequireAuth(deps.Tokens)
	optionalAuth := middleware.OptionalAuth(deps.Tokens)
	rateLimit := middleware.RateLimit(deps.Config.RateLimit)
	userTier := middleware.WithRateLimitTierHandler(middleware.TierUser)
	loginTier := middleware.WithRateLimitTierHandler(middleware.TierLogin)
	jsonBody := middleware.RequestSize(middleware.DefaultMaxBodySize)
	uploadBody := middleware.RequestSize(middleware.UploadMaxBodySize)

	// The tier tag must land in the context before the limiter reads
	// it, and limiting runs before token validation so unauthenticated
	// floods are cheap to shed.
	authed := func(h http.HandlerFunc) http.Handler {
		return userTier(rateLimit(requireAuth(jsonBody(h))))
	}
	authedUpload := func(h http.HandlerFunc) http.Handler {
		return userTier(rateLimit(requireAuth(uploadBody(h))))
	}
	public := func(h http.HandlerFunc) http.Handler {
		return rateLimit(jsonBody(h))
	}
	viewer := func(h http.HandlerFunc) http.Handler {
		return rateLimit(optionalAuth(jsonBody(h)))
	}
	login := func(h http.HandlerFunc) http.Handler {
		return loginTier(rateLimit(jsonBody(h)))
	}

	mux := http.NewServeMux()

	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", handlers.Readyz(deps.Pool))
	mux.Handle("/metrics", metrics.Handler())

	mux.Handle("/api/auth/signup", methodMux(map[string]http.Handler{
		http.MethodPost: login(authHandler.Signup),
	}))
	mux.Handle("/api/auth/login", methodMux(map[string]http.Handler{
		http.MethodPost: login(authHandler.Login),
	}))
	mux.Handle("/api/auth/logout", methodMux(map[string]http.Handler{
		http.MethodPost: authed(authHandler.Logout),
	}))
	mux.Handle("/api/auth/me", methodMux(map[string]http.Handler{
		http.MethodGet: authed(authHandler.Me),
	}))
	mux.Handle("/api/auth/check-username", methodMux(map[string]http.Handler{
		http.MethodGet: public(authHandler.CheckUsername),
	}))
	mux.Handle("/api/auth/send-verification", methodMux(map[string]http.Handler{
		http.MethodPost: login(authHandler.SendVerification),
	}))
	mux.Handle("/api/auth/verify-email", methodMux(map[string]http.Handler{
		http.MethodPost: login(authHandler.VerifyEmail),
	}))

	mux.Handle("/api/users/{id}", methodMux(map[string]http.Handler{
		http.MethodGet: authed(usersHandler.Get),
	}))
	mux.Handle("/api/users/me/username", methodMux(map[string]http.Handler{
		http.MethodPut: authed(usersHandler.UpdateUsername),
	}))
	mux.Handle("/api/users/me/categories", methodMux(map[string]http.Handler{
		http.MethodPut: authed(usersHandler.UpdateCategories),
	}))
	mux.Handle("/api/users/me/photo", methodMux(map[string]http.Handler{
		http.MethodPost:   authedUpload(usersHandler.UploadPhoto),
		http.MethodDelete: authed(usersHandler.DeletePhoto),
	}))
	mux.Handle("/api/users/me/favorites", methodMux(map[string]http.Handler{
		http.MethodGet: authed(usersHandler.ListFavorites),
	}))
	mux.Handle("/api/users/me/favorites/{eventID}", methodMux(map[string]http.Handler{
		http.MethodGet:    authed(usersHandler.IsFavorite),
		http.MethodPost:   authed(usersHandler.AddFavorite),
		http.MethodDelete: authed(usersHandler.RemoveFavorite),
	}))
	mux.Handle("/api/users/me/organizer-request", methodMux(map[string]http.Handler{
		http.MethodGet:  authed(usersHandler.OrganizerRequestStatus),
		http.MethodPost: authed(usersHandler.RequestOrganizer),
	}))
	mux.Handle("/api/users/me/delete-request", methodMux(map[string]http.Handler{
		http.MethodPost: authed(usersHandler.RequestDeletion),
	}))
	mux.Handle("/api/users/me/delete-confirm", methodMux(map[string]http.Handler{
		http.MethodPost: authed(usersHandler.ConfirmDeletion),
	}))

	mux.Handle("/api/events", methodMux(map[string]http.Handler{
		http.MethodGet:  public(eventsHandler.List),
		http.MethodPost: authed(eventsHandler.Create),
	}))
	mux.Handle("/api/events/popular", methodMux(map[string]http.Handler{
		http.MethodGet: public(eventsHandler.Popular),
	}))
	mux.Handle("/api/events/upcoming", methodMux(map[string]http.Handler{
		http.MethodGet: public(eventsHandler.Upcoming),
	}))
	mux.Handle("/api/events/recommended", methodMux(map[string]http.Handler{
		http.MethodGet: viewer(eventsHandler.Recommended),
	}))
	mux.Handle("/api/events/mine", methodMux(map[string]http.Handler{
		http.MethodGet: authed(eventsHandler.Mine),
	}))
	mux.Handle("/api/events/organized", methodMux(map[string]http.Handler{
		http.MethodGet: authed(eventsHandler.Organized),
	}))
	mux.Handle("/api/events/joined", methodMux(map[string]http.Handler{
		http.MethodGet: authed(eventsHandler.Joined),
	}))
	mux.Handle("/api/events/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    viewer(eventsHandler.Get),
		http.MethodPut:    authed(eventsHandler.Update),
		http.MethodDelete: authed(eventsHandler.Delete),
	}))

	mux.Handle("/api/events/{id}/join", methodMux(map[string]http.Handler{
		http.MethodPost: authed(regHandler.Join),
	}))
	mux.Handle("/api/events/{id}/leave", methodMux(map[string]http.Handler{
		http.MethodPost: authed(regHandler.Leave),
	}))
	mux.Handle("/api/events/{id}/joined", methodMux(map[string]http.Handler{
		http.MethodGet: authed(regHandler.IsJoined),
	}))
	mux.Handle("/api/events/{id}/register", methodMux(map[string]http.Handler{
		http.MethodPost:   authed(regHandler.Request),
		http.MethodDelete: authed(regHandler.Cancel),
	}))
	mux.Handle("/api/events/{id}/approved-count", methodMux(map[string]http.Handler{
		http.MethodGet: public(regHandler.ApprovedCount),
	}))
	mux.Handle("/api/events/{id}/registration-status", methodMux(map[string]http.Handler{
		http.MethodGet: authed(regHandler.Status),
	}))
	mux.Handle("/api/events/{id}/registrations", methodMux(map[string]http.Handler{
		http.MethodGet: authed(regHandler.List),
	}))
	mux.Handle("/api/events/{id}/registrations/{registrationID}/approve", methodMux(map[string]http.Handler{
		http.MethodPost: authed(regHandler.Approve),
	}))
	mux.Handle("/api/events/{id}/registrations/{registrationID}/reject", methodMux(map[string]http.Handler{
		http.MethodPost: authed(regHandler.Reject),
	}))

	mux.Handle("/api/organizations/me", methodMux(map[string]http.Handler{
		http.MethodPut: authed(orgHandler.UpsertProfile),
	}))
	mux.Handle("/api/organizations/following", methodMux(map[string]http.Handler{
		http.MethodGet: authed(orgHandler.Following),
	}))
	mux.Handle("/api/organizations/{id}", methodMux(map[string]http.Handler{
		http.MethodGet: viewer(orgHandler.Get),
	}))
	mux.Handle("/api/organizations/{id}/follow", methodMux(map[string]http.Handler{
		http.MethodPost:   authed(orgHandler.Follow),
		http.MethodDelete: authed(orgHandler.Unfollow),
	}))
	mux.Handle("/api/organizations/{id}/is-following", methodMux(map[string]http.Handler{
		http.MethodGet: authed(orgHandler.IsFollowing),
	}))

	mux.Handle("/api/notifications", methodMux(map[string]http.Handler{
		http.MethodGet:    authed(notifHandler.List),
		http.MethodDelete: authed(notifHandler.DeleteAll),
	}))
	mux.Handle("/api/notifications/{id}/read", methodMux(map[string]http.Handler{
		http.MethodPut: authed(notifHandler.MarkRead),
	}))
	mux.Handle("/api/notifications/{id}", methodMux(map[string]http.Handler{
		http.MethodDelete: authed(notifHandler.Delete),
	}))

	mux.Handle("/api/uploads/event-image", methodMux(map[string]http.Handler{
		http.MethodPost: authedUpload(uploadsHandler.EventImage),
	}))

	var handler http.Handler = mux
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.CORS(deps.Config.CORS, logger)(handler)
	handler = middleware.RequestLogging(logger)(handler)
	return handler
}

func methodMux(routes map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := routes[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(routes))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(routes map[string]http.Handler) string {
	methods := make([]string, 0, len(routes))
	for method := range routes {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
