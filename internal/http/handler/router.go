package handler

import (
	"net/http"

	"warbler/internal/http/view"

	"github.com/gorilla/mux"
)

// NewRouter registers every route. The middlewares wrap matched routes in
// the given order.
func NewRouter(h *WarblerHandler, metricsHandler http.Handler, middlewares ...mux.MiddlewareFunc) *mux.Router {
	router := mux.NewRouter()
	router.Use(middlewares...)

	router.HandleFunc("/", h.HandleHome).Methods(http.MethodGet)
	router.HandleFunc("/signup", h.HandleSignupForm).Methods(http.MethodGet)
	router.HandleFunc("/signup", h.HandleSignup).Methods(http.MethodPost)
	router.HandleFunc("/login", h.HandleLoginForm).Methods(http.MethodGet)
	router.HandleFunc("/login", h.HandleLogin).Methods(http.MethodPost)
	router.HandleFunc("/logout", h.HandleLogout).Methods(http.MethodGet)

	users := router.PathPrefix("/users").Subrouter()
	users.HandleFunc("", h.HandleListUsers).Methods(http.MethodGet)
	users.HandleFunc("/profile", h.HandleEditProfileForm).Methods(http.MethodGet)
	users.HandleFunc("/profile", h.HandleEditProfile).Methods(http.MethodPost)
	users.HandleFunc("/delete", h.HandleDeleteUser).Methods(http.MethodPost)
	users.HandleFunc("/follow/{id:[0-9]+}", h.HandleFollow).Methods(http.MethodPost)
	users.HandleFunc("/stop-following/{id:[0-9]+}", h.HandleStopFollowing).Methods(http.MethodPost)
	users.HandleFunc("/{id:[0-9]+}", h.HandleShowUser).Methods(http.MethodGet)
	users.HandleFunc("/{id:[0-9]+}/following", h.HandleShowFollowing).Methods(http.MethodGet)
	users.HandleFunc("/{id:[0-9]+}/followers", h.HandleShowFollowers).Methods(http.MethodGet)
	users.HandleFunc("/{id:[0-9]+}/likes", h.HandleShowLikes).Methods(http.MethodGet)

	messages := router.PathPrefix("/messages").Subrouter()
	messages.HandleFunc("/new", h.HandleNewMessageForm).Methods(http.MethodGet)
	messages.HandleFunc("/new", h.HandleNewMessage).Methods(http.MethodPost)
	messages.HandleFunc("/{id:[0-9]+}", h.HandleShowMessage).Methods(http.MethodGet)
	messages.HandleFunc("/{id:[0-9]+}/delete", h.HandleDeleteMessage).Methods(http.MethodPost)
	messages.HandleFunc("/{id:[0-9]+}/like", h.HandleLikeMessage).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/authenticate", h.HandleAuthenticate).Methods(http.MethodPost)
	api.HandleFunc("/timeline", h.HandleGetTimeline).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}", h.HandleGetUser).Methods(http.MethodGet)

	router.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	router.PathPrefix("/static/").Handler(view.Static()).Methods(http.MethodGet)

	// mux skips Use middlewares for unmatched requests.
	var notFound http.Handler = http.HandlerFunc(h.HandleNotFound)
	for i := len(middlewares) - 1; i >= 0; i-- {
		notFound = middlewares[i](notFound)
	}
	router.NotFoundHandler = notFound

	return router
}
