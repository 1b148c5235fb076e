package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"warbler/internal/core"
	"warbler/internal/http/handler/middleware"
	"warbler/internal/http/payload"
	"warbler/internal/http/view"
	"warbler/internal/metrics"
	"warbler/internal/session"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var (
	Home          = "GET /"
	Signup        = "/signup"
	Login         = "/login"
	Logout        = "GET /logout"
	ListUsers     = "GET /users"
	ShowUser      = "GET /users/{id}"
	ShowFollowing = "GET /users/{id}/following"
	ShowFollowers = "GET /users/{id}/followers"
	ShowLikes     = "GET /users/{id}/likes"
	FollowUser    = "POST /users/follow/{id}"
	StopFollowing = "POST /users/stop-following/{id}"
	EditProfile   = "/users/profile"
	DeleteUser    = "POST /users/delete"
	NewMessage    = "/messages/new"
	ShowMessage   = "GET /messages/{id}"
	DeleteMessage = "POST /messages/{id}/delete"
	LikeMessage   = "POST /messages/{id}/like"
)

// WarblerHandler serves the HTML pages.
type WarblerHandler struct {
	logs             *zap.SugaredLogger
	requestValidator RequestValidator
	warbler          WarblerService
	sessions         SessionManager
	pages            PageRenderer
	metrics          *metrics.Metrics
}

func NewWarblerHandler(
	logger *zap.SugaredLogger,
	requestValidator RequestValidator,
	warblerService WarblerService,
	sessions SessionManager,
	pages PageRenderer,
	m *metrics.Metrics,
) *WarblerHandler {
	return &WarblerHandler{
		logs:             logger,
		requestValidator: requestValidator,
		warbler:          warblerService,
		sessions:         sessions,
		pages:            pages,
		metrics:          m,
	}
}

func (h *WarblerHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		h.render(w, r, http.StatusOK, view.PageLanding, view.Page{})
		return
	}

	messages, err := h.warbler.Timeline(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, Home, fmt.Errorf("get timeline: %w", err))
		return
	}

	h.render(w, r, http.StatusOK, view.PageHome, view.Page{Messages: messages})
}

func (h *WarblerHandler) HandleSignupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, view.PageSignup, view.Page{Title: "Sign up"})
}

func (h *WarblerHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var form payload.SignupForm
	if err := h.requestValidator.ParseAndValidateForm(r, &form); err != nil {
		h.fail(w, r, Signup, err)
		return
	}

	user, err := h.warbler.Signup(r.Context(), form.ToMessage())
	if err != nil {
		if errors.Is(err, core.ErrValidation) {
			h.flash(w, r, session.CategoryDanger, err.Error())
			h.render(w, r, http.StatusOK, view.PageSignup, view.Page{Title: "Sign up", Form: form.Values()})
			return
		}
		h.fail(w, r, Signup, fmt.Errorf("signup: %w", err))
		return
	}

	h.metrics.Signups.Inc()

	if err := h.sessions.Login(w, r, user.ID); err != nil {
		h.fail(w, r, Signup, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *WarblerHandler) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, view.PageLogin, view.Page{Title: "Log in"})
}

func (h *WarblerHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var form payload.Credentials
	if err := h.requestValidator.ParseAndValidateForm(r, &form); err != nil {
		h.flash(w, r, session.CategoryDanger, flashInvalidLogin)
		h.render(w, r, http.StatusOK, view.PageLogin, view.Page{Title: "Log in"})
		return
	}

	user, err := h.warbler.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			h.logs.Infow("login rejected",
				"username", form.Username,
				"handler", Login,
				"request_id", middleware.RequestIDFrom(r.Context()))
			h.flash(w, r, session.CategoryDanger, flashInvalidLogin)
			h.render(w, r, http.StatusOK, view.PageLogin, view.Page{
				Title: "Log in",
				Form:  map[string]string{"username": form.Username},
			})
			return
		}
		h.fail(w, r, Login, fmt.Errorf("authenticate: %w", err))
		return
	}

	if err := h.sessions.Login(w, r, user.ID); err != nil {
		h.fail(w, r, Login, err)
		return
	}

	h.flash(w, r, session.CategorySuccess, fmt.Sprintf("Hello, %s!", user.Username))
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *WarblerHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(w, r); err != nil {
		h.fail(w, r, Logout, err)
		return
	}

	h.flash(w, r, session.CategorySuccess, flashLoggedOut)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *WarblerHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	users, err := h.warbler.SearchUsers(r.Context(), query)
	if err != nil {
		h.fail(w, r, ListUsers, fmt.Errorf("search users: %w", err))
		return
	}

	h.render(w, r, http.StatusOK, view.PageUsers, view.Page{Title: "Users", Users: users, Query: query})
}

func (h *WarblerHandler) HandleShowUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.pathUser(w, r, ShowUser)
	if !ok {
		return
	}

	messages, err := h.warbler.UserMessages(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, ShowUser, fmt.Errorf("get user messages: %w", err))
		return
	}

	h.render(w, r, http.StatusOK, view.PageProfile, view.Page{
		Title:    "@" + user.Username,
		User:     &user,
		Messages: messages,
	})
}

func (h *WarblerHandler) HandleShowFollowing(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}
	user, ok := h.pathUser(w, r, ShowFollowing)
	if !ok {
		return
	}

	users, err := h.warbler.Following(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, ShowFollowing, err)
		return
	}

	h.render(w, r, http.StatusOK, view.PageFollowing, view.Page{Title: "Following", User: &user, Users: users})
}

func (h *WarblerHandler) HandleShowFollowers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}
	user, ok := h.pathUser(w, r, ShowFollowers)
	if !ok {
		return
	}

	users, err := h.warbler.Followers(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, ShowFollowers, err)
		return
	}

	h.render(w, r, http.StatusOK, view.PageFollowers, view.Page{Title: "Followers", User: &user, Users: users})
}

func (h *WarblerHandler) HandleShowLikes(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}
	user, ok := h.pathUser(w, r, ShowLikes)
	if !ok {
		return
	}

	messages, err := h.warbler.LikedMessages(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, ShowLikes, err)
		return
	}

	h.render(w, r, http.StatusOK, view.PageLikes, view.Page{Title: "Likes", User: &user, Messages: messages})
}

func (h *WarblerHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	h.changeFollow(w, r, FollowUser, h.warbler.Follow, h.metrics.FollowRequests.Inc)
}

func (h *WarblerHandler) HandleStopFollowing(w http.ResponseWriter, r *http.Request) {
	h.changeFollow(w, r, StopFollowing, h.warbler.Unfollow, h.metrics.UnfollowRequests.Inc)
}

func (h *WarblerHandler) changeFollow(
	w http.ResponseWriter,
	r *http.Request,
	route string,
	change func(ctx context.Context, actorID, targetID uint) error,
	count func(),
) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	targetID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := change(r.Context(), actor.ID, targetID); err != nil {
		if errors.Is(err, core.ErrValidation) {
			h.flash(w, r, session.CategoryDanger, err.Error())
			http.Redirect(w, r, fmt.Sprintf("/users/%d/following", actor.ID), http.StatusFound)
			return
		}
		h.fail(w, r, route, err)
		return
	}

	count()
	http.Redirect(w, r, fmt.Sprintf("/users/%d/following", actor.ID), http.StatusFound)
}

func (h *WarblerHandler) HandleEditProfileForm(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	h.render(w, r, http.StatusOK, view.PageEditProfile, view.Page{
		Title: "Edit profile",
		Form:  payload.ProfileValues(user),
	})
}

func (h *WarblerHandler) HandleEditProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var form payload.ProfileForm
	if err := h.requestValidator.ParseAndValidateForm(r, &form); err != nil {
		h.fail(w, r, EditProfile, err)
		return
	}

	updated, err := h.warbler.UpdateProfile(r.Context(), user.ID, form.ToUpdate())
	switch {
	case err == nil:
	case errors.Is(err, core.ErrInvalidCredentials):
		h.flash(w, r, session.CategoryDanger, flashInvalidLogin)
		h.render(w, r, http.StatusOK, view.PageEditProfile, view.Page{Title: "Edit profile", Form: form.Values()})
		return
	case errors.Is(err, core.ErrValidation):
		h.flash(w, r, session.CategoryDanger, err.Error())
		h.render(w, r, http.StatusOK, view.PageEditProfile, view.Page{Title: "Edit profile", Form: form.Values()})
		return
	default:
		h.fail(w, r, EditProfile, err)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/users/%d", updated.ID), http.StatusFound)
}

func (h *WarblerHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.warbler.DeleteUser(r.Context(), user.ID); err != nil {
		h.fail(w, r, DeleteUser, err)
		return
	}

	if err := h.sessions.Logout(w, r); err != nil {
		h.fail(w, r, DeleteUser, err)
		return
	}

	http.Redirect(w, r, "/signup", http.StatusFound)
}

func (h *WarblerHandler) HandleNewMessageForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	h.render(w, r, http.StatusOK, view.PageNewMessage, view.Page{Title: "New message"})
}

func (h *WarblerHandler) HandleNewMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var form payload.MessageForm
	if err := h.requestValidator.ParseAndValidateForm(r, &form); err != nil {
		h.fail(w, r, NewMessage, err)
		return
	}

	_, err := h.warbler.CreateMessage(r.Context(), user.ID, form.Text)
	if err != nil {
		if errors.Is(err, core.ErrValidation) {
			h.flash(w, r, session.CategoryDanger, err.Error())
			h.render(w, r, http.StatusOK, view.PageNewMessage, view.Page{
				Title: "New message",
				Form:  map[string]string{"text": form.Text},
			})
			return
		}
		h.fail(w, r, NewMessage, err)
		return
	}

	h.metrics.MessagesSent.Inc()
	http.Redirect(w, r, fmt.Sprintf("/users/%d", user.ID), http.StatusFound)
}

func (h *WarblerHandler) HandleShowMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	message, err := h.warbler.GetMessage(r.Context(), id)
	if err != nil {
		h.fail(w, r, ShowMessage, err)
		return
	}

	h.render(w, r, http.StatusOK, view.PageMessage, view.Page{Title: "Message", Message: &message})
}

func (h *WarblerHandler) HandleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.warbler.DeleteMessage(r.Context(), user.ID, id); err != nil {
		h.fail(w, r, DeleteMessage, err)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/users/%d", user.ID), http.StatusFound)
}

func (h *WarblerHandler) HandleLikeMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	liked, err := h.warbler.ToggleLike(r.Context(), user.ID, id)
	if err != nil {
		h.fail(w, r, LikeMessage, err)
		return
	}

	h.metrics.Like(liked)
	http.Redirect(w, r, backTo(r), http.StatusFound)
}

func (h *WarblerHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, view.PageNotFound, view.Page{Title: "Not found"})
}

// requireUser redirects anonymous requests home with a flash.
func (h *WarblerHandler) requireUser(w http.ResponseWriter, r *http.Request) (core.User, bool) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		h.unauthorized(w, r)
		return core.User{}, false
	}
	return user, true
}

func (h *WarblerHandler) unauthorized(w http.ResponseWriter, r *http.Request) {
	h.flash(w, r, session.CategoryDanger, flashUnauthorized)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *WarblerHandler) pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := parseID(r)
	if err != nil {
		h.HandleNotFound(w, r)
		return 0, false
	}
	return id, true
}

func parseID(r *http.Request) (uint, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q: %w", raw, core.ErrNotFound)
	}
	return uint(id), nil
}

func (h *WarblerHandler) pathUser(w http.ResponseWriter, r *http.Request, route string) (core.User, bool) {
	id, ok := h.pathID(w, r)
	if !ok {
		return core.User{}, false
	}

	user, err := h.warbler.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, route, err)
		return core.User{}, false
	}
	return user, true
}

// fail maps a service error onto the page the browser should see.
func (h *WarblerHandler) fail(w http.ResponseWriter, r *http.Request, route string, err error) {
	requestID := middleware.RequestIDFrom(r.Context())

	switch {
	case errors.Is(err, core.ErrUnauthorized), errors.Is(err, core.ErrForbidden):
		h.logs.Warnw("unauthorized request",
			"error", err,
			"handler", route,
			"request_id", requestID)
		h.unauthorized(w, r)
	case errors.Is(err, core.ErrNotFound):
		h.HandleNotFound(w, r)
	case errors.Is(err, payload.ErrInvalidForm):
		h.logs.Infow("malformed form submission",
			"error", err,
			"handler", route,
			"request_id", requestID)
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
	default:
		h.logs.Errorw("request failed",
			"error", err,
			"handler", route,
			"request_id", requestID)
		h.render(w, r, http.StatusInternalServerError, view.PageServerError, view.Page{Title: "Error"})
	}
}

func (h *WarblerHandler) flash(w http.ResponseWriter, r *http.Request, category, text string) {
	if err := h.sessions.AddFlash(w, r, category, text); err != nil {
		h.logs.Errorw("failed to store flash",
			"error", err,
			"request_id", middleware.RequestIDFrom(r.Context()))
	}
}

func (h *WarblerHandler) render(w http.ResponseWriter, r *http.Request, status int, page string, data view.Page) {
	if user, ok := middleware.CurrentUser(r.Context()); ok {
		data.CurrentUser = &user
	}
	data.Flashes = h.sessions.Flashes(w, r)

	if err := h.pages.Render(w, status, page, data); err != nil {
		http.Error(w, oopsErr, http.StatusInternalServerError)
		h.logs.Errorw("failed to render page",
			"error", err,
			"page", page,
			"request_id", middleware.RequestIDFrom(r.Context()))
	}
}

// backTo returns the local referer path, or the home page.
func backTo(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return "/"
	}
	return ref.RequestURI()
}
