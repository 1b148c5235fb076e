package handler

import (
	"context"
	"net/http"

	"warbler/internal/core"
	"warbler/internal/http/payload"
	"warbler/internal/http/view"
	"warbler/internal/session"
)

// WarblerService is the part of core.Warbler the handlers call.
type WarblerService interface {
	Ping(ctx context.Context) error

	Signup(ctx context.Context, msg core.SignupMessage) (core.User, error)
	Authenticate(ctx context.Context, username, password string) (core.User, error)
	IssueToken(ctx context.Context, msg core.AuthMessage) (string, error)
	ResolveToken(ctx context.Context, token string) (core.User, error)

	GetUser(ctx context.Context, id uint) (core.User, error)
	SearchUsers(ctx context.Context, term string) ([]core.User, error)
	UpdateProfile(ctx context.Context, actorID uint, update core.ProfileUpdate) (core.User, error)
	DeleteUser(ctx context.Context, actorID uint) error

	Follow(ctx context.Context, actorID, targetID uint) error
	Unfollow(ctx context.Context, actorID, targetID uint) error
	Followers(ctx context.Context, userID uint) ([]core.User, error)
	Following(ctx context.Context, userID uint) ([]core.User, error)

	CreateMessage(ctx context.Context, actorID uint, text string) (core.Message, error)
	GetMessage(ctx context.Context, id uint) (core.Message, error)
	DeleteMessage(ctx context.Context, actorID, messageID uint) error
	ToggleLike(ctx context.Context, actorID, messageID uint) (bool, error)
	UserMessages(ctx context.Context, userID uint) ([]core.Message, error)
	LikedMessages(ctx context.Context, userID uint) ([]core.Message, error)
	Timeline(ctx context.Context, userID uint) ([]core.Message, error)
}

type RequestValidator interface {
	DecodeAndValidateJSONPayload(r *http.Request, object any) error
	ParseAndValidateForm(r *http.Request, object payload.FormPayload) error
}

type SessionManager interface {
	Login(w http.ResponseWriter, r *http.Request, userID uint) error
	Logout(w http.ResponseWriter, r *http.Request) error
	CurrentUserID(r *http.Request) uint
	AddFlash(w http.ResponseWriter, r *http.Request, category, text string) error
	Flashes(w http.ResponseWriter, r *http.Request) []session.Flash
}

type PageRenderer interface {
	Render(w http.ResponseWriter, status int, page string, data view.Page) error
}
