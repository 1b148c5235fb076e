package core

import (
	"context"

	"warbler/internal/repository"
	tokenIssuer "warbler/pkg/jwt"

	"github.com/golang-jwt/jwt"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

type Repository interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *repository.User) error
	UpdateUser(ctx context.Context, user *repository.User) error
	DeleteUser(ctx context.Context, id uint) error
	GetUserByID(ctx context.Context, id uint) (repository.User, error)
	GetUserByUsername(ctx context.Context, username string) (repository.User, error)
	GetUserByEmail(ctx context.Context, email string) (repository.User, error)
	GetUsersByIDs(ctx context.Context, ids []uint) ([]repository.User, error)
	SearchUsers(ctx context.Context, term string) ([]repository.User, error)
	CountUsers(ctx context.Context) (int64, error)
	SeedUsers(ctx context.Context, users []repository.User, texts []string) error

	AddFollow(ctx context.Context, followerID, followedID uint) error
	RemoveFollow(ctx context.Context, followerID, followedID uint) error
	FollowExists(ctx context.Context, followerID, followedID uint) (bool, error)
	FollowEdges(ctx context.Context, userID uint) ([]uint, []uint, error)
	Followers(ctx context.Context, userID uint) ([]repository.User, error)
	Following(ctx context.Context, userID uint) ([]repository.User, error)

	CreateMessage(ctx context.Context, message *repository.Message) error
	GetMessage(ctx context.Context, id uint) (repository.Message, error)
	DeleteMessage(ctx context.Context, id uint) error
	MessagesByAuthors(ctx context.Context, authorIDs []uint, limit int) ([]repository.Message, error)
	LikedMessages(ctx context.Context, userID uint) ([]repository.Message, error)
	CountMessages(ctx context.Context, userID uint) (int64, error)

	CountLikes(ctx context.Context, userID uint) (int64, error)
	ToggleLike(ctx context.Context, userID, messageID uint) (bool, error)
	LikedBy(ctx context.Context, messageIDs []uint) (map[uint][]string, error)
}

//counterfeiter:generate -o fake -fake-name TokenIssuer . TokenIssuer
type TokenIssuer interface {
	Generate(data tokenIssuer.TokenInfo) *jwt.Token
	Sign(token *jwt.Token) (string, error)
	Validate(token string) (jwt.MapClaims, error)
}
