package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"warbler/internal/repository"
	tokenIssuer "warbler/pkg/jwt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const tokenLifetimeHours = 24

// Warbler implements the application operations: accounts, the follow graph,
// messages and likes.
type Warbler struct {
	logs       *zap.SugaredLogger
	repo       Repository
	tokens     TokenIssuer
	bcryptCost int
	dummyHash  []byte
}

// NewWarbler is a constructor function for the Warbler type.
func NewWarbler(logger *zap.SugaredLogger, repo Repository, tokens TokenIssuer, bcryptCost int) *Warbler {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}

	dummyHash, err := bcrypt.GenerateFromPassword([]byte("warbler-timing-guard"), bcryptCost)
	if err != nil {
		logger.Errorw("failed to prepare dummy password hash", "error", err)
	}

	return &Warbler{
		logs:       logger,
		repo:       repo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		dummyHash:  dummyHash,
	}
}

func (w *Warbler) Ping(ctx context.Context) error {
	return w.repo.Ping(ctx)
}

// Signup validates the input, hashes the password and stores the new user.
// Nothing is stored when an error is returned.
func (w *Warbler) Signup(ctx context.Context, msg SignupMessage) (User, error) {
	if err := msg.Validate(); err != nil {
		return User{}, &ValidationError{Err: err}
	}

	if err := w.ensureAvailable(ctx, 0, msg.Username, msg.Email); err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(msg.Password), w.bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	imageURL := msg.ImageURL
	if imageURL == "" {
		imageURL = DefaultImageURL
	}

	row := repository.User{
		Username:       msg.Username,
		Email:          msg.Email,
		ImageURL:       imageURL,
		HeaderImageURL: DefaultHeaderImageURL,
		PasswordHash:   string(hash),
	}
	if err := w.repo.CreateUser(ctx, &row); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return User{}, ErrDuplicateAccount
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}

	w.logs.Infow("user signed up", "user_id", row.ID, "username", row.Username)

	return toUser(row), nil
}

// Authenticate returns the user when the password matches. Unknown usernames
// and wrong passwords both yield ErrInvalidCredentials after the same amount
// of hashing work.
func (w *Warbler) Authenticate(ctx context.Context, username, password string) (User, error) {
	row, err := w.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(w.dummyHash, []byte(password))
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("get user from db: %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	return w.loadUser(ctx, row)
}

// IssueToken checks the credentials and returns a signed API token for the user.
func (w *Warbler) IssueToken(ctx context.Context, msg AuthMessage) (string, error) {
	user, err := w.Authenticate(ctx, msg.Username, msg.Password)
	if err != nil {
		return "", err
	}

	token := w.tokens.Generate(tokenIssuer.TokenInfo{
		UserName:   user.Username,
		Subject:    strconv.FormatUint(uint64(user.ID), 10),
		Expiration: tokenLifetimeHours,
	})
	signed, err := w.tokens.Sign(token)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// ResolveToken returns the user an API token was issued to.
func (w *Warbler) ResolveToken(ctx context.Context, token string) (User, error) {
	claims, err := w.tokens.Validate(token)
	if err != nil {
		return User{}, fmt.Errorf("validate jwt token: %w: %w", ErrInvalidCredentials, err)
	}

	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return User{}, fmt.Errorf("token subject %q: %w", sub, ErrInvalidCredentials)
	}

	user, err := w.GetUser(ctx, uint(id))
	if errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("token user: %w", ErrInvalidCredentials)
	}
	return user, err
}

// GetUser loads a user with follow edges and counters.
func (w *Warbler) GetUser(ctx context.Context, id uint) (User, error) {
	row, err := w.getUserRow(ctx, id)
	if err != nil {
		return User{}, err
	}
	return w.loadUser(ctx, row)
}

func (w *Warbler) SearchUsers(ctx context.Context, term string) ([]User, error) {
	rows, err := w.repo.SearchUsers(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return toUsers(rows), nil
}

// UpdateProfile replaces the actor's profile fields after checking the
// actor's current password.
func (w *Warbler) UpdateProfile(ctx context.Context, actorID uint, update ProfileUpdate) (User, error) {
	if actorID == 0 {
		return User{}, ErrUnauthorized
	}
	if err := update.Validate(); err != nil {
		return User{}, &ValidationError{Err: err}
	}

	row, err := w.getUserRow(ctx, actorID)
	if err != nil {
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(update.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	if err := w.ensureAvailable(ctx, row.ID, update.Username, update.Email); err != nil {
		return User{}, err
	}

	row.Username = update.Username
	row.Email = update.Email
	row.ImageURL = orDefault(update.ImageURL, DefaultImageURL)
	row.HeaderImageURL = orDefault(update.HeaderImageURL, DefaultHeaderImageURL)
	row.Bio = update.Bio
	row.Location = update.Location

	if err := w.repo.UpdateUser(ctx, &row); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return User{}, ErrDuplicateAccount
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}

	w.logs.Infow("profile updated", "user_id", row.ID)

	return w.loadUser(ctx, row)
}

// DeleteUser removes the actor's account and everything attached to it.
func (w *Warbler) DeleteUser(ctx context.Context, actorID uint) error {
	if actorID == 0 {
		return ErrUnauthorized
	}

	if err := w.repo.DeleteUser(ctx, actorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	w.logs.Infow("user deleted", "user_id", actorID)
	return nil
}

func (w *Warbler) Follow(ctx context.Context, actorID, targetID uint) error {
	if actorID == 0 {
		return ErrUnauthorized
	}
	if actorID == targetID {
		return ErrSelfFollow
	}
	if _, err := w.getUserRow(ctx, targetID); err != nil {
		return err
	}

	if err := w.repo.AddFollow(ctx, actorID, targetID); err != nil {
		return fmt.Errorf("add follow: %w", err)
	}

	w.logs.Infow("user followed", "follower_id", actorID, "followed_id", targetID)
	return nil
}

func (w *Warbler) Unfollow(ctx context.Context, actorID, targetID uint) error {
	if actorID == 0 {
		return ErrUnauthorized
	}
	if _, err := w.getUserRow(ctx, targetID); err != nil {
		return err
	}

	if err := w.repo.RemoveFollow(ctx, actorID, targetID); err != nil {
		return fmt.Errorf("remove follow: %w", err)
	}

	w.logs.Infow("user unfollowed", "follower_id", actorID, "followed_id", targetID)
	return nil
}

// IsFollowing reports whether the edge followerID -> followedID exists.
func (w *Warbler) IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error) {
	exists, err := w.repo.FollowExists(ctx, followerID, followedID)
	if err != nil {
		return false, fmt.Errorf("follow exists: %w", err)
	}
	return exists, nil
}

// Followers lists the users following userID.
func (w *Warbler) Followers(ctx context.Context, userID uint) ([]User, error) {
	if _, err := w.getUserRow(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := w.repo.Followers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get followers: %w", err)
	}
	return toUsers(rows), nil
}

// Following lists the users userID follows.
func (w *Warbler) Following(ctx context.Context, userID uint) ([]User, error) {
	if _, err := w.getUserRow(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := w.repo.Following(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get following: %w", err)
	}
	return toUsers(rows), nil
}

func (w *Warbler) CreateMessage(ctx context.Context, actorID uint, text string) (Message, error) {
	if actorID == 0 {
		return Message{}, ErrUnauthorized
	}
	if err := (newMessage{Text: text}).Validate(); err != nil {
		return Message{}, &ValidationError{Err: err}
	}

	author, err := w.getUserRow(ctx, actorID)
	if err != nil {
		return Message{}, err
	}

	row := repository.Message{
		Text:      text,
		Timestamp: time.Now().UTC(),
		UserID:    author.ID,
	}
	if err := w.repo.CreateMessage(ctx, &row); err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}

	w.logs.Infow("message created", "message_id", row.ID, "user_id", author.ID)

	return Message{
		ID:        row.ID,
		Text:      row.Text,
		Timestamp: row.Timestamp,
		Author:    toAuthor(author),
		LikedBy:   []string{},
	}, nil
}

func (w *Warbler) GetMessage(ctx context.Context, id uint) (Message, error) {
	row, err := w.repo.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Message{}, ErrNotFound
		}
		return Message{}, fmt.Errorf("get message: %w", err)
	}

	messages, err := w.hydrate(ctx, []repository.Message{row})
	if err != nil {
		return Message{}, err
	}
	return messages[0], nil
}

// DeleteMessage removes a message on behalf of its author. Anyone else gets
// ErrForbidden and the message stays.
func (w *Warbler) DeleteMessage(ctx context.Context, actorID, messageID uint) error {
	if actorID == 0 {
		return ErrUnauthorized
	}

	row, err := w.repo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get message: %w", err)
	}

	if row.UserID != actorID {
		w.logs.Warnw("rejected message delete by non-author",
			"message_id", messageID,
			"author_id", row.UserID,
			"actor_id", actorID)
		return ErrForbidden
	}

	if err := w.repo.DeleteMessage(ctx, messageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete message: %w", err)
	}

	w.logs.Infow("message deleted", "message_id", messageID, "user_id", actorID)
	return nil
}

// ToggleLike likes the message when the actor has not liked it yet and
// unlikes it otherwise. Authors cannot like their own messages.
func (w *Warbler) ToggleLike(ctx context.Context, actorID, messageID uint) (bool, error) {
	if actorID == 0 {
		return false, ErrUnauthorized
	}

	row, err := w.repo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("get message: %w", err)
	}

	if row.UserID == actorID {
		return false, ErrForbidden
	}

	liked, err := w.repo.ToggleLike(ctx, actorID, messageID)
	if err != nil {
		return false, fmt.Errorf("toggle like: %w", err)
	}

	w.logs.Infow("like toggled", "message_id", messageID, "user_id", actorID, "liked", liked)
	return liked, nil
}

// UserMessages returns the newest messages written by userID.
func (w *Warbler) UserMessages(ctx context.Context, userID uint) ([]Message, error) {
	rows, err := w.repo.MessagesByAuthors(ctx, []uint{userID}, TimelineSize)
	if err != nil {
		return nil, fmt.Errorf("get user messages: %w", err)
	}
	return w.hydrate(ctx, rows)
}

// LikedMessages returns the messages userID liked, newest first.
func (w *Warbler) LikedMessages(ctx context.Context, userID uint) ([]Message, error) {
	if _, err := w.getUserRow(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := w.repo.LikedMessages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get liked messages: %w", err)
	}
	return w.hydrate(ctx, rows)
}

// Timeline returns the newest messages written by userID or anyone userID
// follows.
func (w *Warbler) Timeline(ctx context.Context, userID uint) ([]Message, error) {
	_, following, err := w.repo.FollowEdges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get follow edges: %w", err)
	}

	authors := append([]uint{userID}, following...)
	rows, err := w.repo.MessagesByAuthors(ctx, authors, TimelineSize)
	if err != nil {
		return nil, fmt.Errorf("get timeline: %w", err)
	}
	return w.hydrate(ctx, rows)
}

func (w *Warbler) ensureAvailable(ctx context.Context, ownerID uint, username, email string) error {
	existing, err := w.repo.GetUserByUsername(ctx, username)
	switch {
	case err == nil && existing.ID != ownerID:
		return ErrUsernameTaken
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("check username: %w", err)
	}

	existing, err = w.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != ownerID:
		return ErrEmailTaken
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("check email: %w", err)
	}

	return nil
}

func (w *Warbler) getUserRow(ctx context.Context, id uint) (repository.User, error) {
	row, err := w.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.User{}, ErrNotFound
		}
		return repository.User{}, fmt.Errorf("get user: %w", err)
	}
	return row, nil
}

func (w *Warbler) loadUser(ctx context.Context, row repository.User) (User, error) {
	user := toUser(row)

	followers, following, err := w.repo.FollowEdges(ctx, row.ID)
	if err != nil {
		return User{}, fmt.Errorf("get follow edges: %w", err)
	}
	user.FollowerIDs = followers
	user.FollowingIDs = following

	if user.MessageCount, err = w.repo.CountMessages(ctx, row.ID); err != nil {
		return User{}, fmt.Errorf("count messages: %w", err)
	}
	if user.LikeCount, err = w.repo.CountLikes(ctx, row.ID); err != nil {
		return User{}, fmt.Errorf("count likes: %w", err)
	}

	return user, nil
}

func (w *Warbler) hydrate(ctx context.Context, rows []repository.Message) ([]Message, error) {
	messages := make([]Message, 0, len(rows))
	if len(rows) == 0 {
		return messages, nil
	}

	authorIDs := make([]uint, 0, len(rows))
	messageIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		authorIDs = append(authorIDs, row.UserID)
		messageIDs = append(messageIDs, row.ID)
	}

	authors, err := w.repo.GetUsersByIDs(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("get authors: %w", err)
	}
	byID := make(map[uint]repository.User, len(authors))
	for _, a := range authors {
		byID[a.ID] = a
	}

	likers, err := w.repo.LikedBy(ctx, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("get likes: %w", err)
	}

	for _, row := range rows {
		likedBy := likers[row.ID]
		if likedBy == nil {
			likedBy = []string{}
		}
		messages = append(messages, Message{
			ID:        row.ID,
			Text:      row.Text,
			Timestamp: row.Timestamp,
			Author:    toAuthor(byID[row.UserID]),
			LikedBy:   likedBy,
		})
	}
	return messages, nil
}

func toUser(row repository.User) User {
	return User{
		ID:             row.ID,
		Username:       row.Username,
		Email:          row.Email,
		ImageURL:       row.ImageURL,
		HeaderImageURL: row.HeaderImageURL,
		Bio:            row.Bio,
		Location:       row.Location,
		CreatedAt:      row.CreatedAt,
		FollowerIDs:    []uint{},
		FollowingIDs:   []uint{},
	}
}

func toUsers(rows []repository.User) []User {
	users := make([]User, len(rows))
	for i, row := range rows {
		users[i] = toUser(row)
	}
	return users
}

func toAuthor(row repository.User) Author {
	return Author{
		ID:       row.ID,
		Username: row.Username,
		ImageURL: row.ImageURL,
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

const demoPassword = "password"

var demoUsers = []struct{ username, text string }{
	{"alice", "Hello from alice, the first warble on this instance."},
	{"bob", "bob here. Following everyone who posts about Go."},
	{"carol", "carol checking in. Coffee first, then code."},
	{"dave", "dave says hi!"},
}

// SeedDemo creates the demo accounts and one message each when no user
// exists yet. Either everything is stored or nothing is.
func (w *Warbler) SeedDemo(ctx context.Context) error {
	count, err := w.repo.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		w.logs.Infow("skipping demo seed, users already exist", "users", count)
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), w.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	rows := make([]repository.User, 0, len(demoUsers))
	texts := make([]string, 0, len(demoUsers))
	for _, demo := range demoUsers {
		if err := (newMessage{Text: demo.text}).Validate(); err != nil {
			return fmt.Errorf("demo message for %s: %w", demo.username, err)
		}
		rows = append(rows, repository.User{
			Username:       demo.username,
			Email:          demo.username + "@warbler.test",
			ImageURL:       DefaultImageURL,
			HeaderImageURL: DefaultHeaderImageURL,
			PasswordHash:   string(hash),
		})
		texts = append(texts, demo.text)
	}
	if err := w.repo.SeedUsers(ctx, rows, texts); err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}

	w.logs.Infow("demo data seeded", "users", len(rows))
	return nil
}
