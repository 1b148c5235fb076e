package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"warbler/internal/db"
)

var (
	ErrNotFound  error = errors.New("record not found")
	ErrDuplicate error = errors.New("record already exists")
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

type WarblerRepository struct {
	db db.Storage
}

func NewWarblerRepository(db db.Storage) *WarblerRepository {
	return &WarblerRepository{
		db: db,
	}
}

func (r *WarblerRepository) Migrate() error {
	err := r.db.MigrateModels(&User{}, &Follow{}, &Message{}, &Like{})
	if err != nil {
		return fmt.Errorf("migrate table(s): %w", err)
	}
	return nil
}

func (r *WarblerRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *WarblerRepository) CreateUser(ctx context.Context, user *User) error {
	if err := r.db.Create(ctx, user); err != nil {
		return fmt.Errorf("create user: %w", mapErr(err))
	}
	return nil
}

func (r *WarblerRepository) UpdateUser(ctx context.Context, user *User) error {
	if err := r.db.Save(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", mapErr(err))
	}
	return nil
}

func (r *WarblerRepository) GetUserByID(ctx context.Context, id uint) (User, error) {
	return r.getUserBy(ctx, "id", id)
}

func (r *WarblerRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return r.getUserBy(ctx, "username", username)
}

func (r *WarblerRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return r.getUserBy(ctx, "email", email)
}

func (r *WarblerRepository) getUserBy(ctx context.Context, column string, value any) (User, error) {
	var user User
	err := r.db.GetOneBy(ctx, column, value, &user)
	if err != nil {
		return User{}, fmt.Errorf("get user by %s: %w", column, mapErr(err))
	}
	return user, nil
}

func (r *WarblerRepository) GetUsersByIDs(ctx context.Context, ids []uint) ([]User, error) {
	users := []User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db.GetAllBy(ctx, "id", ids, &users); err != nil {
		return nil, fmt.Errorf("get users by id: %w", err)
	}
	return users, nil
}

// SearchUsers returns users whose username contains term, ignoring case.
// Wildcard characters in term match literally.
func (r *WarblerRepository) SearchUsers(ctx context.Context, term string) ([]User, error) {
	users := []User{}
	q := db.Query{Order: "username"}
	if term != "" {
		q.Where = `LOWER(username) LIKE ? ESCAPE '\'`
		q.Args = []any{"%" + likeEscaper.Replace(strings.ToLower(term)) + "%"}
	}
	if err := r.db.Find(ctx, &users, q); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

func (r *WarblerRepository) CountUsers(ctx context.Context) (int64, error) {
	count, err := r.db.Count(ctx, &User{}, db.Query{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// SeedUsers inserts users, each with the message at the same index of texts,
// only into an empty users table. Users and messages are written in one
// transaction. The ids of the inserted users are filled in place.
func (r *WarblerRepository) SeedUsers(ctx context.Context, users []User, texts []string) error {
	if len(texts) > len(users) {
		return fmt.Errorf("seed users: %d messages for %d users", len(texts), len(users))
	}

	err := r.db.Transaction(ctx, func(tx db.Storage) error {
		if err := tx.Seed(ctx, &users); err != nil {
			return err
		}
		if len(users) == 0 || users[0].ID == 0 {
			return nil
		}

		now := time.Now().UTC()
		for i, text := range texts {
			msg := &Message{Text: text, Timestamp: now, UserID: users[i].ID}
			if err := tx.Create(ctx, msg); err != nil {
				return fmt.Errorf("seed message for %s: %w", users[i].Username, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed users: %w", mapErr(err))
	}
	return nil
}

// DeleteUser removes the user together with their messages, every like that
// touches them and follow edges in both directions.
func (r *WarblerRepository) DeleteUser(ctx context.Context, id uint) error {
	return r.db.Transaction(ctx, func(tx db.Storage) error {
		steps := []struct {
			model any
			where string
			args  []any
		}{
			{&Like{}, "user_id = ?", []any{id}},
			{&Like{}, "message_id IN (SELECT id FROM messages WHERE user_id = ?)", []any{id}},
			{&Message{}, "user_id = ?", []any{id}},
			{&Follow{}, "follower_id = ? OR followed_id = ?", []any{id, id}},
		}
		for _, step := range steps {
			if _, err := tx.DeleteWhere(ctx, step.model, step.where, step.args...); err != nil {
				return fmt.Errorf("delete user relations: %w", err)
			}
		}

		deleted, err := tx.DeleteWhere(ctx, &User{}, "id = ?", id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if deleted == 0 {
			return fmt.Errorf("delete user: %w", ErrNotFound)
		}
		return nil
	})
}

// AddFollow creates the edge; an existing edge is left as is.
func (r *WarblerRepository) AddFollow(ctx context.Context, followerID, followedID uint) error {
	edge := &Follow{FollowerID: followerID, FollowedID: followedID}
	where := "follower_id = ? AND followed_id = ?"
	if err := r.createOnce(ctx, edge, where, followerID, followedID); err != nil {
		return fmt.Errorf("add follow: %w", err)
	}
	return nil
}

func (r *WarblerRepository) RemoveFollow(ctx context.Context, followerID, followedID uint) error {
	_, err := r.db.DeleteWhere(ctx, &Follow{}, "follower_id = ? AND followed_id = ?", followerID, followedID)
	if err != nil {
		return fmt.Errorf("remove follow: %w", err)
	}
	return nil
}

func (r *WarblerRepository) FollowExists(ctx context.Context, followerID, followedID uint) (bool, error) {
	count, err := r.db.Count(ctx, &Follow{}, db.Query{
		Where: "follower_id = ? AND followed_id = ?",
		Args:  []any{followerID, followedID},
	})
	if err != nil {
		return false, fmt.Errorf("follow exists: %w", err)
	}
	return count > 0, nil
}

// FollowEdges returns the ids of the users following userID and of the users
// userID follows.
func (r *WarblerRepository) FollowEdges(ctx context.Context, userID uint) (followers []uint, following []uint, err error) {
	var edges []Follow
	err = r.db.Find(ctx, &edges, db.Query{
		Where: "follower_id = ? OR followed_id = ?",
		Args:  []any{userID, userID},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("get follow edges: %w", err)
	}

	followers = []uint{}
	following = []uint{}
	for _, e := range edges {
		if e.FollowedID == userID {
			followers = append(followers, e.FollowerID)
		}
		if e.FollowerID == userID {
			following = append(following, e.FollowedID)
		}
	}
	return followers, following, nil
}

func (r *WarblerRepository) Followers(ctx context.Context, userID uint) ([]User, error) {
	users := []User{}
	err := r.db.Find(ctx, &users, db.Query{
		Joins: "JOIN follows ON follows.follower_id = users.id",
		Where: "follows.followed_id = ?",
		Args:  []any{userID},
		Order: "users.username",
	})
	if err != nil {
		return nil, fmt.Errorf("get followers: %w", err)
	}
	return users, nil
}

func (r *WarblerRepository) Following(ctx context.Context, userID uint) ([]User, error) {
	users := []User{}
	err := r.db.Find(ctx, &users, db.Query{
		Joins: "JOIN follows ON follows.followed_id = users.id",
		Where: "follows.follower_id = ?",
		Args:  []any{userID},
		Order: "users.username",
	})
	if err != nil {
		return nil, fmt.Errorf("get following: %w", err)
	}
	return users, nil
}

func (r *WarblerRepository) CreateMessage(ctx context.Context, message *Message) error {
	if err := r.db.Create(ctx, message); err != nil {
		return fmt.Errorf("create message: %w", mapErr(err))
	}
	return nil
}

func (r *WarblerRepository) GetMessage(ctx context.Context, id uint) (Message, error) {
	var message Message
	if err := r.db.GetOneBy(ctx, "id", id, &message); err != nil {
		return Message{}, fmt.Errorf("get message: %w", mapErr(err))
	}
	return message, nil
}

// DeleteMessage removes the message and its likes in one transaction.
func (r *WarblerRepository) DeleteMessage(ctx context.Context, id uint) error {
	return r.db.Transaction(ctx, func(tx db.Storage) error {
		if _, err := tx.DeleteWhere(ctx, &Like{}, "message_id = ?", id); err != nil {
			return fmt.Errorf("delete message likes: %w", err)
		}

		deleted, err := tx.DeleteWhere(ctx, &Message{}, "id = ?", id)
		if err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
		if deleted == 0 {
			return fmt.Errorf("delete message: %w", ErrNotFound)
		}
		return nil
	})
}

// MessagesByAuthors returns the newest messages written by any of authorIDs.
func (r *WarblerRepository) MessagesByAuthors(ctx context.Context, authorIDs []uint, limit int) ([]Message, error) {
	messages := []Message{}
	if len(authorIDs) == 0 {
		return messages, nil
	}
	err := r.db.Find(ctx, &messages, db.Query{
		Where: "user_id IN ?",
		Args:  []any{authorIDs},
		Order: "timestamp DESC, id DESC",
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get messages by authors: %w", err)
	}
	return messages, nil
}

func (r *WarblerRepository) LikedMessages(ctx context.Context, userID uint) ([]Message, error) {
	messages := []Message{}
	err := r.db.Find(ctx, &messages, db.Query{
		Joins: "JOIN likes ON likes.message_id = messages.id",
		Where: "likes.user_id = ?",
		Args:  []any{userID},
		Order: "messages.timestamp DESC, messages.id DESC",
	})
	if err != nil {
		return nil, fmt.Errorf("get liked messages: %w", err)
	}
	return messages, nil
}

func (r *WarblerRepository) CountMessages(ctx context.Context, userID uint) (int64, error) {
	count, err := r.db.Count(ctx, &Message{}, db.Query{Where: "user_id = ?", Args: []any{userID}})
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

func (r *WarblerRepository) CountLikes(ctx context.Context, userID uint) (int64, error) {
	count, err := r.db.Count(ctx, &Like{}, db.Query{Where: "user_id = ?", Args: []any{userID}})
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return count, nil
}

// ToggleLike removes the like when present and adds it otherwise, reporting
// whether the message ends up liked.
func (r *WarblerRepository) ToggleLike(ctx context.Context, userID, messageID uint) (bool, error) {
	liked := false
	err := r.db.Transaction(ctx, func(tx db.Storage) error {
		removed, err := tx.DeleteWhere(ctx, &Like{}, "user_id = ? AND message_id = ?", userID, messageID)
		if err != nil {
			return fmt.Errorf("remove like: %w", err)
		}
		if removed > 0 {
			return nil
		}

		if err := tx.Create(ctx, &Like{UserID: userID, MessageID: messageID}); err != nil {
			return fmt.Errorf("add like: %w", err)
		}
		liked = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("toggle like: %w", err)
	}
	return liked, nil
}

// LikedBy maps each of messageIDs to the usernames that liked it.
func (r *WarblerRepository) LikedBy(ctx context.Context, messageIDs []uint) (map[uint][]string, error) {
	likers := make(map[uint][]string, len(messageIDs))
	if len(messageIDs) == 0 {
		return likers, nil
	}

	var rows []likeRow
	err := r.db.Find(ctx, &rows, db.Query{
		Table:  "likes",
		Select: "likes.message_id, users.username",
		Joins:  "JOIN users ON users.id = likes.user_id",
		Where:  "likes.message_id IN ?",
		Args:   []any{messageIDs},
		Order:  "users.username",
	})
	if err != nil {
		return nil, fmt.Errorf("get likes: %w", err)
	}

	for _, row := range rows {
		likers[row.MessageID] = append(likers[row.MessageID], row.Username)
	}
	return likers, nil
}

// createOnce inserts edge unless a row matching where already exists.
func (r *WarblerRepository) createOnce(ctx context.Context, edge any, where string, args ...any) error {
	return r.db.Transaction(ctx, func(tx db.Storage) error {
		count, err := tx.Count(ctx, edge, db.Query{Where: where, Args: args})
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		err = tx.Create(ctx, edge)
		if err != nil && !errors.Is(err, db.ErrDuplicateKey) {
			return err
		}
		return nil
	})
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, db.ErrDuplicateKey):
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	default:
		return err
	}
}
