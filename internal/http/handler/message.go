package handler

import (
	"time"

	"warbler/internal/core"
)

const oopsErr = "Oops! Something went wrong. Please try again later."

const (
	flashUnauthorized = "Access unauthorized."
	flashInvalidLogin = "Invalid credentials."
	flashLoggedOut    = "Successfully logged out."
)

type Response struct {
	Message string      `json:"message,omitempty"` // short message for humans
	Data    interface{} `json:"data,omitempty"`    // actual payload (can be nil)
	Error   string      `json:"error,omitempty"`   // error detail (if any)
}

type AuthorResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	ImageURL string `json:"image_url"`
}

type MessageResponse struct {
	ID        uint           `json:"id"`
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
	Author    AuthorResponse `json:"author"`
	LikedBy   []string       `json:"liked_by"`
}

type UserResponse struct {
	ID             uint      `json:"id"`
	Username       string    `json:"username"`
	ImageURL       string    `json:"image_url"`
	HeaderImageURL string    `json:"header_image_url"`
	Bio            string    `json:"bio"`
	Location       string    `json:"location"`
	CreatedAt      time.Time `json:"created_at"`
	Followers      int       `json:"followers"`
	Following      int       `json:"following"`
	Messages       int64     `json:"messages"`
	Likes          int64     `json:"likes"`
}

func toMessageResponses(messages []core.Message) []MessageResponse {
	resp := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, MessageResponse{
			ID:        m.ID,
			Text:      m.Text,
			Timestamp: m.Timestamp,
			Author: AuthorResponse{
				ID:       m.Author.ID,
				Username: m.Author.Username,
				ImageURL: m.Author.ImageURL,
			},
			LikedBy: m.LikedBy,
		})
	}
	return resp
}

func toUserResponse(u core.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Username:       u.Username,
		ImageURL:       u.ImageURL,
		HeaderImageURL: u.HeaderImageURL,
		Bio:            u.Bio,
		Location:       u.Location,
		CreatedAt:      u.CreatedAt,
		Followers:      len(u.FollowerIDs),
		Following:      len(u.FollowingIDs),
		Messages:       u.MessageCount,
		Likes:          u.LikeCount,
	}
}
