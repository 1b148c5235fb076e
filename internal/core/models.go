package core

import (
	"regexp"
	"slices"
	"time"

	"github.com/jellydator/validation"
	"github.com/jellydator/validation/is"
)

const (
	DefaultImageURL       = "/static/images/default-pic.png"
	DefaultHeaderImageURL = "/static/images/warbler-hero.png"

	MaxMessageLength  = 140
	MaxUsernameLength = 20
	MinPasswordLength = 6
	TimelineSize      = 100
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// User is an account as seen by the application, with the follow edges that
// touch it.
type User struct {
	ID             uint
	Username       string
	Email          string
	ImageURL       string
	HeaderImageURL string
	Bio            string
	Location       string
	CreatedAt      time.Time

	FollowerIDs  []uint
	FollowingIDs []uint
	MessageCount int64
	LikeCount    int64
}

// IsFollowing reports whether u follows other.
func (u User) IsFollowing(other User) bool {
	return slices.Contains(u.FollowingIDs, other.ID)
}

// IsFollowedBy reports whether other follows u.
func (u User) IsFollowedBy(other User) bool {
	return slices.Contains(u.FollowerIDs, other.ID)
}

type Author struct {
	ID       uint
	Username string
	ImageURL string
}

type Message struct {
	ID        uint
	Text      string
	Timestamp time.Time
	Author    Author
	LikedBy   []string
}

// IsLikedBy reports whether the user with the given username liked m.
func (m Message) IsLikedBy(username string) bool {
	return slices.Contains(m.LikedBy, username)
}

type SignupMessage struct {
	Username string
	Email    string
	Password string
	ImageURL string
}

func (s SignupMessage) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Username,
			validation.Required,
			validation.Length(1, MaxUsernameLength),
			validation.Match(usernamePattern)),
		validation.Field(&s.Email, validation.Required, is.EmailFormat),
		validation.Field(&s.Password, validation.Required, validation.Length(MinPasswordLength, 0)),
		validation.Field(&s.ImageURL, is.RequestURI),
	)
}

type AuthMessage struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ProfileUpdate replaces the editable profile fields. Password must be the
// current password of the account.
type ProfileUpdate struct {
	Username       string
	Email          string
	ImageURL       string
	HeaderImageURL string
	Bio            string
	Location       string
	Password       string
}

func (p ProfileUpdate) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Username,
			validation.Required,
			validation.Length(1, MaxUsernameLength),
			validation.Match(usernamePattern)),
		validation.Field(&p.Email, validation.Required, is.EmailFormat),
		validation.Field(&p.ImageURL, is.RequestURI),
		validation.Field(&p.HeaderImageURL, is.RequestURI),
		validation.Field(&p.Location, validation.Length(0, 50)),
		validation.Field(&p.Password, validation.Required),
	)
}

type newMessage struct {
	Text string
}

func (m newMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Text, validation.Required, validation.RuneLength(1, MaxMessageLength)),
	)
}
