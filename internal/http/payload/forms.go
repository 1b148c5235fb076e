package payload

import (
	"net/url"
	"strings"

	"warbler/internal/core"

	"github.com/jellydator/validation"
)

// FormPayload is a request body submitted by an HTML form.
type FormPayload interface {
	FromForm(values url.Values)
}

type SignupForm struct {
	Username string
	Email    string
	Password string
	ImageURL string
}

func (f *SignupForm) FromForm(values url.Values) {
	f.Username = strings.TrimSpace(values.Get("username"))
	f.Email = strings.TrimSpace(values.Get("email"))
	f.Password = values.Get("password")
	f.ImageURL = strings.TrimSpace(values.Get("image_url"))
}

// Values returns the fields to refill the form with. The password is never
// echoed back.
func (f *SignupForm) Values() map[string]string {
	return map[string]string{
		"username":  f.Username,
		"email":     f.Email,
		"image_url": f.ImageURL,
	}
}

func (f *SignupForm) ToMessage() core.SignupMessage {
	return core.SignupMessage{
		Username: f.Username,
		Email:    f.Email,
		Password: f.Password,
		ImageURL: f.ImageURL,
	}
}

// Credentials is a username and password pair, posted by the login form or
// as JSON to the token endpoint.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Credentials) FromForm(values url.Values) {
	c.Username = strings.TrimSpace(values.Get("username"))
	c.Password = values.Get("password")
}

func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
}

func (c Credentials) ToAuthMessage() core.AuthMessage {
	return core.AuthMessage{
		Username: c.Username,
		Password: c.Password,
	}
}

type MessageForm struct {
	Text string
}

func (f *MessageForm) FromForm(values url.Values) {
	f.Text = strings.TrimSpace(values.Get("text"))
}

type ProfileForm struct {
	Username       string
	Email          string
	ImageURL       string
	HeaderImageURL string
	Bio            string
	Location       string
	Password       string
}

func (f *ProfileForm) FromForm(values url.Values) {
	f.Username = strings.TrimSpace(values.Get("username"))
	f.Email = strings.TrimSpace(values.Get("email"))
	f.ImageURL = strings.TrimSpace(values.Get("image_url"))
	f.HeaderImageURL = strings.TrimSpace(values.Get("header_image_url"))
	f.Bio = strings.TrimSpace(values.Get("bio"))
	f.Location = strings.TrimSpace(values.Get("location"))
	f.Password = values.Get("password")
}

func (f *ProfileForm) Values() map[string]string {
	return map[string]string{
		"username":         f.Username,
		"email":            f.Email,
		"image_url":        f.ImageURL,
		"header_image_url": f.HeaderImageURL,
		"bio":              f.Bio,
		"location":         f.Location,
	}
}

func (f *ProfileForm) ToUpdate() core.ProfileUpdate {
	return core.ProfileUpdate{
		Username:       f.Username,
		Email:          f.Email,
		ImageURL:       f.ImageURL,
		HeaderImageURL: f.HeaderImageURL,
		Bio:            f.Bio,
		Location:       f.Location,
		Password:       f.Password,
	}
}

// ProfileValues prefills the edit form from the stored profile.
func ProfileValues(u core.User) map[string]string {
	return map[string]string{
		"username":         u.Username,
		"email":            u.Email,
		"image_url":        u.ImageURL,
		"header_image_url": u.HeaderImageURL,
		"bio":              u.Bio,
		"location":         u.Location,
	}
}
