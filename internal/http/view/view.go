package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"warbler/internal/core"
	"warbler/internal/session"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static
var staticFiles embed.FS

const (
	PageLanding     = "landing.html"
	PageHome        = "home.html"
	PageSignup      = "signup.html"
	PageLogin       = "login.html"
	PageUsers       = "users.html"
	PageProfile     = "profile.html"
	PageFollowing   = "following.html"
	PageFollowers   = "followers.html"
	PageLikes       = "likes.html"
	PageEditProfile = "edit_profile.html"
	PageNewMessage  = "new_message.html"
	PageMessage     = "message.html"
	PageNotFound    = "not_found.html"
	PageServerError = "server_error.html"
)

var pages = []string{
	PageLanding, PageHome, PageSignup, PageLogin, PageUsers, PageProfile,
	PageFollowing, PageFollowers, PageLikes, PageEditProfile, PageNewMessage,
	PageMessage, PageNotFound, PageServerError,
}

// Page is the data every template receives.
type Page struct {
	Title       string
	CurrentUser *core.User
	Flashes     []session.Flash

	User     *core.User
	Users    []core.User
	Messages []core.Message
	Message  *core.Message
	Query    string
	Form     map[string]string
}

// IsCurrent reports whether id belongs to the logged in user.
func (p Page) IsCurrent(id uint) bool {
	return p.CurrentUser != nil && p.CurrentUser.ID == id
}

func (p Page) LikedByMe(m core.Message) bool {
	return p.CurrentUser != nil && m.IsLikedBy(p.CurrentUser.Username)
}

func (p Page) Follows(u core.User) bool {
	return p.CurrentUser != nil && p.CurrentUser.IsFollowing(u)
}

func (p Page) Field(name string) string {
	return p.Form[name]
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"date": func(t time.Time) string {
			return t.Format("02 January 2006")
		},
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		tpl, err := template.New(page).Funcs(funcs).ParseFS(templateFiles,
			"templates/base.html",
			"templates/partials.html",
			"templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		r.pages[page] = tpl
	}

	return r, nil
}

// Render writes the page with the given status. Nothing is written when
// the template fails.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Page) error {
	tpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("execute template %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := io.Copy(w, &buf)
	return err
}

// Static serves the embedded assets. Mount it on the /static/ prefix.
func Static() http.Handler {
	return http.FileServer(http.FS(staticFiles))
}
