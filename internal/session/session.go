package session

import (
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	Name       = "warbler"
	userKey    = "curr_user"
	maxAgeSecs = 3600 * 16
)

// Flash categories understood by the page templates.
const (
	CategoryInfo    = "info"
	CategorySuccess = "success"
	CategoryDanger  = "danger"
)

var ErrNoSession error = errors.New("no session")

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Category string
	Text     string
}

func init() {
	gob.Register(Flash{})
}

// Manager keeps the current user id and pending flashes in a signed cookie.
type Manager struct {
	store sessions.Store
}

func NewManager(secret []byte, secure bool) *Manager {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAgeSecs,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{store: store}
}

// Login stores the user id in the session.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, userID uint) error {
	sess, err := m.get(r)
	if err != nil {
		return err
	}

	sess.Values[userKey] = userID
	return m.save(w, r, sess)
}

// Logout removes the user id and keeps the session for flashes.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, err := m.get(r)
	if err != nil {
		return err
	}

	delete(sess.Values, userKey)
	return m.save(w, r, sess)
}

// CurrentUserID returns the logged in user id, or 0 for anonymous requests.
func (m *Manager) CurrentUserID(r *http.Request) uint {
	sess, err := m.get(r)
	if err != nil {
		return 0
	}

	id, _ := sess.Values[userKey].(uint)
	return id
}

func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, category, text string) error {
	sess, err := m.get(r)
	if err != nil {
		return err
	}

	sess.AddFlash(Flash{Category: category, Text: text})
	return m.save(w, r, sess)
}

// Flashes returns and clears the pending flashes.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	sess, err := m.get(r)
	if err != nil {
		return nil
	}

	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}

	flashes := make([]Flash, 0, len(raw))
	for _, f := range raw {
		if flash, ok := f.(Flash); ok {
			flashes = append(flashes, flash)
		}
	}

	_ = m.save(w, r, sess)
	return flashes
}

// get returns a fresh session when the cookie cannot be decoded, so a stale
// or forged cookie behaves like no cookie at all.
func (m *Manager) get(r *http.Request) (*sessions.Session, error) {
	sess, err := m.store.Get(r, Name)
	if sess == nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSession, err)
	}
	return sess, nil
}

func (m *Manager) save(w http.ResponseWriter, r *http.Request, sess *sessions.Session) error {
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
