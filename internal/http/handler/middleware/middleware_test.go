package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	"warbler/internal/core"
	"warbler/internal/http/handler/middleware"
	"warbler/internal/metrics"

	"github.com/gorilla/mux"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

type stubSessions uint

func (s stubSessions) CurrentUserID(*http.Request) uint { return uint(s) }

type stubUsers map[uint]core.User

func (s stubUsers) GetUser(_ context.Context, id uint) (core.User, error) {
	user, ok := s[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return user, nil
}

var _ = Describe("Middleware", func() {
	var logger *zap.SugaredLogger

	BeforeEach(func() {
		logger = zap.NewNop().Sugar()
	})

	Describe("RequestID", func() {
		var (
			seen string
			next http.Handler
		)

		BeforeEach(func() {
			seen = ""
			next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = middleware.RequestIDFrom(r.Context())
			})
		})

		It("should generate an id when none is sent", func() {
			rec := httptest.NewRecorder()
			middleware.NewRequestIDMiddleware().RequestID(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(seen).NotTo(BeEmpty())
			Expect(rec.Header().Get(middleware.RequestIDHeader)).To(Equal(seen))
		})

		It("should keep the client id", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(middleware.RequestIDHeader, "abc")
			middleware.NewRequestIDMiddleware().RequestID(next).ServeHTTP(httptest.NewRecorder(), req)

			Expect(seen).To(Equal("abc"))
		})
	})

	Describe("LoadUser", func() {
		var (
			users   stubUsers
			found   bool
			current core.User
			next    http.Handler
		)

		BeforeEach(func() {
			users = stubUsers{1: {ID: 1, Username: "testuser"}}
			found = false
			next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				current, found = middleware.CurrentUser(r.Context())
			})
		})

		serve := func(sessionUser uint) {
			handler := middleware.NewCurrentUserMiddleware(logger, stubSessions(sessionUser), users).LoadUser(next)
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		}

		It("should leave anonymous requests anonymous", func() {
			serve(0)
			Expect(found).To(BeFalse())
		})

		It("should put the session user in the context", func() {
			serve(1)
			Expect(found).To(BeTrue())
			Expect(current.Username).To(Equal("testuser"))
		})

		It("should treat a deleted user as anonymous", func() {
			serve(2)
			Expect(found).To(BeFalse())
		})
	})

	Describe("Logging", func() {
		It("should count requests by route template", func() {
			m := metrics.New()
			router := mux.NewRouter()
			router.Use(middleware.NewLoggingMiddleware(logger, m).Logging)
			router.HandleFunc("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			})

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/5", nil))

			Expect(testutil.ToFloat64(m.Requests.WithLabelValues("/users/{id}", "418"))).To(Equal(1.0))
		})
	})
})
