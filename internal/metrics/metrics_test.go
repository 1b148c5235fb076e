package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"

	"warbler/internal/metrics"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.New()
	})

	It("should allow more than one instance per process", func() {
		Expect(func() { metrics.New() }).NotTo(Panic())
	})

	It("should count likes by state", func() {
		m.Like(true)
		m.Like(true)
		m.Like(false)

		Expect(testutil.ToFloat64(m.LikesToggled.WithLabelValues("liked"))).To(Equal(2.0))
		Expect(testutil.ToFloat64(m.LikesToggled.WithLabelValues("unliked"))).To(Equal(1.0))
	})

	It("should expose the counters", func() {
		m.MessagesSent.Inc()

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))

		body, err := io.ReadAll(rec.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("warbler_messages_total 1"))
	})
})
