package jwt_test

import (
	"strings"
	"time"

	tokenIssuer "warbler/pkg/jwt"

	"github.com/golang-jwt/jwt"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("JWTService", func() {
	var (
		service *tokenIssuer.JWTService
		info    tokenIssuer.TokenInfo
	)

	BeforeEach(func() {
		service = tokenIssuer.NewJWTService([]byte("test-secret"))
		info = tokenIssuer.TokenInfo{
			UserName:   "testuser",
			Subject:    "7",
			Expiration: 24,
		}
	})

	It("should round trip the claims", func() {
		signed, err := service.Sign(service.Generate(info))
		Expect(err).NotTo(HaveOccurred())

		claims, err := service.Validate(signed)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims["sub"]).To(Equal("7"))
		Expect(claims["username"]).To(Equal("testuser"))
	})

	It("should reject a token signed with another secret", func() {
		other := tokenIssuer.NewJWTService([]byte("other-secret"))
		signed, err := other.Sign(other.Generate(info))
		Expect(err).NotTo(HaveOccurred())

		_, err = service.Validate(signed)
		Expect(err).To(MatchError(tokenIssuer.ErrTokenNotValid))
	})

	It("should reject a tampered token", func() {
		signed, err := service.Sign(service.Generate(info))
		Expect(err).NotTo(HaveOccurred())

		parts := strings.Split(signed, ".")
		parts[1] = parts[1] + "x"
		_, err = service.Validate(strings.Join(parts, "."))
		Expect(err).To(MatchError(tokenIssuer.ErrTokenNotValid))
	})

	It("should reject a token with an unexpected signing method", func() {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "7"})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		Expect(err).NotTo(HaveOccurred())

		_, err = service.Validate(signed)
		Expect(err).To(MatchError(tokenIssuer.ErrTokenNotValid))
	})

	When("the token has expired", func() {
		BeforeEach(func() {
			tokenIssuer.TimeNow = func() time.Time { return time.Now().Add(-48 * time.Hour) }
			DeferCleanup(func() { tokenIssuer.TimeNow = time.Now })
		})

		It("should return ErrTokenExpired", func() {
			signed, err := service.Sign(service.Generate(info))
			Expect(err).NotTo(HaveOccurred())

			tokenIssuer.TimeNow = time.Now
			_, err = service.Validate(signed)
			Expect(err).To(MatchError(tokenIssuer.ErrTokenExpired))
		})
	})
})
