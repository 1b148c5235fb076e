package core_test

import (
	"context"
	"errors"
	"strings"

	"warbler/internal/core"
	"warbler/internal/core/fake"
	"warbler/internal/repository"
	tokenIssuer "warbler/pkg/jwt"

	"github.com/golang-jwt/jwt"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var _ = Describe("Warbler", func() {
	var (
		repo    *repository.WarblerRepository
		fakeJWT *fake.TokenIssuer
		ctx     context.Context
		warbler *core.Warbler

		fakeErr error
	)

	signup := func(username string) core.User {
		user, err := warbler.Signup(ctx, core.SignupMessage{
			Username: username,
			Email:    username + "@test.com",
			Password: "password",
		})
		Expect(err).NotTo(HaveOccurred())
		return user
	}

	reload := func(id uint) core.User {
		user, err := warbler.GetUser(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		return user
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = newTestRepository()
		fakeJWT = new(fake.TokenIssuer)
		warbler = core.NewWarbler(zap.NewNop().Sugar(), repo, fakeJWT, bcrypt.MinCost)

		fakeErr = errors.New("fake error")
	})

	Describe("Signup", func() {
		var (
			msg  core.SignupMessage
			user core.User
			err  error
		)

		BeforeEach(func() {
			msg = core.SignupMessage{
				Username: "testuser",
				Email:    "test@test.com",
				Password: "HASHED_PASSWORD",
			}
		})

		JustBeforeEach(func() {
			user, err = warbler.Signup(ctx, msg)
		})

		When("the input is valid", func() {
			It("should store the user with a bcrypt hash", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(user.ID).NotTo(BeZero())
				Expect(user.Username).To(Equal("testuser"))
				Expect(user.ImageURL).To(Equal(core.DefaultImageURL))

				stored, err := repo.GetUserByID(ctx, user.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(stored.PasswordHash).NotTo(Equal(msg.Password))
				Expect(strings.HasPrefix(stored.PasswordHash, "$2")).To(BeTrue())
			})

			It("should start without followers or following", func() {
				loaded := reload(user.ID)
				Expect(loaded.FollowerIDs).To(BeEmpty())
				Expect(loaded.FollowingIDs).To(BeEmpty())
			})
		})

		When("an image url is given", func() {
			BeforeEach(func() {
				msg.ImageURL = "https://example.com/me.png"
			})

			It("should keep it", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(user.ImageURL).To(Equal("https://example.com/me.png"))
			})
		})

		When("the email is empty", func() {
			BeforeEach(func() {
				msg.Email = ""
			})

			It("should fail validation and persist nothing", func() {
				Expect(err).To(MatchError(core.ErrValidation))

				var verr *core.ValidationError
				Expect(errors.As(err, &verr)).To(BeTrue())

				count, err := repo.CountUsers(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(BeZero())
			})
		})

		When("the password is too short", func() {
			BeforeEach(func() {
				msg.Password = "12345"
			})

			It("should fail validation", func() {
				Expect(err).To(MatchError(core.ErrValidation))
			})
		})

		When("the username is too long", func() {
			BeforeEach(func() {
				msg.Username = strings.Repeat("a", core.MaxUsernameLength+1)
			})

			It("should fail validation", func() {
				Expect(err).To(MatchError(core.ErrValidation))
			})
		})

		When("the username is taken", func() {
			BeforeEach(func() {
				signup("testuser")
			})

			It("should return ErrUsernameTaken", func() {
				Expect(err).To(MatchError(core.ErrUsernameTaken))
				Expect(err).To(MatchError(core.ErrValidation))
			})
		})

		When("the email is taken", func() {
			BeforeEach(func() {
				_, err := warbler.Signup(ctx, core.SignupMessage{
					Username: "other",
					Email:    "test@test.com",
					Password: "password",
				})
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return ErrEmailTaken", func() {
				Expect(err).To(MatchError(core.ErrEmailTaken))

				count, err := repo.CountUsers(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(Equal(int64(1)))
			})
		})
	})

	Describe("Authenticate", func() {
		var testUser core.User

		BeforeEach(func() {
			testUser = signup("testuser")
		})

		It("should return the user for the right password", func() {
			user, err := warbler.Authenticate(ctx, "testuser", "password")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.ID).To(Equal(testUser.ID))
		})

		It("should return the same error for a wrong password and an unknown user", func() {
			_, wrongPassword := warbler.Authenticate(ctx, "testuser", "badpassword")
			_, unknownUser := warbler.Authenticate(ctx, "badusername", "password")

			Expect(wrongPassword).To(MatchError(core.ErrInvalidCredentials))
			Expect(unknownUser).To(MatchError(core.ErrInvalidCredentials))
			Expect(wrongPassword.Error()).To(Equal(unknownUser.Error()))
		})
	})

	Describe("IssueToken", func() {
		var (
			token    string
			err      error
			authMsg  core.AuthMessage
			testUser core.User
			genToken *jwt.Token
		)

		BeforeEach(func() {
			testUser = signup("testuser")
			authMsg = core.AuthMessage{Username: "testuser", Password: "password"}
			genToken = jwt.New(jwt.SigningMethodHS512)

			fakeJWT.GenerateReturns(genToken)
			fakeJWT.SignReturns("signed.token", nil)
		})

		JustBeforeEach(func() {
			token, err = warbler.IssueToken(ctx, authMsg)
		})

		It("should return a signed token for the user id", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(Equal("signed.token"))

			Expect(fakeJWT.GenerateCallCount()).To(Equal(1))
			Expect(fakeJWT.GenerateArgsForCall(0)).To(Equal(tokenIssuer.TokenInfo{
				UserName:   "testuser",
				Subject:    "1",
				Expiration: 24,
			}))
			Expect(testUser.ID).To(Equal(uint(1)))

			Expect(fakeJWT.SignCallCount()).To(Equal(1))
			Expect(fakeJWT.SignArgsForCall(0)).To(Equal(genToken))
		})

		When("the password is wrong", func() {
			BeforeEach(func() {
				authMsg.Password = "wrong"
			})

			It("should not issue a token", func() {
				Expect(err).To(MatchError(core.ErrInvalidCredentials))
				Expect(fakeJWT.GenerateCallCount()).To(BeZero())
			})
		})

		When("signing fails", func() {
			BeforeEach(func() {
				fakeJWT.SignReturns("", fakeErr)
			})

			It("should return the signing error", func() {
				Expect(err).To(MatchError(fakeErr))
				Expect(token).To(BeEmpty())
			})
		})
	})

	Describe("ResolveToken", func() {
		var testUser core.User

		BeforeEach(func() {
			testUser = signup("testuser")
		})

		It("should load the user named by the subject", func() {
			fakeJWT.ValidateReturns(jwt.MapClaims{"sub": "1"}, nil)

			user, err := warbler.ResolveToken(ctx, "some.token")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.ID).To(Equal(testUser.ID))
			Expect(fakeJWT.ValidateArgsForCall(0)).To(Equal("some.token"))
		})

		It("should reject an invalid token", func() {
			fakeJWT.ValidateReturns(nil, tokenIssuer.ErrTokenNotValid)

			_, err := warbler.ResolveToken(ctx, "bad")
			Expect(err).To(MatchError(core.ErrInvalidCredentials))
			Expect(err).To(MatchError(tokenIssuer.ErrTokenNotValid))
		})

		It("should reject a token for a deleted user", func() {
			fakeJWT.ValidateReturns(jwt.MapClaims{"sub": "42"}, nil)

			_, err := warbler.ResolveToken(ctx, "some.token")
			Expect(err).To(MatchError(core.ErrInvalidCredentials))
		})
	})

	Describe("follow graph", func() {
		var (
			u1 core.User
			u2 core.User
		)

		BeforeEach(func() {
			u1 = signup("testuser")
			u2 = signup("testuser2")
		})

		It("should keep the predicates symmetric", func() {
			Expect(warbler.Follow(ctx, u1.ID, u2.ID)).To(Succeed())

			a, b := reload(u1.ID), reload(u2.ID)
			Expect(a.IsFollowing(b)).To(BeTrue())
			Expect(b.IsFollowedBy(a)).To(BeTrue())
			Expect(b.IsFollowing(a)).To(BeFalse())
			Expect(a.IsFollowedBy(b)).To(BeFalse())

			for _, x := range []core.User{a, b} {
				for _, y := range []core.User{a, b} {
					Expect(x.IsFollowing(y)).To(Equal(y.IsFollowedBy(x)))
				}
			}
		})

		It("should not duplicate an edge when following twice", func() {
			Expect(warbler.Follow(ctx, u1.ID, u2.ID)).To(Succeed())
			Expect(warbler.Follow(ctx, u1.ID, u2.ID)).To(Succeed())

			Expect(reload(u2.ID).FollowerIDs).To(Equal([]uint{u1.ID}))

			followers, err := warbler.Followers(ctx, u2.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(followers).To(HaveLen(1))

			following, err := warbler.Following(ctx, u1.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(following).To(HaveLen(1))
			Expect(following[0].Username).To(Equal("testuser2"))
		})

		It("should remove the edge on unfollow", func() {
			Expect(warbler.Follow(ctx, u1.ID, u2.ID)).To(Succeed())
			Expect(warbler.Unfollow(ctx, u1.ID, u2.ID)).To(Succeed())

			following, err := warbler.IsFollowing(ctx, u1.ID, u2.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(following).To(BeFalse())
		})

		It("should reject following oneself", func() {
			err := warbler.Follow(ctx, u1.ID, u1.ID)
			Expect(err).To(MatchError(core.ErrSelfFollow))
			Expect(reload(u1.ID).FollowingIDs).To(BeEmpty())
		})

		It("should reject an anonymous actor", func() {
			Expect(warbler.Follow(ctx, 0, u2.ID)).To(MatchError(core.ErrUnauthorized))
		})

		It("should report unknown users", func() {
			Expect(warbler.Follow(ctx, u1.ID, 999)).To(MatchError(core.ErrNotFound))

			_, err := warbler.Followers(ctx, 999)
			Expect(err).To(MatchError(core.ErrNotFound))
		})
	})

	Describe("messages", func() {
		var (
			u1 core.User
			u2 core.User
		)

		BeforeEach(func() {
			u1 = signup("testuser")
			u2 = signup("testuser2")
		})

		It("should create a message for the author", func() {
			msg, err := warbler.CreateMessage(ctx, u1.ID, "Hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.Text).To(Equal("Hello"))
			Expect(msg.Author.Username).To(Equal("testuser"))

			loaded, err := warbler.GetMessage(ctx, msg.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Text).To(Equal("Hello"))
			Expect(loaded.LikedBy).To(BeEmpty())
		})

		It("should reject empty and overlong texts", func() {
			_, err := warbler.CreateMessage(ctx, u1.ID, "")
			Expect(err).To(MatchError(core.ErrValidation))

			_, err = warbler.CreateMessage(ctx, u1.ID, strings.Repeat("x", core.MaxMessageLength+1))
			Expect(err).To(MatchError(core.ErrValidation))

			_, err = warbler.CreateMessage(ctx, u1.ID, strings.Repeat("é", core.MaxMessageLength))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should reject an anonymous author", func() {
			_, err := warbler.CreateMessage(ctx, 0, "Hello")
			Expect(err).To(MatchError(core.ErrUnauthorized))

			count, err := repo.CountMessages(ctx, u1.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})

		It("should only let the author delete a message", func() {
			msg, err := warbler.CreateMessage(ctx, u1.ID, "message")
			Expect(err).NotTo(HaveOccurred())

			Expect(warbler.DeleteMessage(ctx, u2.ID, msg.ID)).To(MatchError(core.ErrForbidden))
			_, err = warbler.GetMessage(ctx, msg.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(warbler.DeleteMessage(ctx, u1.ID, msg.ID)).To(Succeed())
			_, err = warbler.GetMessage(ctx, msg.ID)
			Expect(err).To(MatchError(core.ErrNotFound))
		})

		It("should report a missing message", func() {
			Expect(warbler.DeleteMessage(ctx, u1.ID, 999)).To(MatchError(core.ErrNotFound))
		})

		It("should build a timeline from the user and the users they follow", func() {
			own, err := warbler.CreateMessage(ctx, u1.ID, "own")
			Expect(err).NotTo(HaveOccurred())
			other, err := warbler.CreateMessage(ctx, u2.ID, "other")
			Expect(err).NotTo(HaveOccurred())

			timeline, err := warbler.Timeline(ctx, u1.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(timeline).To(HaveLen(1))
			Expect(timeline[0].ID).To(Equal(own.ID))

			Expect(warbler.Follow(ctx, u1.ID, u2.ID)).To(Succeed())

			timeline, err = warbler.Timeline(ctx, u1.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(timeline).To(HaveLen(2))
			Expect(timeline[0].ID).To(Equal(other.ID))
			Expect(timeline[0].Author.Username).To(Equal("testuser2"))

			mine, err := warbler.UserMessages(ctx, u2.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(mine).To(HaveLen(1))
		})
	})

	Describe("likes", func() {
		var (
			u1  core.User
			u2  core.User
			m1  core.Message
			m2  core.Message
			err error
		)

		BeforeEach(func() {
			u1 = signup("testuser")
			u2 = signup("testuser2")

			m1, err = warbler.CreateMessage(ctx, u1.ID, "message")
			Expect(err).NotTo(HaveOccurred())
			m2, err = warbler.CreateMessage(ctx, u1.ID, "message2")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should mark only the liked message", func() {
			liked, err := warbler.ToggleLike(ctx, u2.ID, m1.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(liked).To(BeTrue())

			first, err := warbler.GetMessage(ctx, m1.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.IsLikedBy("testuser2")).To(BeTrue())

			second, err := warbler.GetMessage(ctx, m2.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.IsLikedBy("testuser2")).To(BeFalse())

			likes, err := warbler.LikedMessages(ctx, u2.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(likes).To(HaveLen(1))
			Expect(reload(u2.ID).LikeCount).To(Equal(int64(1)))
		})

		It("should restore the state when toggled twice", func() {
			_, err := warbler.ToggleLike(ctx, u2.ID, m1.ID)
			Expect(err).NotTo(HaveOccurred())
			liked, err := warbler.ToggleLike(ctx, u2.ID, m1.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(liked).To(BeFalse())

			msg, err := warbler.GetMessage(ctx, m1.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.IsLikedBy("testuser2")).To(BeFalse())
		})

		It("should not let authors like their own messages", func() {
			_, err := warbler.ToggleLike(ctx, u1.ID, m1.ID)
			Expect(err).To(MatchError(core.ErrForbidden))
		})

		It("should drop likes when the message is deleted", func() {
			_, err := warbler.ToggleLike(ctx, u2.ID, m1.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(warbler.DeleteMessage(ctx, u1.ID, m1.ID)).To(Succeed())
			Expect(reload(u2.ID).LikeCount).To(BeZero())
		})
	})

	Describe("UpdateProfile", func() {
		var (
			testUser core.User
			update   core.ProfileUpdate
		)

		BeforeEach(func() {
			testUser = signup("testuser")
			signup("testuser2")
			update = core.ProfileUpdate{
				Username: "renamed",
				Email:    "renamed@test.com",
				Bio:      "bio",
				Location: "Sofia",
				Password: "password",
			}
		})

		It("should update the profile", func() {
			user, err := warbler.UpdateProfile(ctx, testUser.ID, update)
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Username).To(Equal("renamed"))
			Expect(user.Bio).To(Equal("bio"))
			Expect(user.ImageURL).To(Equal(core.DefaultImageURL))

			_, err = warbler.Authenticate(ctx, "renamed", "password")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should require the current password", func() {
			update.Password = "wrong"
			_, err := warbler.UpdateProfile(ctx, testUser.ID, update)
			Expect(err).To(MatchError(core.ErrInvalidCredentials))
			Expect(reload(testUser.ID).Username).To(Equal("testuser"))
		})

		It("should reject another user's username", func() {
			update.Username = "testuser2"
			_, err := warbler.UpdateProfile(ctx, testUser.ID, update)
			Expect(err).To(MatchError(core.ErrUsernameTaken))
		})
	})

	Describe("DeleteUser", func() {
		It("should remove the account", func() {
			u := signup("testuser")
			Expect(warbler.DeleteUser(ctx, u.ID)).To(Succeed())

			_, err := warbler.GetUser(ctx, u.ID)
			Expect(err).To(MatchError(core.ErrNotFound))
			Expect(warbler.DeleteUser(ctx, u.ID)).To(MatchError(core.ErrNotFound))
		})
	})

	Describe("SeedDemo", func() {
		It("should seed an empty database once", func() {
			Expect(warbler.SeedDemo(ctx)).To(Succeed())
			Expect(warbler.SeedDemo(ctx)).To(Succeed())

			users, err := warbler.SearchUsers(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(4))
			Expect(users[0].Username).To(Equal("alice"))

			for _, user := range users {
				messages, err := warbler.UserMessages(ctx, user.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(messages).To(HaveLen(1))
			}

			_, err = warbler.Authenticate(ctx, "bob", "password")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
