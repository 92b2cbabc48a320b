package services_test

import (
	"context"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
	"storefront-backend/internal/utils"
)

const strongPassword = "Sup3rSecret"

var (
	resetLink  = regexp.MustCompile(`reset-password/([0-9a-f]{32})`)
	verifyLink = regexp.MustCompile(`verify-email/([0-9a-f]{32})`)
)

var device = models.SessionInfo{Device: "Chrome on Windows", IP: "10.0.0.1"}

func lastLinkToken(t *testing.T, f *fixture, re *regexp.Regexp) string {
	t.Helper()
	sent := f.mailer.Sent()
	require.NotEmpty(t, sent)
	m := re.FindStringSubmatch(sent[len(sent)-1].Body)
	require.Len(t, m, 2, "no link in %q", sent[len(sent)-1].Subject)
	return m[1]
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)

	session, err := f.userSvc.Register(ctx, models.UserRegistration{
		Name: "Ada Lovelace", Email: "Ada@Example.com", Password: strongPassword,
	}, device)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", session.User.Email)
	assert.Equal(t, models.UserRoleCustomer, session.User.Role)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)

	claims, err := f.auth.ValidateAccessToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID.Hex(), claims.UserID)

	stored, err := f.users.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, stored.HasSession(session.AccessToken))
	assert.NotEqual(t, strongPassword, stored.Password)

	t.Run("DuplicateEmail", func(t *testing.T) {
		_, err := f.userSvc.Register(ctx, models.UserRegistration{
			Name: "Someone", Email: "ada@example.com", Password: strongPassword,
		}, device)
		assertStatus(t, err, http.StatusConflict)
	})

	t.Run("WeakPassword", func(t *testing.T) {
		_, err := f.userSvc.Register(ctx, models.UserRegistration{
			Name: "Weak", Email: "weak@example.com", Password: "password",
		}, device)
		assertStatus(t, err, http.StatusBadRequest)
	})

	t.Run("Login", func(t *testing.T) {
		login, err := f.userSvc.Login(ctx, models.UserLogin{Email: "ADA@example.com", Password: strongPassword}, device)
		require.NoError(t, err)
		assert.Equal(t, session.User.ID, login.User.ID)

		_, err = f.userSvc.Login(ctx, models.UserLogin{Email: "ada@example.com", Password: "Wrong1234"}, device)
		assertStatus(t, err, http.StatusUnauthorized)

		_, err = f.userSvc.Login(ctx, models.UserLogin{Email: "nobody@example.com", Password: strongPassword}, device)
		assertStatus(t, err, http.StatusUnauthorized)
	})

	t.Run("RefreshAndLogout", func(t *testing.T) {
		access, err := f.userSvc.Refresh(ctx, session.RefreshToken, device)
		require.NoError(t, err)
		assert.NotEmpty(t, access.Token)

		require.NoError(t, f.userSvc.Logout(ctx, session.User.ID.Hex(), session.AccessToken, session.RefreshToken))
		_, err = f.userSvc.Refresh(ctx, session.RefreshToken, device)
		require.Error(t, err)
		appErr, ok := services.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, services.CodeTokenRevoked, appErr.Code)

		_, err = f.userSvc.Refresh(ctx, access.Token, device)
		assertStatus(t, err, http.StatusUnauthorized)
	})
}

func TestUserService_GuestUpgrade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)

	guest, err := f.userSvc.RegisterGuest(ctx, models.GuestRegistration{Email: "shopper@example.com"}, device)
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleGuest, guest.User.Role)
	assert.Equal(t, "shopper", guest.User.Name)

	again, err := f.userSvc.RegisterGuest(ctx, models.GuestRegistration{Email: "SHOPPER@example.com"}, device)
	require.NoError(t, err)
	assert.Equal(t, guest.User.ID, again.User.ID)

	_, err = f.userSvc.Login(ctx, models.UserLogin{Email: "shopper@example.com", Password: strongPassword}, device)
	assertStatus(t, err, http.StatusUnauthorized)

	upgraded, err := f.userSvc.Register(ctx, models.UserRegistration{
		Name: "Shopper Full", Email: "shopper@example.com", Password: strongPassword,
	}, device)
	require.NoError(t, err)
	assert.Equal(t, guest.User.ID, upgraded.User.ID)
	assert.Equal(t, models.UserRoleCustomer, upgraded.User.Role)

	_, err = f.userSvc.RegisterGuest(ctx, models.GuestRegistration{Email: "shopper@example.com"}, device)
	assertStatus(t, err, http.StatusConflict)
}

func TestUserService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	session, err := f.userSvc.Register(ctx, models.UserRegistration{
		Name: "Reset Me", Email: "reset@example.com", Password: strongPassword,
	}, device)
	require.NoError(t, err)

	require.NoError(t, f.userSvc.ForgotPassword(ctx, "unknown@example.com"))
	mailsBefore := len(f.mailer.Sent())

	require.NoError(t, f.userSvc.ForgotPassword(ctx, "reset@example.com"))
	require.Len(t, f.mailer.Sent(), mailsBefore+1)
	token := lastLinkToken(t, f, resetLink)

	stored, err := f.users.FindByEmail(ctx, "reset@example.com")
	require.NoError(t, err)
	assert.Equal(t, utils.HashToken(token), stored.ResetPasswordToken)

	assertStatus(t, f.userSvc.ResetPassword(ctx, token, "short"), http.StatusBadRequest)
	assertStatus(t, f.userSvc.ResetPassword(ctx, "0123456789abcdef0123456789abcdef", "N3wPassword"), http.StatusBadRequest)
	require.NoError(t, f.userSvc.ResetPassword(ctx, token, "N3wPassword"))

	stored, err = f.users.FindByEmail(ctx, "reset@example.com")
	require.NoError(t, err)
	assert.Empty(t, stored.ResetPasswordToken)
	assert.False(t, stored.HasSession(session.AccessToken), "reset ends every session")

	_, err = f.userSvc.Login(ctx, models.UserLogin{Email: "reset@example.com", Password: "N3wPassword"}, device)
	require.NoError(t, err)
	assertStatus(t, f.userSvc.ResetPassword(ctx, token, "An0therPass"), http.StatusBadRequest)

	t.Run("MailerFailure", func(t *testing.T) {
		f.mailer.SetFail(true)
		defer f.mailer.SetFail(false)
		assertStatus(t, f.userSvc.ForgotPassword(ctx, "reset@example.com"), http.StatusInternalServerError)
	})
}

func TestUserService_VerifyEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	_, err := f.userSvc.Register(ctx, models.UserRegistration{
		Name: "Verify Me", Email: "verify@example.com", Password: strongPassword,
	}, device)
	require.NoError(t, err)

	token := lastLinkToken(t, f, verifyLink)
	user, err := f.userSvc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, user.IsVerified)

	_, err = f.userSvc.VerifyEmail(ctx, token)
	assertStatus(t, err, http.StatusBadRequest)

	mails := len(f.mailer.Sent())
	require.NoError(t, f.userSvc.SendVerification(ctx, user))
	assert.Len(t, f.mailer.Sent(), mails, "verified users get no new link")
}

func TestUserService_AccountSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	user, _ := f.customer("settings@example.com", "")
	id := user.ID.Hex()
	productID := primitive.NewObjectID().Hex()

	t.Run("Wishlist", func(t *testing.T) {
		require.NoError(t, f.userSvc.AddToWishlist(ctx, id, productID))
		require.NoError(t, f.userSvc.AddToWishlist(ctx, id, productID))
		items, err := f.userSvc.GetWishlist(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{productID}, items)

		assertStatus(t, f.userSvc.AddToWishlist(ctx, id, "bad"), http.StatusBadRequest)

		require.NoError(t, f.userSvc.RemoveFromWishlist(ctx, id, productID))
		items, err = f.userSvc.GetWishlist(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("PushToken", func(t *testing.T) {
		assertStatus(t, f.userSvc.RegisterPushToken(ctx, id, "  ", "ios"), http.StatusBadRequest)
		require.NoError(t, f.userSvc.RegisterPushToken(ctx, id, "device-token", "ios"))
		stored, err := f.users.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "device-token", stored.PushToken)
		assert.True(t, stored.WantsPush())
	})

	t.Run("Preferences", func(t *testing.T) {
		off, on := false, true
		prefs, err := f.userSvc.UpdatePreferences(ctx, id, services.PreferencesUpdate{Push: &off, Promotions: &on})
		require.NoError(t, err)
		assert.False(t, prefs.Push)
		assert.True(t, prefs.Promotions)
		assert.True(t, prefs.Email, "untouched toggles keep their value")

		stored, err := f.users.FindByID(ctx, id)
		require.NoError(t, err)
		assert.False(t, stored.WantsPush())
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, err := f.userSvc.GetWishlist(ctx, primitive.NewObjectID().Hex())
		assertStatus(t, err, http.StatusNotFound)
	})
}

func TestAdminService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	admins := services.NewAdminService(f.admins, f.auth, utils.NewTestLogger())

	created, err := admins.Seed(ctx, "", "Boss@Shop.test", strongPassword)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = admins.Seed(ctx, "", "boss@shop.test", strongPassword)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = admins.Seed(ctx, "", "weak@shop.test", "weak")
	require.Error(t, err)

	session, err := admins.Login(ctx, models.AdminLogin{Email: "boss@shop.test", Password: strongPassword}, device)
	require.NoError(t, err)
	assert.Equal(t, "Administrator", session.Admin.Name)
	assert.Equal(t, services.TokenTypeAdmin, f.auth.PeekTokenType(session.AccessToken))

	claims, err := f.auth.ValidateAdminToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.Admin.ID.Hex(), claims.UserID)

	_, err = f.auth.ValidateAccessToken(session.AccessToken)
	assertStatus(t, err, http.StatusUnauthorized)

	_, err = admins.Login(ctx, models.AdminLogin{Email: "boss@shop.test", Password: "Wrong1234"}, device)
	assertStatus(t, err, http.StatusUnauthorized)

	require.NoError(t, admins.Logout(ctx, session.Admin.ID.Hex(), session.AccessToken))
	stored, err := admins.GetByID(ctx, session.Admin.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, stored.Tokens)
}

func TestAuthService_Expiry(t *testing.T) {
	expired := services.NewAuthService("services-test-access", "services-test-refresh", -time.Minute, -time.Minute)
	issued, err := expired.GenerateAccessToken(primitive.NewObjectID().Hex(), "a@b.com", "customer")
	require.NoError(t, err)

	_, err = expired.ValidateAccessToken(issued.Token)
	require.Error(t, err)
	appErr, ok := services.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, services.CodeTokenExpired, appErr.Code)
	assert.Equal(t, services.TokenTypeAccess, expired.PeekTokenType(issued.Token))

	_, err = expired.ValidateAccessToken("")
	appErr, ok = services.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, services.CodeTokenMissing, appErr.Code)
}
