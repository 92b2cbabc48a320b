package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
	guestEmailCookie   = "guestEmail"
)

// describeDevice turns a User-Agent into a short "OS • Browser" label.
func describeDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)

	os := "Unknown"
	switch {
	case strings.Contains(ua, "iphone"):
		os = "iPhone"
	case strings.Contains(ua, "ipad"):
		os = "iPad"
	case strings.Contains(ua, "android"):
		os = "Android"
	case strings.Contains(ua, "windows"):
		os = "Windows"
	case strings.Contains(ua, "mac os x") || strings.Contains(ua, "macos"):
		os = "macOS"
	case strings.Contains(ua, "linux"):
		os = "Linux"
	}

	browser := "Unknown Browser"
	switch {
	case strings.Contains(ua, "edg"):
		browser = "Edge"
	case strings.Contains(ua, "chrome") || strings.Contains(ua, "crios"):
		browser = "Chrome"
	case strings.Contains(ua, "firefox") || strings.Contains(ua, "fxios"):
		browser = "Firefox"
	case strings.Contains(ua, "safari"):
		browser = "Safari"
	case strings.Contains(ua, "okhttp") || strings.Contains(ua, "dart"):
		browser = "App"
	}

	if os == "Unknown" && browser == "Unknown Browser" {
		return "Unknown Device"
	}
	return os + " • " + browser
}

func sessionInfo(c *gin.Context) models.SessionInfo {
	return models.SessionInfo{
		Device: describeDevice(c.GetHeader("User-Agent")),
		IP:     c.ClientIP(),
	}
}

// AuthHandlers serves sign-up, sign-in and account recovery
type AuthHandlers struct {
	responder
	users         *services.UserService
	admins        *services.AdminService
	secureCookies bool
}

// NewAuthHandlers creates the auth handler group
func NewAuthHandlers(users *services.UserService, admins *services.AdminService, log *logrus.Logger, debug, secureCookies bool) *AuthHandlers {
	return &AuthHandlers{
		responder:     responder{log: log, debug: debug},
		users:         users,
		admins:        admins,
		secureCookies: secureCookies,
	}
}

func (h *AuthHandlers) setCookie(c *gin.Context, name, value string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if value == "" {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", h.secureCookies, true)
}

func (h *AuthHandlers) writeSession(c *gin.Context, status int, message string, session *services.AuthSession) {
	h.setCookie(c, accessTokenCookie, session.AccessToken, session.AccessExpiresAt)
	h.setCookie(c, refreshTokenCookie, session.RefreshToken, session.RefreshExpiresAt)

	c.JSON(status, gin.H{
		"success":      true,
		"message":      message,
		"user":         session.User,
		"accessToken":  session.AccessToken,
		"refreshToken": session.RefreshToken,
		"expiresAt":    session.AccessExpiresAt,
	})
}

// Register creates an account, or upgrades an existing guest account.
func (h *AuthHandlers) Register(c *gin.Context) {
	var req models.UserRegistration
	if !h.bindJSON(c, &req) {
		return
	}
	session, err := h.users.Register(c.Request.Context(), req, sessionInfo(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.writeSession(c, http.StatusCreated, "Registration successful", session)
}

// RegisterGuest creates or reuses a passwordless guest account.
func (h *AuthHandlers) RegisterGuest(c *gin.Context) {
	var req models.GuestRegistration
	if !h.bindJSON(c, &req) {
		return
	}
	session, err := h.users.RegisterGuest(c.Request.Context(), req, sessionInfo(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.setCookie(c, guestEmailCookie, session.User.Email, session.RefreshExpiresAt)
	h.writeSession(c, http.StatusCreated, "Guest session created", session)
}

// Login signs a user in.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.UserLogin
	if !h.bindJSON(c, &req) {
		return
	}
	session, err := h.users.Login(c.Request.Context(), req, sessionInfo(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.writeSession(c, http.StatusOK, "Login successful", session)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken mints a new access token from the body or cookie refresh token.
func (h *AuthHandlers) RefreshToken(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie(refreshTokenCookie)
	}
	if req.RefreshToken == "" {
		h.fail(c, services.NewAuthError(services.CodeTokenMissing, "Refresh token required"))
		return
	}

	access, err := h.users.Refresh(c.Request.Context(), req.RefreshToken, sessionInfo(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.setCookie(c, accessTokenCookie, access.Token, access.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"accessToken": access.Token,
		"expiresAt":   access.ExpiresAt,
	})
}

// Logout revokes the current access token and, when supplied, the refresh token.
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie(refreshTokenCookie)
	}

	id := identity(c)
	if err := h.users.Logout(c.Request.Context(), id.UserID, id.Token, req.RefreshToken); err != nil {
		h.fail(c, err)
		return
	}
	h.setCookie(c, accessTokenCookie, "", time.Time{})
	h.setCookie(c, refreshTokenCookie, "", time.Time{})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPassword emails a reset link. The reply does not reveal whether
// the account exists.
func (h *AuthHandlers) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.users.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "If an account exists for that email, a reset link has been sent",
	})
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ResetPassword sets a new password from an emailed token.
func (h *AuthHandlers) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password has been reset"})
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyEmail confirms an address from an emailed token.
func (h *AuthHandlers) VerifyEmail(c *gin.Context) {
	var req tokenRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, err := h.users.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email verified", "user": user})
}

// SendVerification emails a fresh verification link to the signed-in user.
func (h *AuthHandlers) SendVerification(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if user.IsVerified {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email already verified"})
		return
	}
	if err := h.users.SendVerification(c.Request.Context(), user); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Verification email sent"})
}

// GetProfile returns the signed-in user.
func (h *AuthHandlers) GetProfile(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// AdminLogin signs an admin in with an admin-namespace token.
func (h *AuthHandlers) AdminLogin(c *gin.Context) {
	var req models.AdminLogin
	if !h.bindJSON(c, &req) {
		return
	}
	session, err := h.admins.Login(c.Request.Context(), req, sessionInfo(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.setCookie(c, accessTokenCookie, session.AccessToken, session.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"admin":       session.Admin,
		"accessToken": session.AccessToken,
		"expiresAt":   session.ExpiresAt,
	})
}

// AdminLogout revokes the admin token used for the request.
func (h *AuthHandlers) AdminLogout(c *gin.Context) {
	id := identity(c)
	if id.Kind != models.IdentityAdmin {
		h.fail(c, services.NewForbiddenError("Admin session required"))
		return
	}
	if err := h.admins.Logout(c.Request.Context(), id.UserID, id.Token); err != nil {
		h.fail(c, err)
		return
	}
	h.setCookie(c, accessTokenCookie, "", time.Time{})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}
