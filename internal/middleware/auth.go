package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
	"storefront-backend/internal/utils"
)

const (
	identityKey = "identity"

	accessTokenCookie = "accessToken"
	guestEmailCookie  = "guestEmail"
	guestEmailHeader  = "X-Guest-Email"
)

// AuthMiddleware resolves the caller behind a request into a models.Identity
type AuthMiddleware struct {
	authService *services.AuthService
	users       services.UserStore
	admins      services.AdminStore
	log         *logrus.Logger
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authService *services.AuthService, users services.UserStore, admins services.AdminStore, log *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		users:       users,
		admins:      admins,
		log:         log,
	}
}

// Authenticate requires a signed-in user whose token is still in the
// session list.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortAuth(c, services.NewAuthError(services.CodeTokenMissing, "Authentication required"))
			return
		}

		identity, err := m.resolveUser(c, token)
		if err != nil {
			abortAuth(c, err)
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

// OptionalAuth attaches a user or admin identity when a valid token is
// present and otherwise falls back to a guest identity. An expired token
// is rejected with TOKEN_EXPIRED so the client can refresh instead of
// silently acting as a guest.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			identity, err := m.resolve(c, token)
			if err == nil {
				setIdentity(c, identity)
				c.Next()
				return
			}
			if appErr, ok := services.AsAppError(err); ok && appErr.Code == services.CodeTokenExpired {
				abortAuth(c, appErr)
				return
			}
			m.log.WithFields(logrus.Fields{
				"path":  c.FullPath(),
				"error": err.Error(),
			}).Debug("Ignoring invalid token on optional auth route")
		}

		setIdentity(c, &models.Identity{
			Kind:  models.IdentityGuest,
			Email: guestEmail(c),
		})
		c.Next()
	}
}

// AdminRequired accepts admin-namespace tokens and user tokens carrying
// the admin role.
func (m *AuthMiddleware) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortAuth(c, services.NewAuthError(services.CodeTokenMissing, "Authentication required"))
			return
		}

		identity, err := m.resolve(c, token)
		if err != nil {
			abortAuth(c, err)
			return
		}
		if !identity.IsAdmin() {
			abortAuth(c, services.NewForbiddenError("Admin access required"))
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

func (m *AuthMiddleware) resolve(c *gin.Context, token string) (*models.Identity, error) {
	if m.authService.PeekTokenType(token) == services.TokenTypeAdmin {
		return m.resolveAdmin(c, token)
	}
	return m.resolveUser(c, token)
}

func (m *AuthMiddleware) resolveUser(c *gin.Context, token string) (*models.Identity, error) {
	claims, err := m.authService.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}

	user, err := m.users.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, services.NewAuthError(services.CodeUserNotFound, "User not found")
		}
		return nil, err
	}
	if !user.HasSession(token) {
		return nil, services.NewAuthError(services.CodeTokenRevoked, "Session has been revoked")
	}

	return &models.Identity{
		Kind:   models.IdentityRegistered,
		UserID: user.ID.Hex(),
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
		Token:  token,
	}, nil
}

func (m *AuthMiddleware) resolveAdmin(c *gin.Context, token string) (*models.Identity, error) {
	claims, err := m.authService.ValidateAdminToken(token)
	if err != nil {
		return nil, err
	}

	admin, err := m.admins.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, services.NewAuthError(services.CodeUserNotFound, "Admin not found")
		}
		return nil, err
	}
	if !admin.HasSession(token) {
		return nil, services.NewAuthError(services.CodeTokenRevoked, "Session has been revoked")
	}

	return &models.Identity{
		Kind:   models.IdentityAdmin,
		UserID: admin.ID.Hex(),
		Email:  admin.Email,
		Name:   admin.Name,
		Role:   models.UserRoleAdmin,
		Token:  token,
	}, nil
}

// extractToken reads the access token cookie, then the bearer header.
// Websocket upgrades may pass it as ?token= since browsers cannot set
// headers on them.
func extractToken(c *gin.Context) string {
	if cookie, err := c.Cookie(accessTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return c.Query("token")
	}
	return ""
}

func guestEmail(c *gin.Context) string {
	email := c.GetHeader(guestEmailHeader)
	if email == "" {
		email, _ = c.Cookie(guestEmailCookie)
	}
	if email == "" && strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		email = c.Query("email")
	}
	email = utils.NormalizeEmail(email)
	if !utils.IsValidEmail(email) {
		return ""
	}
	return email
}

func abortAuth(c *gin.Context, err error) {
	appErr, ok := services.AsAppError(err)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Authentication failed",
		})
		return
	}
	c.AbortWithStatusJSON(appErr.Status, gin.H{
		"success": false,
		"error":   appErr.Message,
		"code":    appErr.Code,
	})
}

func setIdentity(c *gin.Context, identity *models.Identity) {
	c.Set(identityKey, identity)
	c.Set("userID", identity.UserID)
	c.Set("userRole", string(identity.Role))
	c.Set("userEmail", identity.Email)
}

// GetIdentity returns the identity attached by one of the auth
// middlewares, or nil when none ran.
func GetIdentity(c *gin.Context) *models.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*models.Identity)
	return identity
}
