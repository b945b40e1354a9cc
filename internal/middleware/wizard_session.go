package middleware

import (
	"net/http"

	"github.com/Alan934/taller-charli-sub000/internal/services"
	"github.com/gin-gonic/gin"
)

const (
	// WizardSessionHeader selects the wizard session; it wins over the cookie
	WizardSessionHeader = "X-Wizard-Session"
	// WizardSessionCookie is issued when the client sent no session id
	WizardSessionCookie = "wizard_session"
	// WizardSessionKey is the key used to store the session in Gin context
	WizardSessionKey = "wizard_session"
)

// WizardSession resolves the caller's wizard session and tells it who the current user
// is. Must be used after AuthMiddleware.
func WizardSession(manager *services.SessionManager, secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			abortUnauthorized(c, "unauthorized", "User context not found", "MISSING_USER_CONTEXT")
			return
		}

		id := c.GetHeader(WizardSessionHeader)
		if id == "" {
			id, _ = c.Cookie(WizardSessionCookie)
		}

		session, created := manager.GetOrCreate(id)
		if created || id != session.ID() {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(WizardSessionCookie, session.ID(), 0, "/", "", secureCookie, true)
		}
		c.Header(WizardSessionHeader, session.ID())

		session.Authenticate(c.Request.Context(), services.Identity{
			UserID:      userCtx.UserID,
			Email:       userCtx.Email,
			Role:        userCtx.Role,
			AccessToken: userCtx.AccessToken,
		})

		c.Set(WizardSessionKey, session)
		c.Next()
	}
}

// GetWizardSession retrieves the wizard session from Gin context
func GetWizardSession(c *gin.Context) (*services.WizardSession, bool) {
	value, exists := c.Get(WizardSessionKey)
	if !exists {
		return nil, false
	}
	session, ok := value.(*services.WizardSession)
	return session, ok
}
