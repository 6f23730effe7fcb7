package middleware

import (
	contextPkg "LettuceClassifier/pkg/context"
	jwtPkg "LettuceClassifier/pkg/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// SessionCookie carries the same signed token as the Authorization header for
// browser clients.
const SessionCookie = "lc_session"

type sessionMiddleware struct {
	secret string
}

func newSessionMiddleware(secret string) *sessionMiddleware {
	return &sessionMiddleware{secret: secret}
}

// NewSessionMiddleware resolves the session from a Bearer token, falling back
// to the session cookie, and rejects the request when neither verifies.
func (m *middleware) NewSessionMiddleware(ctx *fiber.Ctx) error {
	token, err := jwtPkg.TokenFromHeader(ctx)
	if err != nil {
		token = ctx.Cookies(SessionCookie)
	}

	sessionID, err := jwtPkg.VerifySession(token, m.session.secret)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"request_id": m.GetRequestID(ctx),
			"path":       ctx.Path(),
			"error":      err.Error(),
		}).Warn("Session token check failed")
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized, session token invalid or expired",
			"code":  "UNAUTHORIZED",
		})
	}

	ctx.Locals(contextPkg.SessionIDKey, sessionID)
	return ctx.Next()
}

func (m *middleware) GetSessionID(ctx *fiber.Ctx) string {
	sessionID, _ := ctx.Locals(contextPkg.SessionIDKey).(string)
	return sessionID
}
