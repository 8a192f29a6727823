package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"propertyhub/internal/common"
	"propertyhub/internal/services"
	"propertyhub/pkg/logger"
)

// Claims are the identity provider claims the service reads.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	SessionID string `json:"sid,omitempty"`
}

// Principal converts validated claims into the caller identity.
func (c *Claims) Principal() (*common.Principal, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, errors.New("subject is not a user id")
	}
	session := c.SessionID
	if session == "" {
		session = c.ID
	}
	return &common.Principal{
		UserID:      userID,
		Email:       c.Email,
		DisplayName: c.Name,
		SessionID:   session,
	}, nil
}

// AuthOptions selects how bearer tokens are verified. A JWKS URL wins over
// the shared secret.
type AuthOptions struct {
	JWTSecret string
	JWKSURL   string
}

// JWTConfig builds the echo-jwt configuration. The returned stop function
// ends the JWKS refresh goroutine, if any.
func JWTConfig(ctx context.Context, opts AuthOptions, log *zap.Logger) (echojwt.Config, func(), error) {
	cfg := echojwt.Config{
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			logger.FromContext(c.Request().Context(), log).Debug("Bearer token rejected", zap.Error(err))
			return common.SendUnauthorizedError(c)
		},
	}

	if opts.JWKSURL == "" {
		if opts.JWTSecret == "" {
			return cfg, nil, errors.New("either auth.jwt_secret or auth.jwks_url is required")
		}
		cfg.SigningKey = []byte(opts.JWTSecret)
		return cfg, func() {}, nil
	}

	jwks, err := keyfunc.Get(opts.JWKSURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Warn("JWKS refresh failed", zap.String("url", opts.JWKSURL), zap.Error(err))
		},
	})
	if err != nil {
		return cfg, nil, err
	}
	cfg.KeyFunc = jwks.Keyfunc
	return cfg, jwks.EndBackground, nil
}

// Authenticate turns the validated token into a principal, provisions the
// user on first sight and attaches a request scoped user context.
func Authenticate(users services.UserService, contexts *services.UserContextFactory, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return common.SendUnauthorizedError(c)
			}
			claims, ok := token.Claims.(*Claims)
			if !ok {
				return common.SendUnauthorizedError(c)
			}
			principal, err := claims.Principal()
			if err != nil {
				return common.SendUnauthorizedError(c)
			}

			ctx := common.WithPrincipal(c.Request().Context(), principal)
			reqLog := logger.FromContext(ctx, log).With(zap.String("user_id", principal.UserID.String()))
			ctx = logger.WithContext(ctx, reqLog)

			if err := users.Provision(ctx, principal); err != nil {
				reqLog.Error("User provisioning failed", zap.Error(err))
				return common.SendError(c, err)
			}

			ctx = services.WithUserContext(ctx, contexts.New(principal))
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
