package middleware

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"propertyhub/internal/common"
	"propertyhub/internal/services"
	"propertyhub/pkg/logger"
)

type PolicyMiddleware struct {
	authz services.AuthorizationService
	log   *zap.Logger
}

func NewPolicyMiddleware(authz services.AuthorizationService, log *zap.Logger) *PolicyMiddleware {
	return &PolicyMiddleware{authz: authz, log: log}
}

// Require admits the request only when the caller satisfies policy.
func (m *PolicyMiddleware) Require(policy string) echo.MiddlewareFunc {
	return m.guard("policy", policy, func(c echo.Context) (bool, error) {
		return m.authz.Evaluate(c.Request().Context(), policy)
	})
}

// RequirePermission admits the request only when the caller's role in the
// active organization grants permission.
func (m *PolicyMiddleware) RequirePermission(permission string) echo.MiddlewareFunc {
	return m.guard("permission", permission, func(c echo.Context) (bool, error) {
		return m.authz.HasPermission(c.Request().Context(), permission)
	})
}

func (m *PolicyMiddleware) guard(kind, name string, allowed func(c echo.Context) (bool, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if _, ok := common.GetUserIDFromContext(ctx); !ok {
				return common.SendUnauthorizedError(c)
			}

			ok, err := allowed(c)
			if err != nil {
				logger.FromContext(ctx, m.log).Error("Authorization check failed", zap.String(kind, name), zap.Error(err))
				return common.SendError(c, err)
			}
			if !ok {
				return common.SendError(c, common.Forbidden("PolicyMiddleware", "insufficient permissions"))
			}
			return next(c)
		}
	}
}
