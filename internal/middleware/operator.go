package middleware

import (
	"strings"

	"github.com/grachmannico95/wallet-webhook/pkg/logger"
	"github.com/labstack/echo/v4"
)

// Operator puts the acting operator's name on the request context. There is
// no authentication; the header is trusted as sent.
func Operator(header, fallback string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			name := strings.TrimSpace(c.Request().Header.Get(header))
			if name == "" {
				name = fallback
			}

			if name != "" {
				ctx := logger.WithOperator(c.Request().Context(), name)
				c.SetRequest(c.Request().WithContext(ctx))
			}

			return next(c)
		}
	}
}
