package middleware

import (
	"strings"

	"github.com/google/uuid"
	"github.com/grachmannico95/wallet-webhook/pkg/logger"
	"github.com/labstack/echo/v4"
)

const (
	TraceHeader   = "X-Trace-ID"
	RequestHeader = "X-Request-ID"

	maxTraceIDLength = 128
)

// RequestID reuses a caller supplied trace id from X-Trace-ID or X-Request-ID
// and generates one otherwise. The id is echoed back in X-Trace-ID.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			traceID := inboundTraceID(c)
			if traceID == "" {
				traceID = uuid.New().String()
			}

			ctx := logger.WithTraceID(c.Request().Context(), traceID)
			c.SetRequest(c.Request().WithContext(ctx))

			c.Response().Header().Set(TraceHeader, traceID)

			return next(c)
		}
	}
}

func inboundTraceID(c echo.Context) string {
	for _, header := range []string{TraceHeader, RequestHeader} {
		id := strings.TrimSpace(c.Request().Header.Get(header))
		if id == "" || len(id) > maxTraceIDLength || strings.ContainsAny(id, "\r\n") {
			continue
		}
		return id
	}
	return ""
}
