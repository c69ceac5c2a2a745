package middleware

import (
	"phishSentinel/business/detector"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const HeaderTraceID = "X-Trace-Id"

// TraceMiddleware reuses an incoming X-Trace-Id or mints one, echoes it on
// the response and puts it on the request context for the detector logs.
func TraceMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tid := c.Request().Header.Get(HeaderTraceID)
			if tid == "" || len(tid) > 64 {
				tid = uuid.NewString()
			}

			c.Set("trace_id", tid)
			c.Response().Header().Set(HeaderTraceID, tid)
			ctx := detector.WithTraceID(c.Request().Context(), tid)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func TraceID(c echo.Context) string {
	if tid, ok := c.Get("trace_id").(string); ok {
		return tid
	}
	return ""
}
