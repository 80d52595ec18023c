package middleware

import (
	"net/http"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"
)

// Tracing opens an X-Ray segment per request.  When disabled it is a
// pass-through.
func Tracing(enabled bool, serviceName string) echo.MiddlewareFunc {
	if !enabled {
		return passThrough
	}
	namer := xray.NewFixedSegmentNamer(serviceName)
	return echo.WrapMiddleware(func(next http.Handler) http.Handler {
		return xray.Handler(namer, next)
	})
}
