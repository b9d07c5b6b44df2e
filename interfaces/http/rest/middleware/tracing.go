package middleware

import (
	"net/http"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracing opens an X-Ray segment per request when enabled. Subsegments
// created further down attach to it.
func Tracing(serviceName string, enabled bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return xray.Handler(xray.NewFixedSegmentNamer(serviceName), next)
	}
}
