package middleware

import (
	"context"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
)

// defaultProfilingSkips never get labels
var defaultProfilingSkips = []string{"/health", "/health/live", "/swagger"}

// Profiling attaches route and method labels to CPU samples taken while the
// request runs. Only matched gin routes are labelled, keeping cardinality
// bounded.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || skipProfiling(route) {
			c.Next()
			return
		}
		labels := map[string]string{
			telemetry.ProfilingLabelRoute:  route,
			telemetry.ProfilingLabelMethod: c.Request.Method,
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func skipProfiling(route string) bool {
	return slices.ContainsFunc(defaultProfilingSkips, func(p string) bool {
		return route == p || strings.HasPrefix(route, p+"/")
	})
}
