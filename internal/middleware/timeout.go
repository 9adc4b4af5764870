package middleware

import (
	"context"
	"time"

	"github.com/m1z23r/drift/pkg/drift"
)

// Timeout bounds the request context. Database work started by the handler
// is cancelled, and its transaction rolled back, once d elapses.
func Timeout(d time.Duration) drift.HandlerFunc {
	return func(c *drift.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
