package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/afftrack/linktrack/internal/logger"
)

// FallbackRecovery converts panics on visitor-facing routes into a
// redirect to the fallback URL. Paid traffic never sees a 500 page.
func FallbackRecovery(log logger.Logger, fallbackURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("Recovered panic, sending visitor to fallback",
					logger.String("path", c.Request.URL.Path),
					logger.Error(fmt.Errorf("panic: %v", rec)),
				)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.Redirect(http.StatusFound, fallbackURL)
				c.Abort()
			}
		}()
		c.Next()
	}
}
