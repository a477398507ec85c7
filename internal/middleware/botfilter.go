// Package middleware carries the gin middleware shared by the tracking
// endpoints: bot flagging, per-IP rate limiting, fallback recovery, and
// request logging.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// botPatterns are known bot User-Agent substrings (lowercase). Ad-network
// verification crawlers matter most here: they follow tracking links
// aggressively and would poison attribution counts if recorded.
var botPatterns = []string{
	"googlebot", "adsbot-google", "mediapartners-google",
	"bingbot", "adidxbot", "slurp", "duckduckbot",
	"baiduspider", "yandexbot", "facebookexternalhit",
	"twitterbot", "linkedinbot", "pinterest", "applebot",
	"semrushbot", "ahrefsbot", "mj12bot", "dotbot",
	"petalbot", "bytespider", "headlesschrome", "phantomjs",
	"lighthouse", "gtmetrix", "curl/", "wget/", "python-requests",
}

// BotFilter sets c.Set("is_bot", true) for known bot user agents.
// Flagged visitors are still redirected; handlers skip attribution writes
// for them.
func BotFilter() gin.HandlerFunc {
	return func(c *gin.Context) {
		ua := strings.ToLower(c.Request.UserAgent())
		if ua == "" || matchesBotPattern(ua) {
			c.Set("is_bot", true)
		}
		c.Next()
	}
}

func matchesBotPattern(ua string) bool {
	for _, pattern := range botPatterns {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
