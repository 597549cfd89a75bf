package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/edirooss/capdir/internal/model"
	"github.com/edirooss/capdir/internal/requester"
)

const requesterKey = "capdir.requester"

// RequesterMiddleware parses a Requester from trusted headers (or returns
// the anonymous requester when trustedHeaders is false) and stashes it on
// the gin context for handlers to read.
func RequesterMiddleware(trustedHeaders bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticated, subject, groups := requester.FromHeaders(c.Request.Header, trustedHeaders)
		c.Set(requesterKey, model.Requester{
			Authenticated: authenticated,
			Subject:       subject,
			Groups:        groups,
		})
		c.Next()
	}
}

// getRequester reads the Requester stashed by RequesterMiddleware, falling
// back to anonymous if absent.
func getRequester(c *gin.Context) model.Requester {
	if v, ok := c.Get(requesterKey); ok {
		if r, ok := v.(model.Requester); ok {
			return r
		}
	}
	return model.Anonymous
}
