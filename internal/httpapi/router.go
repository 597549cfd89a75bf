package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edirooss/capdir/internal/core"
)

// NewRouter builds the daemon's Gin engine: recovery, secure headers, dev
// CORS, request logging, trusted-header requester parsing, then the
// request-surface routes.
func NewRouter(log *zap.Logger, c *core.Core, trustedHeaders bool, pollMS int64, devCORS bool) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(secure.New(secure.Config{
		SSLRedirect:           false,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: "default-src 'none'",
	}))

	if devCORS {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST"},
			AllowHeaders:     []string{"Content-Type", "Authorization", "X-Capdir-Subject", "X-Capdir-Groups"},
			ExposeHeaders:    []string{"X-Total-Count"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(RequestID())
	r.Use(ZapLogger(log))
	r.Use(RequesterMiddleware(trustedHeaders))

	h := NewHandlers(c, pollMS)
	h.Register(r)

	return r
}
