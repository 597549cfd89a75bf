package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/edirooss/capdir/internal/core/apierr"
)

// writeError attaches err to the gin context (for ZapLogger) and writes
// the error response shape spec.md §6 defines:
// {error: {code, message, details?}}.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	ae, ok := err.(*apierr.Error)
	if !ok {
		ae = apierr.Wrap(apierr.Internal, "internal error", err)
	}

	body := gin.H{"code": ae.Code, "message": ae.Message}
	if ae.Details != nil {
		body["details"] = ae.Details
	}
	c.JSON(ae.Code.Status(), gin.H{"error": body})
}
