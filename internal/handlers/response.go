// Package handlers holds the HTTP glue shared by the resource handlers.
package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"eshop_back_end/internal/apperr"
	"eshop_back_end/internal/logger"
)

// Responder writes error responses in the API's envelope.
type Responder struct {
	exposeDetails bool
	log           *zap.Logger
}

// NewResponder builds a Responder. With exposeDetails the cause of upstream
// failures is returned in the "error" field; otherwise it is only logged.
func NewResponder(exposeDetails bool, log *zap.Logger) *Responder {
	return &Responder{exposeDetails: exposeDetails, log: logger.OrNop(log)}
}

// Error aborts the request with the status and message derived from err.
func (r *Responder) Error(c *gin.Context, err error) {
	status := apperr.Status(err)
	body := gin.H{"success": false, "message": apperr.MessageOf(err)}

	if apperr.KindOf(err) == apperr.KindUpstream {
		r.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		if r.exposeDetails {
			body["error"] = err.Error()
		}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

// BadRequest reports an unreadable request body.
func (r *Responder) BadRequest(c *gin.Context, msg string) {
	r.Error(c, apperr.Validation(msg))
}
