package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"identity-service/internal/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// fail writes the error response for err. Server-side failures are logged
// with their cause; the client only sees the stable code and message.
func (h *Handler) fail(c *gin.Context, err error) {
	de := domain.AsError(err)
	if de.Status >= http.StatusInternalServerError {
		h.logFailure(c, err)
	}
	writeError(c, de)
}

func writeError(c *gin.Context, de *domain.Error) {
	c.AbortWithStatusJSON(de.Status, errorBody{Error: errorDetail{Code: de.Code, Message: de.Message}})
}

func (h *Handler) logFailure(c *gin.Context, err error) {
	fields := logrus.Fields{
		"request_id": c.GetString(requestIDKey),
		"route":      c.FullPath(),
		"error":      err.Error(),
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil {
			fields["code"] = code
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			fields["context"] = ctx
		}
	}
	h.logger.WithFields(fields).Error("request failed")
}

func badRequest(msg string) *domain.Error {
	return domain.ErrInvalidRequest.WithMessage(msg)
}
