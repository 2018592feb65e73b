package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"order-tracking-service/internal/backend"
	"order-tracking-service/internal/dto"
	"order-tracking-service/internal/middleware"
	"order-tracking-service/internal/repository"
	"order-tracking-service/internal/service"
)

// statusFor maps an error to the HTTP status and whether the client should
// offer a retry.
func statusFor(err error) (int, bool) {
	var (
		validation *backend.ValidationError
		upstream   *backend.StatusError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, false
	case errors.Is(err, service.ErrInvalidFilter), errors.Is(err, service.ErrInvalidDocument):
		return http.StatusBadRequest, false
	case errors.Is(err, service.ErrChangeNotAllowed):
		return http.StatusConflict, false
	case errors.Is(err, backend.ErrDocumentNotReady):
		return http.StatusConflict, true
	case errors.Is(err, backend.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized, false
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, false
	case errors.Is(err, backend.ErrNetwork), errors.Is(err, backend.ErrDocumentGeneration):
		return http.StatusBadGateway, true
	case errors.As(err, &upstream):
		return http.StatusBadGateway, upstream.Status >= 500
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, true
	}
	return http.StatusInternalServerError, true
}

func message(err error, status int) string {
	switch {
	case errors.Is(err, backend.ErrNetwork):
		return "order service is unreachable, please try again"
	case errors.Is(err, backend.ErrUnauthorized):
		return "your session has expired, please sign in again"
	case errors.Is(err, backend.ErrDocumentGeneration):
		var docErr *backend.DocumentError
		if errors.As(err, &docErr) && docErr.Message != "" {
			return docErr.Message
		}
		return "document could not be generated, please try again"
	case status == http.StatusInternalServerError:
		return "internal error"
	}
	return err.Error()
}

func (ctl *OrderController) fail(c *gin.Context, err error) {
	status, retryable := statusFor(err)
	if status >= http.StatusInternalServerError {
		ctl.log.Error("request failed",
			zap.String("requestId", middleware.RequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: message(err, status), Retryable: retryable})
}
