package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/resaletix/resaletix-backend/errors"
	"github.com/resaletix/resaletix-backend/logger"
)

type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// publicDetail lists the error types whose Detail is safe to show clients.
var publicDetail = map[errors.ErrorType]bool{
	errors.ValidationError:              true,
	errors.NotFoundError:                true,
	errors.ConflictError:                true,
	errors.DuplicateTicketError:         true,
	errors.InvalidStatusTransitionError: true,
	errors.PayloadTooLargeError:         true,
	errors.UnsupportedMediaError:        true,
	errors.RateLimitError:               true,
}

// ErrorHandler renders the last error pushed with c.Error. Code is the
// AppError code when set (e.g. the duplicate verdict), otherwise the status.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		last := c.Errors.Last()
		err := last.Err

		if appErr, ok := errors.As(err); ok {
			status := appErr.GetHTTPStatus()
			logger.LogHTTPError(c, err, status, fmt.Sprintf("%s error", appErr.Type))

			resp := ErrorResponse{
				Type:    string(appErr.Type),
				Message: appErr.Message,
				Code:    appErr.Code,
			}
			if resp.Code == "" {
				resp.Code = strconv.Itoa(status)
			}
			if appErr.Detail != "" && (publicDetail[appErr.Type] || gin.IsDebugging()) {
				resp.Details = appErr.Detail
			}
			c.JSON(status, resp)
			return
		}

		if last.Type == gin.ErrorTypeBind {
			logger.LogHTTPError(c, err, http.StatusBadRequest, "Request binding error")
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Type:    string(errors.ValidationError),
				Message: "Failed to bind request",
				Code:    strconv.Itoa(http.StatusBadRequest),
				Details: err.Error(),
			})
			return
		}

		logger.LogHTTPError(c, err, http.StatusInternalServerError, "Unexpected server error")
		resp := ErrorResponse{
			Type:    string(errors.ServerError),
			Message: "Internal Server Error",
			Code:    strconv.Itoa(http.StatusInternalServerError),
		}
		if gin.IsDebugging() {
			resp.Details = err.Error()
		}
		c.JSON(http.StatusInternalServerError, resp)
	}
}
