package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apperrors "github.com/resaletix/resaletix-backend/errors"
	"github.com/resaletix/resaletix-backend/middleware"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

func getPaginationParams(c *gin.Context, defaultLimit, defaultOffset int) PaginationParams {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", strconv.Itoa(defaultOffset)))
	if err != nil || offset < 0 {
		offset = defaultOffset
	}

	return PaginationParams{Limit: limit, Offset: offset}
}

func getUserIDFromContext(c *gin.Context) string {
	return middleware.UserID(c)
}

// bindJSONOrError reports false after pushing a validation error.
func bindJSONOrError(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		_ = c.Error(apperrors.ValidationFailed("invalid_request_payload", err.Error()))
		return false
	}
	return true
}

func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// listingIDParam reads :id and pushes a validation error when it is not a UUID.
func listingIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !isValidUUID(id) {
		_ = c.Error(apperrors.ValidationFailed("validation_failed", "valid listing ID is required"))
		return "", false
	}
	return id, true
}
