package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"home-service-server/services"
)

var conflictCodes = []struct {
	err  error
	code string
}{
	{services.ErrJobNoLongerAvailable, "job_no_longer_available"},
	{services.ErrInvalidTransition, "invalid_transition"},
	{services.ErrPriceAlreadyFinalized, "price_already_finalized"},
	{services.ErrPriceNotFinalized, "price_not_finalized"},
	{services.ErrAlreadyPaid, "already_paid"},
	{services.ErrNotWithdrawable, "not_withdrawable"},
}

// errorStatus maps an engine error to an HTTP status and a stable error code
func errorStatus(err error) (int, string) {
	switch services.KindOf(err) {
	case services.KindValidation:
		return http.StatusBadRequest, "validation_error"
	case services.KindNotFound:
		return http.StatusNotFound, "not_found"
	case services.KindConflict:
		for _, cc := range conflictCodes {
			if errors.Is(err, cc.err) {
				return http.StatusConflict, cc.code
			}
		}
		return http.StatusConflict, "conflict"
	case services.KindLocationNotSet:
		return http.StatusPreconditionFailed, "location_not_set"
	case services.KindForbidden:
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// respondError writes the error body. Internal details stay in the log.
func respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "Internal server error"
	}

	body := gin.H{"error": code, "message": message}
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, field, reason string) {
	respondError(c, &services.ValidationError{Field: field, Reason: reason})
}

// parseID reads a positive integer path parameter
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, name, "must be a positive integer")
		return 0, false
	}
	return uint(id), true
}
