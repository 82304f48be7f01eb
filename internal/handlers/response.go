// Package handlers is the gin layer: request decoding, error mapping, and
// SSE framing. All decisions live in the module usecases.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
)

type APIError struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	// Latest carries the current row on version conflicts so the client can
	// rebase without a second round trip.
	Latest any `json:"latest,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondDomainError maps the error taxonomy onto HTTP statuses.
func RespondDomainError(c *gin.Context, err error) {
	kind := errkind.KindOf(err)
	status := statusFor(kind)
	env := ErrorEnvelope{Error: APIError{Message: err.Error(), Kind: string(kind)}}
	if kind == errkind.KindVersionConflict {
		env.Error.Latest = errkind.LatestOf(err)
	}
	c.JSON(status, env)
}

func statusFor(kind errkind.Kind) int {
	switch kind {
	case errkind.KindNotFound:
		return http.StatusNotFound
	case errkind.KindVersionConflict:
		return http.StatusConflict
	case errkind.KindPermissionDenied:
		return http.StatusForbidden
	case errkind.KindValidation:
		return http.StatusBadRequest
	case errkind.KindDependencyTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
