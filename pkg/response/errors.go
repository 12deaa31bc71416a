package response

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/covidjournal/backend/pkg/apperror"
)

// RetryAfterSeconds is the Retry-After hint sent with 503 responses.
const RetryAfterSeconds = 5

// Error maps the domain error taxonomy onto HTTP responses. Unrecognized
// errors become 500 and the caller is expected to have logged them.
func Error(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, apperror.ErrInvalidArgument):
		BadRequest(c, err.Error())
	case errors.Is(err, apperror.ErrUnavailable):
		ServiceUnavailable(c, err.Error(), RetryAfterSeconds)
	default:
		Internal(c, "internal error")
	}
}
