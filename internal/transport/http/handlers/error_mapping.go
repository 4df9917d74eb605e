package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorCase pairs a usecase sentinel with the status and message it should
// surface as.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError writes the first matching case for err, or the
// fallback when no sentinel matches. Unmatched errors never leak their text
// to the client.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	status, message := fallbackStatus, fallbackMessage
	for _, cs := range cases {
		if cs.Err != nil && errors.Is(err, cs.Err) {
			status, message = cs.Status, cs.Message
			break
		}
	}

	c.JSON(status, NewErrorResponse(c, message))
}
