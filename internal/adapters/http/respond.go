package http

import (
	"errors"
	"net/http"

	"castforge/internal/domain"
	"castforge/internal/encoder"
	"castforge/internal/provider"
	"github.com/gin-gonic/gin"
)

// respond wraps the payload in the success envelope.
func respond(c *gin.Context, code int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(code, body)
}

// fail maps the error taxonomy onto HTTP statuses and the failure
// envelope. Nothing escapes this boundary as a crash.
func fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	var launchErr *encoder.LaunchError
	var provErr *provider.Error
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyActive):
		code = http.StatusConflict
	case errors.As(err, &launchErr):
		code = http.StatusBadGateway
	case errors.As(err, &provErr):
		code = http.StatusBadGateway
	}
	c.JSON(code, gin.H{"success": false, "error": err.Error()})
}
