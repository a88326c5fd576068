package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/sbguangha/tianyishenshu/internal/service"

	"github.com/gin-gonic/gin"
)

var statusByCode = map[service.Code]int{
	service.CodeValidation:        http.StatusBadRequest,
	service.CodeInvalidCredential: http.StatusUnauthorized,
	service.CodeCodeUnavailable:   http.StatusBadRequest,
	service.CodeConflict:          http.StatusConflict,
	service.CodeNotFound:          http.StatusNotFound,
	service.CodeInternal:          http.StatusInternalServerError,
}

// respondError writes err as {"error", "code"}. Internal causes are logged, never returned.
func respondError(c *gin.Context, err error) {
	code := service.ErrorCode(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	msg := "internal server error"
	var se *service.Error
	if errors.As(err, &se) && status < http.StatusInternalServerError {
		msg = se.Message
	}
	if status >= http.StatusInternalServerError {
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": msg, "code": string(code)})
}

// respondBindError reports a request body or query that could not be parsed
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error(), "code": string(service.CodeValidation)})
}
