// Package respond writes the JSON envelope shared by every API route.
package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// GenericServerError is the only message a client sees for unexpected failures.
const GenericServerError = "Internal server error"

// Envelope is the response body of every API route.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Cached  *bool  `json:"cached,omitempty"`
}

// Error is a failure with a client-safe message and HTTP status.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// BadRequest is a validation failure.
func BadRequest(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message}
}

// NotFound is an unknown resource.
func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Message: message}
}

// Unauthorized is a missing or invalid credential.
func Unauthorized(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: message}
}

// Forbidden is an authenticated actor without access.
func Forbidden(message string) *Error {
	return &Error{Status: http.StatusForbidden, Message: message}
}

// Conflict is a uniqueness violation.
func Conflict(message string) *Error {
	return &Error{Status: http.StatusConflict, Message: message}
}

// PayloadTooLarge is a request body over the accepted size.
func PayloadTooLarge(message string) *Error {
	return &Error{Status: http.StatusRequestEntityTooLarge, Message: message}
}

// Internal wraps an upstream failure. The cause is logged, never sent.
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: GenericServerError, Err: err}
}

// OK writes a 200 success envelope.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 success envelope.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// CreatedMessage writes a 201 success envelope with a human-readable message.
func CreatedMessage(c *gin.Context, data any, message string) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data, Message: message})
}

// Message writes a 200 success envelope with a human-readable message.
func Message(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Message: message})
}

// Cached writes a 200 success envelope carrying the cache flag.
func Cached(c *gin.Context, data any, cached bool) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Cached: &cached})
}

// Fail aborts with err. A *Error keeps its status and message; anything else
// becomes a 500 with the generic message.
func Fail(c *gin.Context, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = Internal(err)
	}
	if apiErr.Status >= http.StatusInternalServerError {
		entry := log.WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
		if apiErr.Err != nil {
			entry = entry.WithError(apiErr.Err)
		}
		entry.Error("request failed")
	}
	c.AbortWithStatusJSON(apiErr.Status, Envelope{Success: false, Error: apiErr.Message})
}

// Errors renders errors attached with c.Error when no response was written.
func Errors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		Fail(c, c.Errors.Last().Err)
	}
}

// Recovery converts panics into the generic 500 envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"panic":  recovered,
		}).Error("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, Envelope{Success: false, Error: GenericServerError})
	})
}

// NoRoute answers unknown routes with a 404 envelope.
func NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, Envelope{Success: false, Error: "Route not found"})
}
