// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"errors"
	"net/http"

	"marketplace_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// Error sends an error response with the given status code and message.
func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// OK sends a 200 OK response with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// Created sends a 201 Created response with the given payload.
func Created(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusCreated, payload)
}

// HandleError maps domain errors to HTTP responses.
// Typed *apperr.Error values use their Kind for the status code; anything
// else is rendered as a generic 500 so store errors never leak.
// Returns true if an error was handled, false otherwise.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		if domainErr.Kind == apperr.KindInternal {
			_ = c.Error(err)
		}
		c.JSON(domainErr.HTTPStatus(), ErrorResponse{
			Error:   domainErr.Message,
			Code:    domainErr.Kind.String(),
			Details: domainErr.Details,
		})
		return true
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "service unavailable", Code: apperr.KindInternal.String()})
	return true
}
