package internal

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an operation failure so handlers can pick a status code
// and tests can assert on the failure class instead of message text.
type Kind int

const (
	KindValidation Kind = iota // malformed or missing input
	KindConflict               // already-member, already-invited, duplicate
	KindNotFound               // missing competition/user/invite
	KindForbidden              // wrong role for the operation
	KindState                  // wrong lifecycle status or time window
)

type AppError struct {
	Kind    Kind
	Message string
}

func (e *AppError) Error() string { return e.Message }

func Invalid(msg string) *AppError   { return &AppError{KindValidation, msg} }
func Conflict(msg string) *AppError  { return &AppError{KindConflict, msg} }
func NotFound(msg string) *AppError  { return &AppError{KindNotFound, msg} }
func Forbidden(msg string) *AppError { return &AppError{KindForbidden, msg} }
func StateErr(msg string) *AppError  { return &AppError{KindState, msg} }

func statusFor(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindState:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// fail renders err as a JSON error response. Operational errors keep their
// message; anything else is logged and reported as a generic server fault.
func fail(c *gin.Context, err error) {
	var ae *AppError
	if errors.As(err, &ae) {
		c.JSON(statusFor(ae.Kind), gin.H{"error": ae.Message})
		return
	}
	log.Printf("internal error: %v", err)
	c.JSON(500, gin.H{"error": "something went wrong on the server"})
}
