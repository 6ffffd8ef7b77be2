package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Response is the standard API envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error carries a machine-readable code plus a human message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRunFailed     = "RUN_ROLLED_BACK"
)

// Handle maps a service error to the right response, or sends data on nil.
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Resource not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		Conflict(c, "Resource already exists")
	default:
		InternalError(c, err.Error())
	}
}

// Success sends the data envelope; POSTs answer 201.
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == http.MethodPost {
		status = http.StatusCreated
	}
	c.JSON(status, Response{Success: true, Data: data})
}

func failure(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		Success: false,
		Error:   &Error{Code: code, Message: message},
	})
}

func NotFound(c *gin.Context, message string) {
	failure(c, http.StatusNotFound, ErrCodeNotFound, message)
}

func BadRequest(c *gin.Context, message string) {
	failure(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	failure(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func Conflict(c *gin.Context, message string) {
	failure(c, http.StatusConflict, ErrCodeConflict, message)
}

func InternalError(c *gin.Context, message string) {
	failure(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// RunFailed reports a rolled-back processing run: the ledger is intact, but
// the day's processing did not commit.
func RunFailed(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Data:    data,
		Error:   &Error{Code: ErrCodeRunFailed, Message: message},
	})
}
