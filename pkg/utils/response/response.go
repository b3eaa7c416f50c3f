package response

import (
	"net/http"

	"ojcore/pkg/errors"
	"ojcore/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody carries the error half of the envelope.
type ErrorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Page is the pagination shape for list endpoints.
type Page struct {
	Count    int64       `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

// Success sends a 200 response with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// SuccessWithMessage sends a 200 response with data and a message.
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data, Message: message})
}

// Error sends an error response, extracting the code from the error.
// Stack traces are logged and never leak to the client.
func Error(c *gin.Context, err error) {
	platformErr := errors.GetError(err)

	logger.Error(c.Request.Context(), "request error",
		zap.String("code", string(platformErr.Code)),
		zap.String("message", platformErr.Error()),
		zap.Any("details", platformErr.Details),
		zap.String("stack", platformErr.Stack),
	)

	body := Body{
		Success: false,
		Error: &ErrorBody{
			Code:    wireCode(platformErr.Code),
			Message: clientMessage(platformErr),
		},
	}
	if len(platformErr.Details) > 0 && platformErr.Code == errors.CodeValidation {
		body.Error.Details = platformErr.Details
	}
	c.JSON(platformErr.Code.HTTPStatus(), body)
}

// ErrorWithCode sends an error response with an explicit code and message.
func ErrorWithCode(c *gin.Context, code errors.Code, message string) {
	if message == "" {
		message = code.Message()
	}
	logger.Error(c.Request.Context(), "request error",
		zap.String("code", string(code)),
		zap.String("message", message),
	)
	c.JSON(code.HTTPStatus(), Body{
		Success: false,
		Error:   &ErrorBody{Code: wireCode(code), Message: message},
	})
}

// BadRequest sends a 400 validation error.
func BadRequest(c *gin.Context, message string) {
	ErrorWithCode(c, errors.CodeValidation, message)
}

// Unauthorized sends a 401 error.
func Unauthorized(c *gin.Context, message string) {
	ErrorWithCode(c, errors.CodeUnauthorized, message)
}

// Forbidden sends a 403 error.
func Forbidden(c *gin.Context, message string) {
	ErrorWithCode(c, errors.CodeForbidden, message)
}

// NotFound sends a 404 error.
func NotFound(c *gin.Context, message string) {
	ErrorWithCode(c, errors.CodeNotFound, message)
}

// Paginated sends a 200 list response with the standard pagination shape.
func Paginated(c *gin.Context, results interface{}, count int64, next, previous *string) {
	Success(c, Page{Count: count, Next: next, Previous: previous, Results: results})
}

// AbortWithError aborts the request and sends an error response.
func AbortWithError(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// AbortWithErrorCode aborts the request with an explicit code.
func AbortWithErrorCode(c *gin.Context, code errors.Code, message string) {
	ErrorWithCode(c, code, message)
	c.Abort()
}

// wireCode collapses infrastructure codes so internals stay hidden.
func wireCode(code errors.Code) errors.Code {
	switch code {
	case errors.CodeDatabase, errors.CodeCache, errors.CodeQueue, errors.CodeStorage, errors.CodeJudgeInternal:
		return errors.CodeServerError
	default:
		return code
	}
}

// clientMessage replaces internal messages with the generic one for 5xx codes.
func clientMessage(err *errors.Error) string {
	if err.Code.HTTPStatus() >= http.StatusInternalServerError {
		return errors.CodeServerError.Message()
	}
	return err.Error()
}
