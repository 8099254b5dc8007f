package model

import (
	"errors"
	"fmt"
)

// ClientError is raised for invalid caller input or a store rejection the
// caller is responsible for, such as referencing a nonexistent category.
type ClientError struct {
	Input   string
	Message string
	Err     error
}

// NewClientError creates a ClientError echoing input.
func NewClientError(input, message string) *ClientError {
	return &ClientError{Input: input, Message: message}
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Input)
}

// Unwrap returns the underlying cause, if any.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// ServerError is raised for environment misconfiguration or an unexpected
// store-side failure.
type ServerError struct {
	Input   string
	Message string
	Err     error
}

// NewServerError creates a ServerError echoing input.
func NewServerError(input, message string) *ServerError {
	return &ServerError{Input: input, Message: message}
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Input)
}

// Unwrap returns the underlying cause, if any.
func (e *ServerError) Unwrap() error {
	return e.Err
}

// IsClientError reports whether err carries a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsServerError reports whether err carries a ServerError.
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}
