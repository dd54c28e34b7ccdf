// Package mcp exposes a guide engine to AI clients over the Model Context
// Protocol: search, section reading, fragment loading, and status, plus
// guide sections as resources.
package mcp

import (
	"context"
	stderrors "errors"
	"fmt"

	gerrors "github.com/dubedition/guidecore/internal/errors"
)

// Custom MCP error codes for guidecore.
const (
	// ErrCodeFragmentFailed indicates a fragment load ended in a terminal
	// error.
	ErrCodeFragmentFailed = -32001

	// ErrCodeSectionNotFound indicates no indexed section has the
	// requested id.
	ErrCodeSectionNotFound = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is an MCP protocol error with a JSON-RPC code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var ge *gerrors.GuideError
	if stderrors.As(err, &ge) {
		return mapGuideError(ge)
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case stderrors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewSectionNotFoundError creates an error for unknown section ids.
func NewSectionNotFoundError(id string) *MCPError {
	return &MCPError{
		Code:    ErrCodeSectionNotFound,
		Message: fmt.Sprintf("Section '%s' not found.", id),
	}
}

// NewResourceNotFoundError creates an error for unknown resource URIs.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

// mapGuideError converts a GuideError to an MCPError. The suggestion is
// folded into the message so AI clients can relay it.
func mapGuideError(ge *gerrors.GuideError) *MCPError {
	message := ge.Message
	if ge.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ge.Message, ge.Suggestion)
	}

	switch ge.Code {
	case gerrors.ErrCodeUnknownTarget:
		return &MCPError{Code: ErrCodeSectionNotFound, Message: message}
	case gerrors.ErrCodeFetchTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case gerrors.ErrCodeFetchUnavailable, gerrors.ErrCodeHTTPStatus,
		gerrors.ErrCodeEmptyContent:
		return &MCPError{Code: ErrCodeFragmentFailed, Message: message}
	}

	switch ge.Category {
	case gerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case gerrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case gerrors.CategoryIO:
		return &MCPError{Code: ErrCodeSectionNotFound, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
