//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package openai

import (
	"errors"
	"net/http"
)

// Error types reported in the "type" field of an error body.
const (
	TypeInvalidRequest     = "invalid_request_error"
	TypeServiceUnavailable = "service_unavailable_error"
	TypeAuthentication     = "authentication_error"
	TypeServer             = "server_error"
)

// Error is an API error carrying the HTTP status code to respond with.
// InternalMessage is for the log only and never sent to the client.
type Error struct {
	Message         string
	Code            int
	Type            string
	Param           string
	InternalMessage string
}

func (e *Error) Error() string {
	if e.InternalMessage != "" {
		return e.Message + ": " + e.InternalMessage
	}
	return e.Message
}

// ServiceUnavailable returns a 503 error. internal carries the cause.
func ServiceUnavailable(message, internal string) *Error {
	if message == "" {
		message = "Service unavailable, please try again later."
	}
	return &Error{
		Message:         message,
		Code:            http.StatusServiceUnavailable,
		Type:            TypeServiceUnavailable,
		InternalMessage: internal,
	}
}

// InvalidRequest returns a 400 error for the named request parameter.
func InvalidRequest(message, param string) *Error {
	return &Error{
		Message: message,
		Code:    http.StatusBadRequest,
		Type:    TypeInvalidRequest,
		Param:   param,
	}
}

// Unauthorized returns a 401 error.
func Unauthorized(message string) *Error {
	return &Error{
		Message: message,
		Code:    http.StatusUnauthorized,
		Type:    TypeAuthentication,
	}
}

// ErrorBody is the JSON body sent for an error.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the content of ErrorBody.
type ErrorDetail struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    int     `json:"code"`
}

// ToBody maps any error to a status code and response body. Errors that are
// not *Error become opaque 500s.
func ToBody(err error) (int, ErrorBody) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError, ErrorBody{Error: ErrorDetail{
			Message: "Internal server error",
			Type:    TypeServer,
			Code:    http.StatusInternalServerError,
		}}
	}

	detail := ErrorDetail{
		Message: apiErr.Message,
		Type:    apiErr.Type,
	}
	if apiErr.Param != "" {
		p := apiErr.Param
		detail.Param = &p
	}
	code := apiErr.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}
	detail.Code = code
	return code, ErrorBody{Error: detail}
}
