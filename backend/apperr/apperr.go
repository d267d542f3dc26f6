// Copyright (C) 2025 Treddit <dev@treddit.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package apperr carries a machine-readable code alongside the message so
// handlers can map storage failures to HTTP status codes without string
// matching.
package apperr

import (
	"errors"
	"fmt"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error { return New(CodeInvalidArgument, msg) }
func NotFound(msg string) error   { return New(CodeNotFound, msg) }
func Forbidden(msg string) error  { return New(CodePermissionDenied, msg) }
func Internal(msg string) error   { return New(CodeInternal, msg) }

// CodeOf extracts the code from an error chain, CodeUnknown if none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// MessageOf returns the boundary-safe message for an error. Unknown errors
// get a generic message so internals never leak into responses.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "unexpected error"
}
