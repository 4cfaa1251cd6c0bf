// Package core provides the business logic for the efficiency pipeline.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Users quote the code to support staff for faster diagnosis.
//
// # Pipeline Errors (PIPE001-PIPE099)
//
// Structural failures detected while running a procedure:
//
//	PIPE001 - Missing join key: A file lacks the column the join uses
//	          Action: Check the header row of the named file
//	          Matches: KindMissingKey, "join key not found"
//
//	PIPE002 - Missing column: A required column is absent after the join
//	          Action: Add the named column to the raw data or style list
//	          Matches: KindMissingColumn, "missing required column"
//
//	PIPE003 - Invalid options: The requested settings are inconsistent
//	          Action: Review the join key, rank ceiling and column lists
//	          Matches: KindInvalidOptions, "invalid options"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: Upload exceeds the size limit
//	FILE002 - Invalid CSV: File is not valid comma-separated text
//	FILE003 - Encoding error: Bytes are not valid in the selected encoding
//	FILE004 - No file: A required upload was not provided
//	FILE005 - Empty file: The file has no header row
//	FILE006 - Unsupported encoding: The encoding name is not recognised
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Unknown procedure
//	RUN002 - System busy: Too many runs in progress
//	RUN004 - Request cancelled
//	RUN005 - Request timed out
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: check the application logs for the technical error
//
// # Matching
//
// Typed failures and wrapped sentinel errors are matched first with
// errors.Is. Anything else falls back to case-insensitive substring patterns;
// the first matching pattern wins.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/linemodel/internal/table"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgMissingKey = UserMessage{
		Message: "A file is missing the column used to join",
		Action:  "Check the header row of the named file",
		Code:    "PIPE001",
	}
	msgMissingColumn = UserMessage{
		Message: "A required column is missing after the join",
		Action:  "Add the named column to the raw data or style list",
		Code:    "PIPE002",
	}
	msgInvalidOptions = UserMessage{
		Message: "The processing settings are invalid",
		Action:  "Review the join key, rank ceiling and column lists",
		Code:    "PIPE003",
	}
	msgInvalidCSV = UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure the file is comma-separated with a header row",
		Code:    "FILE002",
	}
	msgEncoding = UserMessage{
		Message: "File contains characters that do not match the selected encoding",
		Action:  "Choose the encoding the file was saved with (tis-620 or utf-8-sig)",
		Code:    "FILE003",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a CSV file with a header row",
		Code:    "FILE005",
	}
	msgUnsupportedEncoding = UserMessage{
		Message: "The selected encoding is not supported",
		Action:  "Use tis-620, utf-8-sig or utf-8",
		Code:    "FILE006",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other runs",
		Action:  "Please wait a moment and try again",
		Code:    "RUN002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "RUN004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try again with smaller files",
		Code:    "RUN005",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user
// messages for errors that arrive without a typed cause, such as transport
// errors surfaced by the web layer.
var errorPatterns = []errorPattern{
	{pattern: "join key not found", msg: msgMissingKey},
	{pattern: "missing required column", msg: msgMissingColumn},
	{pattern: "invalid options", msg: msgInvalidOptions},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file or remove unused columns",
			Code:    "FILE001",
		},
	},
	{pattern: "encoding error", msg: msgEncoding},
	{pattern: "invalid csv", msg: msgInvalidCSV},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "A required file was not selected",
			Action:  "Upload both files before running",
			Code:    "FILE004",
		},
	},
	{pattern: "no columns to parse", msg: msgEmptyFile},
	{pattern: "unsupported encoding", msg: msgUnsupportedEncoding},
	{
		pattern: "unknown procedure",
		msg: UserMessage{
			Message: "Unknown procedure",
			Action:  "Choose layout or rawdata",
			Code:    "RUN001",
		},
	},
	{pattern: "too many concurrent runs", msg: msgBusy},
	{pattern: "context canceled", msg: msgCancelled},
	{pattern: "context deadline exceeded", msg: msgTimeout},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, ErrMissingKey):
		return msgMissingKey
	case errors.Is(err, ErrMissingColumn):
		return msgMissingColumn
	case errors.Is(err, table.ErrUnsupportedEncoding):
		return msgUnsupportedEncoding
	case errors.Is(err, ErrInvalidOptions):
		return msgInvalidOptions
	case errors.Is(err, table.ErrDecode):
		return msgEncoding
	case errors.Is(err, table.ErrNoColumns):
		return msgEmptyFile
	case errors.Is(err, table.ErrMalformed):
		return msgInvalidCSV
	case errors.Is(err, ErrTooManyRuns):
		return msgBusy
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError returns a formatted user-friendly error string.
// Format: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing returns true if the error maps to a specific user message.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps an error with user-friendly information.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError from a technical error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
