// Package core provides the validation engine for worker lifecycle records.
//
// # Error Codes Reference
//
// This file maps technical errors to user-friendly messages with codes for
// support reference. Row-level failures never reach this mapping; they are
// reported per row as reasons. Only errors that stop a whole request do.
//
// # Rule Errors (RULE001-RULE099)
//
//	RULE001 - Malformed rule set: The rule configuration cannot be used
//	          Action: Fix the rule set (see details) and resubmit
//	          Patterns: "malformed rule set"
//
//	RULE002 - Unknown profile: No validation profile with this name
//	          Action: Choose one of the profiles listed at /api/profiles
//	          Patterns: "unknown profile"
//
// # Input Errors (INPUT001-INPUT099)
//
//	INPUT001 - No input: The request contained no records
//	           Action: Provide at least one component with data rows
//	           Patterns: "no input rows"
//
//	INPUT002 - Invalid CSV: A file could not be parsed as CSV
//	           Action: Ensure the file is comma-separated with a header line
//	           Patterns: "invalid csv"
//
//	INPUT003 - Request too large: The request body exceeds the size limit
//	           Action: Split the records into smaller batches
//	           Patterns: "request body too large"
//
//	INPUT004 - Invalid request: The request body is not valid JSON
//	           Action: Check the request format
//	           Patterns: "invalid request body"
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - System busy: Too many validation runs in progress
//	         Action: Please wait a moment and try again
//	         Patterns: "too many concurrent validation runs"
//
//	RUN002 - Run not found: No recorded run with this ID
//	         Action: The run may have been pruned. Validate the records again
//	         Patterns: "run not found"
//
//	RUN003 - History disabled: Run history is not configured
//	         Action: Configure DATABASE_URL to keep run history
//	         Patterns: "run history disabled"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused: Unable to connect to database
//	        Patterns: "connection refused"
//
//	DB002 - Connection reset: Database connection was interrupted
//	        Patterns: "connection reset"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled
//	         Patterns: "context canceled"
//
//	REQ002 - Request timeout
//	         Patterns: "context deadline exceeded", "timeout"
//
//	RATE001 - Rate limited: Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns come first.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoInput is returned when a request carries no records at all.
var ErrNoInput = errors.New("no input rows")

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Rule Errors (RULE001-RULE002)
	// =========================================================================
	{
		pattern: "malformed rule set",
		msg: UserMessage{
			Message: "The rule configuration cannot be used",
			Action:  "Fix the rule set and resubmit",
			Code:    "RULE001",
		},
	},
	{
		pattern: "unknown profile",
		msg: UserMessage{
			Message: "No validation profile with this name",
			Action:  "Choose one of the profiles listed at /api/profiles",
			Code:    "RULE002",
		},
	},

	// =========================================================================
	// Input Errors (INPUT001-INPUT004)
	// =========================================================================
	{
		pattern: "no input rows",
		msg: UserMessage{
			Message: "The request contained no records",
			Action:  "Provide at least one component with data rows",
			Code:    "INPUT001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "A file could not be parsed as CSV",
			Action:  "Ensure the file is comma-separated with a header line",
			Code:    "INPUT002",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "The request exceeds the size limit",
			Action:  "Split the records into smaller batches",
			Code:    "INPUT003",
		},
	},
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "The request body is not valid JSON",
			Action:  "Check the request format",
			Code:    "INPUT004",
		},
	},

	// =========================================================================
	// Run Errors (RUN001-RUN003)
	// =========================================================================
	{
		pattern: "too many concurrent validation runs",
		msg: UserMessage{
			Message: "System is busy processing other validation runs",
			Action:  "Please wait a moment and try again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "Validation run not found",
			Action:  "The run may have been pruned. Validate the records again",
			Code:    "RUN002",
		},
	},
	{
		pattern: "run history disabled",
		msg: UserMessage{
			Message: "Run history is not configured",
			Action:  "Configure DATABASE_URL to keep run history",
			Code:    "RUN003",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB002)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},

	// =========================================================================
	// Request Errors (REQ001-REQ002, RATE001)
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller batch or try again later",
			Code:    "REQ002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller batch or try again later",
			Code:    "REQ002",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether an error matches a known pattern, meaning its
// details are safe and useful to show to the caller.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
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

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
