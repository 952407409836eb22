// Package core provides the sensor table logic.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. The web layer shows Message and Action in the error banner and
// logs the technical error next to the code.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused: Unable to connect to the sensor database
//	        Patterns: "connection refused"
//
//	DB002 - Connection reset: Database connection was interrupted
//	        Patterns: "connection reset"
//
//	DB003 - Timeout: The sensor service took too long to answer
//	        Patterns: "timeout"
//
//	DB004 - Deadlock: Database was busy with conflicting operations
//	        Patterns: "deadlock"
//
// # Platform Errors (PLAT001-PLAT099)
//
//	PLAT001 - Unauthorized: The platform rejected our credentials
//	          Patterns: "platform unauthorized"
//
//	PLAT002 - Unavailable: The platform is not answering correctly
//	          Patterns: "platform unavailable"
//
//	PLAT003 - Not found: The sensor no longer exists
//	          Patterns: "record not found"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Cancelled: Request was cancelled
//	         Patterns: "context canceled"
//
//	REQ002 - Timed out: Request timed out
//	         Patterns: "context deadline exceeded"
//
//	REQ003 - Busy: Too many backend calls in flight
//	         Patterns: "backend busy"
//
// # Table Errors (TBL001-TBL099)
//
//	TBL001 - Invalid page size
//	         Patterns: "invalid page size"
//
//	TBL002 - Session expired
//	         Patterns: "session not found"
//
//	TBL003 - Unknown page action
//	         Patterns: "unknown page action"
//
// # Operation Errors (LOAD001, DEL001-DEL003)
//
//	LOAD001 - Sensors could not be loaded; previous results are still shown
//	          Patterns: "load sensors"
//
//	DEL001 - Sensor could not be deleted; the table was not changed
//	         Patterns: "delete sensor"
//
//	DEL002 - No sensor selected
//	         Patterns: "missing record id"
//
//	DEL003 - Invalid sensor identifier
//	         Patterns: "invalid sensor id"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the application logs for the
// original technical error.
//
// # Pattern Matching
//
// Patterns are matched case-insensitively with strings.Contains against the
// full wrapped error text. The first match wins, so causes ("connection
// refused") are listed before the operation that wrapped them ("load
// sensors").
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Order matters: causes first, wrapping operations last.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Connectivity (DB001-DB004, REQ001-REQ003)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the sensor database",
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
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Narrow the search or try again later",
			Code:    "REQ002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "backend busy",
		msg: UserMessage{
			Message: "The sensor service is busy",
			Action:  "Please try again in a few moments",
			Code:    "REQ003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The sensor service took too long to answer",
			Action:  "Narrow the search or try again later",
			Code:    "DB003",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},

	// =========================================================================
	// Platform API (PLAT001-PLAT003)
	// =========================================================================
	{
		pattern: "platform unauthorized",
		msg: UserMessage{
			Message: "The sensor platform rejected the request",
			Action:  "Check the platform token configuration",
			Code:    "PLAT001",
		},
	},
	{
		pattern: "platform unavailable",
		msg: UserMessage{
			Message: "The sensor platform is not responding correctly",
			Action:  "Please try again in a few moments",
			Code:    "PLAT002",
		},
	},
	{
		pattern: "record not found",
		msg: UserMessage{
			Message: "This sensor no longer exists",
			Action:  "Reload the table to see current data",
			Code:    "PLAT003",
		},
	},

	// =========================================================================
	// Table requests (TBL001-TBL003)
	// =========================================================================
	{
		pattern: "invalid page size",
		msg: UserMessage{
			Message: "Invalid page size",
			Action:  "Choose 10, 25, 50, 100 or 200 records per page",
			Code:    "TBL001",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Your table session has expired",
			Action:  "Reload the page",
			Code:    "TBL002",
		},
	},
	{
		pattern: "unknown page action",
		msg: UserMessage{
			Message: "Unknown page navigation",
			Action:  "Use the first, previous, next or last buttons",
			Code:    "TBL003",
		},
	},

	// =========================================================================
	// Operations (DEL002-DEL003, LOAD001, DEL001)
	// =========================================================================
	{
		pattern: "missing record id",
		msg: UserMessage{
			Message: "No sensor was selected",
			Action:  "Pick a row to delete",
			Code:    "DEL002",
		},
	},
	{
		pattern: "invalid sensor id",
		msg: UserMessage{
			Message: "Invalid sensor identifier",
			Action:  "Reload the table and try again",
			Code:    "DEL003",
		},
	},
	{
		pattern: "load sensors",
		msg: UserMessage{
			Message: "Sensors could not be loaded",
			Action:  "Previous results are still shown. Retry to load again",
			Code:    "LOAD001",
		},
	},
	{
		pattern: "delete sensor",
		msg: UserMessage{
			Message: "Sensor could not be deleted",
			Action:  "The table was not changed. Please try again",
			Code:    "DEL001",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
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
// It returns the first matching pattern, or ERR000 when nothing matches.
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

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
