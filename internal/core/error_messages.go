package core

// error_messages.go maps pipeline errors to support codes shown by the CLI
// and the HTTP surface.
//
// # Extraction (EXT001-EXT099)
//
//	EXT001 - Input file not found
//	EXT002 - Row count outside the configured bounds
//	EXT003 - Required column missing from the header
//	EXT004 - Input file is empty
//	EXT005 - Input file is not a readable CSV
//
// # Transformation (TRN001-TRN099)
//
//	TRN001 - A value could not be converted to its column type
//
// # Export (EXP001-EXP099)
//
//	EXP001 - Output artifact could not be written
//	EXP002 - Warehouse load failed
//
// # Run control (RUN001-RUN099)
//
//	RUN001 - Another run is in progress
//	RUN002 - Run was cancelled
//	RUN003 - Run timed out
//
// # Infrastructure (SYS001-SYS099)
//
// Matched on the error text when no typed error applies.
//
//	SYS001 - Connection refused
//	SYS002 - Permission denied
//	SYS003 - Disk full
//
// ERR000 is the fallback; check the logs for the technical error.
//
// Typed matches (errors.Is) are tried first in table order, so causes are
// listed before the kinds that wrap them.

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorMatch struct {
	kind   error // required kind, nil for any
	target error
	msg    UserMessage
}

var errorMatches = []errorMatch{
	{
		kind:   ErrExtraction,
		target: fs.ErrNotExist,
		msg: UserMessage{
			Message: "Input file not found",
			Action:  "Check PIPELINE_INPUT_DIR and the input file names",
			Code:    "EXT001",
		},
	},
	{
		target: ErrRowCountOutOfBounds,
		msg: UserMessage{
			Message: "Input row count is outside the expected range",
			Action:  "Verify the input extract or adjust the *_MIN_ROWS/*_MAX_ROWS settings",
			Code:    "EXT002",
		},
	},
	{
		target: ErrMissingColumn,
		msg: UserMessage{
			Message: "Required column is missing from the input header",
			Action:  "Check that all required columns are present in the file",
			Code:    "EXT003",
		},
	},
	{
		target: ErrEmptyInput,
		msg: UserMessage{
			Message: "Input file is empty",
			Action:  "Provide a CSV file with a header row",
			Code:    "EXT004",
		},
	},
	{
		target: ErrExtraction,
		msg: UserMessage{
			Message: "Input file could not be read as CSV",
			Action:  "Ensure the file is comma-separated with consistent columns",
			Code:    "EXT005",
		},
	},
	{
		target: ErrTransformation,
		msg: UserMessage{
			Message: "A value could not be converted to its column type",
			Action:  "Fix the reported line and column in the input file",
			Code:    "TRN001",
		},
	},
	{
		target: ErrWarehouseLoad,
		msg: UserMessage{
			Message: "Warehouse load failed",
			Action:  "Check WAREHOUSE_DATABASE_URL and database availability",
			Code:    "EXP002",
		},
	},
	{
		target: ErrExport,
		msg: UserMessage{
			Message: "Output artifact could not be written",
			Action:  "Check free space and permissions on PIPELINE_OUTPUT_DIR",
			Code:    "EXP001",
		},
	},
	{
		target: ErrRunInProgress,
		msg: UserMessage{
			Message: "Another pipeline run is in progress",
			Action:  "Please wait for it to finish and try again",
			Code:    "RUN001",
		},
	},
	{
		target: ErrNoRunYet,
		msg: UserMessage{
			Message: "No pipeline run has finished yet",
			Action:  "Trigger a run with POST /api/runs or wait for the schedule",
			Code:    "RUN004",
		},
	},
	{
		target: context.Canceled,
		msg: UserMessage{
			Message: "Run was cancelled",
			Action:  "Start a new run when ready",
			Code:    "RUN002",
		},
	},
	{
		target: context.DeadlineExceeded,
		msg: UserMessage{
			Message: "Run timed out",
			Action:  "Raise the caller timeout or try again later",
			Code:    "RUN003",
		},
	},
}

// errorPattern matches untyped errors on their text (case-insensitive).
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to a dependency",
			Action:  "Please try again in a few moments",
			Code:    "SYS001",
		},
	},
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "Permission denied",
			Action:  "Check file system permissions for the pipeline user",
			Code:    "SYS002",
		},
	},
	{
		pattern: "no space left on device",
		msg: UserMessage{
			Message: "Disk is full",
			Action:  "Free space on the output volume",
			Code:    "SYS003",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-facing message with a support code.
// Typed matches win over text patterns. A nil error maps to the zero value.
//
// Example:
//
//	msg := MapError(&ExtractionError{Input: "operators_raw", Err: fs.ErrNotExist})
//	// msg.Code == "EXT001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, m := range errorMatches {
		if m.kind != nil && !errors.Is(err, m.kind) {
			continue
		}
		if errors.Is(err, m.target) {
			return m.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
