// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package apperr classifies errors crossing component boundaries into the
// engine's taxonomy (file system, network, validation, configuration,
// generation) and carries the user-facing message, technical detail, and
// retry hint for each.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"syscall"
)

// Category is the top-level error class.
type Category string

const (
	CategoryUnknown       Category = "unknown"
	CategoryFileSystem    Category = "filesystem"
	CategoryNetwork       Category = "network"
	CategoryValidation    Category = "validation"
	CategoryConfiguration Category = "configuration"
	CategoryGeneration    Category = "generation"
)

// Code refines a category.
type Code string

const (
	CodeNotFound         Code = "not-found"
	CodePermissionDenied Code = "permission-denied"
	CodeAlreadyExists    Code = "already-exists"
	CodeNoSpace          Code = "no-space"
	CodeWrongEntryType   Code = "wrong-entry-type"

	CodeTimeout           Code = "timeout"
	CodeConnectionRefused Code = "connection-refused"
	CodeConnectionReset   Code = "connection-reset"
	CodeHostUnresolved    Code = "host-unresolved"
	CodeRateLimited       Code = "rate-limited"
	CodeUnavailable       Code = "unavailable"

	CodeInvalid         Code = "invalid"
	CodeRequiredMissing Code = "required-field"

	CodeMalformedSettings Code = "malformed-settings"

	CodeProviderFailed Code = "provider-failed"
	CodeOutputMissing  Code = "output-missing"
)

// Error is a classified error. Message is the short actionable text shown
// to the user; Err carries the technical cause.
type Error struct {
	Category  Category
	Code      Code
	Op        string
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Message != "" && e.Err != nil:
		fmt.Fprintf(&b, "%s: %v", e.Message, e.Err)
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(string(e.Category))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error without a cause.
func New(cat Category, code Code, op, msg string) *Error {
	return &Error{Category: cat, Code: code, Op: op, Message: msg, Retryable: defaultRetryable(cat, code)}
}

// Wrap classifies err and attaches op. A nil err returns nil. An err that
// already carries an *Error keeps its classification.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return &Error{Category: ae.Category, Code: ae.Code, Op: op, Retryable: ae.Retryable, Err: err}
	}
	cat, code := classify(err)
	return &Error{Category: cat, Code: code, Op: op, Retryable: defaultRetryable(cat, code) || retryableText(err.Error()), Err: err}
}

// Validation returns a validation error for a named field.
func Validation(op, field, msg string) *Error {
	return &Error{Category: CategoryValidation, Code: CodeInvalid, Op: op, Message: fmt.Sprintf("%s: %s", field, msg)}
}

// Invalid wraps err as a validation failure.
func Invalid(op string, err error) *Error {
	return &Error{Category: CategoryValidation, Code: CodeInvalid, Op: op, Err: err}
}

// Configuration wraps a malformed-settings error.
func Configuration(op string, err error) *Error {
	return &Error{Category: CategoryConfiguration, Code: CodeMalformedSettings, Op: op, Message: "invalid settings", Err: err}
}

// Generation builds a provider failure. Retryable controls whether the
// retry executor may attempt the call again.
func Generation(op, msg string, retryable bool, cause error) *Error {
	return &Error{Category: CategoryGeneration, Code: CodeProviderFailed, Op: op, Message: msg, Retryable: retryable, Err: cause}
}

// OutputMissing reports a generation that succeeded without persisting its
// output. It is never retryable.
func OutputMissing(op, path string) *Error {
	return &Error{Category: CategoryGeneration, Code: CodeOutputMissing, Op: op, Message: fmt.Sprintf("expected output %s was not written", path)}
}

// Permanent marks err as not retryable while keeping its category.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return &Error{Category: ae.Category, Code: ae.Code, Retryable: false, Err: err}
	}
	cat, code := classify(err)
	return &Error{Category: cat, Code: code, Retryable: false, Err: err}
}

// Classify returns the category for err.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Category
	}
	cat, _ := classify(err)
	return cat
}

// CodeOf returns the refined code for err, or "" when unknown.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	_, code := classify(err)
	return code
}

// IsRetryable is the default retry predicate: network-category errors and
// messages naming a temporary condition are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	cat, code := classify(err)
	return defaultRetryable(cat, code) || retryableText(err.Error())
}

func defaultRetryable(cat Category, code Code) bool {
	if cat == CategoryNetwork {
		return true
	}
	return code == CodeRateLimited || code == CodeUnavailable
}

var retryableFragments = []string{
	"timeout",
	"timed out",
	"network",
	"rate limit",
	"rate-limit",
	"too many requests",
	"temporary",
	"temporarily",
	"unavailable",
	"busy",
	"econnreset",
	"etimedout",
	"429",
	"503",
}

func retryableText(msg string) bool {
	lower := strings.ToLower(msg)
	for _, f := range retryableFragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// classify infers a category from typed errors first, then message text.
func classify(err error) (Category, Code) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryNetwork, CodeTimeout
	case errors.Is(err, fs.ErrNotExist):
		return CategoryFileSystem, CodeNotFound
	case errors.Is(err, fs.ErrPermission):
		return CategoryFileSystem, CodePermissionDenied
	case errors.Is(err, fs.ErrExist):
		return CategoryFileSystem, CodeAlreadyExists
	case errors.Is(err, syscall.ENOSPC):
		return CategoryFileSystem, CodeNoSpace
	case errors.Is(err, syscall.EISDIR), errors.Is(err, syscall.ENOTDIR):
		return CategoryFileSystem, CodeWrongEntryType
	case errors.Is(err, syscall.ECONNREFUSED):
		return CategoryNetwork, CodeConnectionRefused
	case errors.Is(err, syscall.ECONNRESET):
		return CategoryNetwork, CodeConnectionReset
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CategoryNetwork, CodeHostUnresolved
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryNetwork, CodeTimeout
		}
		return CategoryNetwork, ""
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "enoent"):
		return CategoryFileSystem, CodeNotFound
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "eacces"):
		return CategoryFileSystem, CodePermissionDenied
	case strings.Contains(msg, "file exists"), strings.Contains(msg, "eexist"):
		return CategoryFileSystem, CodeAlreadyExists
	case strings.Contains(msg, "no space left"), strings.Contains(msg, "enospc"):
		return CategoryFileSystem, CodeNoSpace
	case strings.Contains(msg, "is a directory"), strings.Contains(msg, "not a directory"):
		return CategoryFileSystem, CodeWrongEntryType
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"), strings.Contains(msg, "etimedout"):
		return CategoryNetwork, CodeTimeout
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "econnrefused"):
		return CategoryNetwork, CodeConnectionRefused
	case strings.Contains(msg, "connection reset"), strings.Contains(msg, "econnreset"):
		return CategoryNetwork, CodeConnectionReset
	case strings.Contains(msg, "no such host"), strings.Contains(msg, "enotfound"):
		return CategoryNetwork, CodeHostUnresolved
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return CategoryNetwork, CodeRateLimited
	case strings.Contains(msg, "schema"), strings.Contains(msg, "invalid format"), strings.Contains(msg, "required field"):
		return CategoryValidation, CodeInvalid
	}
	return CategoryUnknown, ""
}

// UserMessage returns a short actionable message for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if ae, ok := e.(*Error); ok && ae.Message != "" {
			return ae.Message
		}
	}
	switch cat, code := Classify(err), CodeOf(err); cat {
	case CategoryFileSystem:
		switch code {
		case CodeNotFound:
			return "A required file was not found."
		case CodePermissionDenied:
			return "Permission denied while accessing a file."
		case CodeAlreadyExists:
			return "The file already exists."
		case CodeNoSpace:
			return "The disk is full."
		}
		return "A file system operation failed."
	case CategoryNetwork:
		return "A network error occurred. Check the connection and try again."
	case CategoryValidation:
		return "The input failed validation."
	case CategoryConfiguration:
		return "The settings are invalid. Check the configuration file."
	case CategoryGeneration:
		return "Content generation failed."
	}
	return "An unexpected error occurred."
}

// Detail returns the full technical error chain.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Actions lists the follow-ups a user may take for err.
func Actions(err error) []string {
	if IsRetryable(err) {
		return []string{"retry", "view-log"}
	}
	return []string{"acknowledge", "view-log"}
}
