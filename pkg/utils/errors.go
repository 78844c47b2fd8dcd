package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrTransientNetwork  = errors.New("transient network error")       // DNS, refused connection, timeout, TLS
	ErrRemoteUnavailable = errors.New("remote resource unavailable")   // HTTP >= 400 or a redirect (site's "does not exist")
	ErrRetryFailed       = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrParse             = errors.New("parse error")                   // Page violated an assumed structural contract
	ErrFilesystem        = errors.New("filesystem error")              // Wraps os errors
	ErrDatabase          = errors.New("database error")                // Wraps badger errors
	ErrRobotsDisallowed  = errors.New("disallowed by robots.txt")
	ErrRequestCreation   = errors.New("failed to create HTTP request")
	ErrResponseBodyRead  = errors.New("failed to read response body")
	ErrConfigValidation  = errors.New("configuration validation error")
)

// WrapErrorf wraps err with a formatted message. Returns nil when err is nil.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// IsTransient reports whether err is a connectivity-level failure worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientNetwork)
}

// IsUnavailable reports whether err means the remote item does not exist.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}

// CategorizeError maps an error to a predefined category string for logging and the run ledger.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrRetryFailed):
		if errors.Is(err, ErrTransientNetwork) {
			return "RetryFailed_Network"
		}
		return "RetryFailed_Unknown"
	case errors.Is(err, ErrRemoteUnavailable):
		errMsg := err.Error()
		if strings.Contains(errMsg, "redirect") {
			return "Remote_Redirect"
		}
		if strings.Contains(errMsg, " 404") {
			return "Remote_404"
		}
		return "Remote_Unavailable"
	case errors.Is(err, ErrTransientNetwork):
		return categorizeNetwork(err, "Network")
	case errors.Is(err, ErrParse):
		return "Content_Parse"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	return categorizeNetwork(err, "Unknown")
}

// categorizeNetwork refines a network failure by inspecting the underlying error.
// fallback is returned when nothing more specific matches.
func categorizeNetwork(err error, fallback string) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"):
		return "Network_Timeout"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	}
	return fallback
}
