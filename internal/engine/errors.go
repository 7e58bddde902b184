package engine

import (
	"errors"
	"fmt"
)

// Diagnostic placeholders substituted into output for authoring gaps.
// These never surface as errors.
const (
	placeholderMissingRule  = "[MISSING RULE: %s]"
	placeholderNoOptions    = "[NO VALID OPTIONS]"
	placeholderNoConditions = "[NO CONDITIONS MET]"
	placeholderUnknownType  = "[UNKNOWN RULE TYPE: %s]"
	placeholderInvalidRule  = "[INVALID RULE FORMAT]"
	placeholderInvalidSeq   = "[INVALID SEQUENTIAL OPTION]"
	placeholderCycle        = "[CYCLE DETECTED: %s]"
)

// EngineError is a caller-contract violation: the request itself was
// wrong, as opposed to a gap in bundle content.
type EngineError struct {
	// Code identifies the error category.
	Code EngineErrorCode

	// Message is a human-readable description.
	Message string

	// Bundle names the bundle involved, if any.
	Bundle string

	// Target names the missing target for ErrCodeTargetNotFound.
	Target string
}

// EngineErrorCode categorizes engine errors.
type EngineErrorCode string

const (
	// ErrCodeNoBundleSelected: no bundle named and none selected.
	ErrCodeNoBundleSelected EngineErrorCode = "NO_BUNDLE_SELECTED"

	// ErrCodeBundleNotFound: the named bundle is not loaded.
	ErrCodeBundleNotFound EngineErrorCode = "BUNDLE_NOT_FOUND"

	// ErrCodeTargetNotFound: the bundle has no such targeting entry.
	ErrCodeTargetNotFound EngineErrorCode = "TARGET_NOT_FOUND"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsTargetNotFound reports whether err is a missing-target error.
// Uses errors.As to handle wrapped errors.
func IsTargetNotFound(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeTargetNotFound
	}
	return false
}

// IsBundleNotFound reports whether err is a missing-bundle error.
func IsBundleNotFound(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeBundleNotFound
	}
	return false
}

func errNoBundleSelected() *EngineError {
	return &EngineError{Code: ErrCodeNoBundleSelected, Message: "no bundle selected"}
}

func errBundleNotFound(name string) *EngineError {
	return &EngineError{
		Code:    ErrCodeBundleNotFound,
		Message: fmt.Sprintf("bundle '%s' not found", name),
		Bundle:  name,
	}
}

func errTargetNotFound(bundle, target string) *EngineError {
	return &EngineError{
		Code:    ErrCodeTargetNotFound,
		Message: fmt.Sprintf("target '%s' not found in bundle '%s'", target, bundle),
		Bundle:  bundle,
		Target:  target,
	}
}
