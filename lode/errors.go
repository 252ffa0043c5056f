package lode

import (
	"errors"
	"fmt"
	"strings"
)

// Storage failure kinds. Match with errors.Is.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrDiskFull         = errors.New("no space left on device")
	ErrTimeout          = errors.New("operation timed out")
	ErrThrottled        = errors.New("rate limited")
	// ErrAuth is missing or invalid credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrAccessDenied is valid credentials without permission.
	ErrAccessDenied = errors.New("access denied")
	ErrNetwork      = errors.New("network error")
	// ErrUnclassified is the kind of any storage error not matched above.
	ErrUnclassified = errors.New("storage error")
)

// StorageError is a classified archive failure. The original error stays in
// the chain for errors.As.
type StorageError struct {
	Kind error
	Op   string // write, read, init, put
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is matches the error's kind.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrapError classifies err for operation op. Returns nil if err is nil.
func wrapError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Kind: classifyError(err), Op: op, Path: path, Err: err}
}

// classifyError maps err to one of the kind sentinels by type, then by
// message. Returns nil for nil.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case matchAny(msg, "permission denied", "eacces", "access denied"):
		if matchAny(msg, "accessdenied", "forbidden", "403") {
			return ErrAccessDenied
		}
		return ErrPermissionDenied
	case matchAny(msg, "no such file", "does not exist", "not found", "enoent", "404", "nosuchkey"):
		return ErrNotFound
	case matchAny(msg, "no space left", "disk full", "enospc", "quota exceeded"):
		return ErrDiskFull
	case matchAny(msg, "timeout", "timed out", "deadline exceeded"):
		return ErrTimeout
	case matchAny(msg, "slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"):
		return ErrThrottled
	case matchAny(msg, "nocredentialproviders", "credentials", "invalidaccesskeyid",
		"signaturedoesnotmatch", "expiredtoken", "401", "unauthorized"):
		return ErrAuth
	case matchAny(msg, "accessdenied", "forbidden", "403"):
		return ErrAccessDenied
	case matchAny(msg, "connection refused", "no route to host", "network unreachable", "dns", "dial tcp"):
		return ErrNetwork
	default:
		return ErrUnclassified
	}
}

func matchAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
