package store

import (
	"fmt"
)

// Error kinds used in tool-facing messages. Callers branch on the kind
// prefix to decide whether to retry, re-select, or surface to a human.
const (
	KindNotFound          = "not_found"
	KindCriticalProtected = "critical_protected"
	KindArchivalFailed    = "archival_failed"
	KindValidation        = "validation"
	KindUnavailable       = "unavailable"
)

// NotFoundError reports an absent namespace, label, or version.
// Absence is not a fault: callers get the offending identifiers back
// so they can tell a typo from a genuinely empty store.
type NotFoundError struct {
	Namespace string
	Label     string
	Version   string // "all", "latest", or "v<N>"; empty for namespace lookups
	Session   string // set for session-row lookups instead of the fields above
}

func (e *NotFoundError) Error() string {
	if e.Session != "" {
		return fmt.Sprintf("session %q not found", e.Session)
	}
	if e.Label == "" {
		return fmt.Sprintf("namespace %q not found", e.Namespace)
	}
	if e.Version == "" {
		return fmt.Sprintf("context %q not found in namespace %q", e.Label, e.Namespace)
	}
	return fmt.Sprintf("context %q version %q not found in namespace %q", e.Label, e.Version, e.Namespace)
}

// Kind returns the error taxonomy kind.
func (e *NotFoundError) Kind() string { return KindNotFound }

// CriticalProtectedError reports a delete blocked by critical-label
// protection. Protection is label-level: if any version of the label is
// critical, no version may be deleted without an explicit override.
type CriticalProtectedError struct {
	Namespace        string
	Label            string
	CriticalVersions []int
}

func (e *CriticalProtectedError) Error() string {
	return fmt.Sprintf("context %q in namespace %q has %d critical version(s); deletion requires override",
		e.Label, e.Namespace, len(e.CriticalVersions))
}

// Kind returns the error taxonomy kind.
func (e *CriticalProtectedError) Kind() string { return KindCriticalProtected }

// ArchivalFailedError reports a delete aborted because the archive copy
// could not be written. Nothing was mutated.
type ArchivalFailedError struct {
	Namespace string
	Label     string
	Err       error
}

func (e *ArchivalFailedError) Error() string {
	return fmt.Sprintf("archival failed for context %q in namespace %q, delete aborted: %v",
		e.Label, e.Namespace, e.Err)
}

func (e *ArchivalFailedError) Unwrap() error { return e.Err }

// Kind returns the error taxonomy kind.
func (e *ArchivalFailedError) Kind() string { return KindArchivalFailed }

// ValidationError reports malformed input rejected at the store boundary.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Kind returns the error taxonomy kind.
func (e *ValidationError) Kind() string { return KindValidation }

// UnavailableError reports a transient backing-store failure. Retryable
// with backoff.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("backing store unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Kind returns the error taxonomy kind.
func (e *UnavailableError) Kind() string { return KindUnavailable }
