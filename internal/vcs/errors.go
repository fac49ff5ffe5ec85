package vcs

import "errors"

// Common errors returned by VCS operations.
//
// These can be checked with errors.Is():
//
//	if errors.Is(err, vcs.ErrBinaryNotAvailable) {
//	    // git is not installed or not in PATH
//	}
var (
	// ErrBinaryNotAvailable is returned when the version-control binary
	// is not installed or not in PATH.
	ErrBinaryNotAvailable = errors.New("version-control binary not available")

	// ErrNotARepository is returned when the metadata directory does not
	// exist or is not a directory.
	ErrNotARepository = errors.New("not a version-control repository")

	// ErrConflicts is returned when a pull leaves unresolved conflicts.
	ErrConflicts = errors.New("unresolved conflicts")

	// ErrPushRejected is returned when a push is rejected by the remote,
	// typically due to non-fast-forward updates.
	ErrPushRejected = errors.New("push rejected by remote")
)
