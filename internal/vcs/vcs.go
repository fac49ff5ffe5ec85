// Package vcs defines the narrow version-control interface the watch loop
// depends on.
//
// The interface covers exactly the operations the daemon needs: a status
// query, staging, commit, and the remote operations (pull/fetch/push) plus
// the conflict-forensics queries used to preserve merge-conflict stages.
// Modeling these as an interface keeps the loop's control logic testable
// against fakes without spawning real subprocesses.
//
// # Implementations
//
//   - internal/vcs/git: shells out to the git binary
package vcs

import "context"

// Stage identifies one of the three index stages of an unmerged path.
type Stage int

const (
	// StageOriginal is the common ancestor version (index stage 1).
	StageOriginal Stage = 1

	// StageYours is the local side of the conflict (index stage 2).
	StageYours Stage = 2

	// StageTheirs is the incoming remote side (index stage 3).
	StageTheirs Stage = 3
)

// String returns the side-file suffix used when preserving conflict stages.
func (s Stage) String() string {
	switch s {
	case StageOriginal:
		return "original"
	case StageYours:
		return "yours"
	case StageTheirs:
		return "theirs"
	default:
		return "unknown"
	}
}

// Stages lists the three conflict stages in side-file order.
var Stages = []Stage{StageOriginal, StageYours, StageTheirs}

// VCS is the capability set the daemon requires of a version-control backend.
type VCS interface {
	// ChangedPaths returns the paths reported dirty by a status query
	// scoped to the configured working tree and metadata directory.
	ChangedPaths() ([]string, error)

	// HasChanges returns true if at least one path is dirty.
	HasChanges() (bool, error)

	// Add stages the given paths for commit.
	Add(paths []string) error

	// Commit creates a commit with the specified options.
	Commit(ctx context.Context, opts CommitOptions) error

	// CurrentBranch returns the branch HEAD points at, or "" when HEAD
	// is detached.
	CurrentBranch() (string, error)

	// Pull pulls from the remote, resolving any textual conflict in
	// favor of the incoming side.
	Pull(ctx context.Context, opts PullOptions) error

	// Fetch fetches from the named remote.
	Fetch(ctx context.Context, remote string) error

	// Push pushes using the given remote and optional refspec.
	Push(ctx context.Context, opts PushOptions) error

	// UnmergedPaths lists paths left unmerged by the last merge.
	UnmergedPaths() ([]string, error)

	// ShowStage returns the blob content of path at the given index stage.
	ShowStage(stage Stage, path string) ([]byte, error)
}

// CommitOptions configures a commit operation.
type CommitOptions struct {
	// Message is the commit message (required).
	Message string

	// All passes the include-all-tracked-modifications flag to the
	// commit call. Used in directory-target mode as a safety net against
	// races between staging and committing.
	All bool
}

// PullOptions configures a pull operation.
type PullOptions struct {
	// Remote is the remote name (required).
	Remote string

	// Branch is the branch to pull. Empty pulls the configured upstream.
	Branch string
}

// PushOptions configures a push operation.
type PushOptions struct {
	// Remote is the remote name (required).
	Remote string

	// Refspec maps the local ref to the remote ref. Empty pushes with
	// the remote's default push semantics.
	Refspec string
}
