// Package config resolves the daemon's startup configuration.
//
// Everything the loop needs — the canonical watch target, the repository
// location, the sync policy, and the commit message template — is captured
// once into an immutable Config before the loop starts. The loop never
// re-reads flags, environment, or repository branch state after that.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Placeholder is the token in the commit message template that is
// replaced with the formatted current time on each commit.
const Placeholder = "%d"

// Defaults for options the user did not set.
const (
	DefaultDebounce   = 2 * time.Second
	DefaultMessage    = "Auto-commit on change (" + Placeholder + ") by gitwatch"
	DefaultDateFormat = "+%Y-%m-%d %H:%M:%S"
)

// Options holds the raw values collected from flags, environment
// variables, and an optional config file.
type Options struct {
	// Target is the file or directory path to watch.
	Target string

	// Debounce is the quiet period after the first event before a
	// commit is considered.
	Debounce time.Duration

	// DateFormat is a strftime-style format for the commit timestamp.
	DateFormat string

	// Remote is the remote to push to. Empty disables sync entirely.
	Remote string

	// Branch is the remote branch to push to. Empty uses the remote's
	// default push semantics.
	Branch string

	// Message is the commit message template, containing at most one
	// Placeholder token.
	Message string

	// GitDir overrides the repository metadata directory.
	GitDir string

	// Pull enables pulling from the remote before each wait.
	Pull bool

	// LogFile routes daemon logging to a rotating file.
	LogFile string

	// GitBin overrides the git binary name.
	GitBin string
}

// Config is the resolved, immutable configuration for one daemon run.
type Config struct {
	// Target is the canonical absolute path being watched.
	Target string

	// TargetIsDir reports whether Target is a directory. Directory
	// targets are watched recursively and committed with "add ." plus
	// the include-all flag; file targets stage only that one path.
	TargetIsDir bool

	// WorkTree is the repository working tree (Target, or its parent
	// for file targets).
	WorkTree string

	// GitDir is the repository metadata directory.
	GitDir string

	// Debounce is the fixed quiet period after the first event.
	Debounce time.Duration

	// Remote and Branch form the sync policy. Remote == "" means sync
	// is a no-op for the whole run.
	Remote string
	Branch string

	// Pull enables the pull-before-push policy.
	Pull bool

	// Message is the commit message template.
	Message string

	// TimeLayout is the Go layout for the commit timestamp. Empty when
	// the template has no Placeholder; the literal template is then
	// reused unchanged for every commit.
	TimeLayout string

	LogFile string
	GitBin  string
}

// Resolve canonicalizes and validates opts into a Config.
//
// The target must exist; its resolution failure is a fatal startup error.
func Resolve(opts Options) (*Config, error) {
	if opts.Target == "" {
		return nil, fmt.Errorf("no target path given")
	}
	if opts.Debounce <= 0 {
		return nil, fmt.Errorf("debounce must be positive (got %v)", opts.Debounce)
	}

	target, err := canonicalize(opts.Target)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve target %s: %w", opts.Target, err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("cannot stat target %s: %w", target, err)
	}
	isDir := info.IsDir()

	workTree := target
	if !isDir {
		workTree = filepath.Dir(target)
	}

	gitDir := opts.GitDir
	if gitDir == "" {
		gitDir = filepath.Join(workTree, ".git")
	}
	gitDir, err = filepath.Abs(gitDir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve git dir %s: %w", opts.GitDir, err)
	}

	message := opts.Message
	dateFormat := opts.DateFormat
	if message == "" {
		message = DefaultMessage
		if dateFormat == "" {
			dateFormat = DefaultDateFormat
		}
	}

	// The date format is disabled entirely when it is empty or the
	// template has no placeholder: the literal template is then the
	// whole message, reused unchanged for every commit.
	layout := ""
	if dateFormat != "" && strings.Contains(message, Placeholder) {
		layout = TranslateDateFormat(dateFormat)
	}

	return &Config{
		Target:      target,
		TargetIsDir: isDir,
		WorkTree:    workTree,
		GitDir:      gitDir,
		Debounce:    opts.Debounce,
		Remote:      opts.Remote,
		Branch:      opts.Branch,
		Pull:        opts.Pull,
		Message:     message,
		TimeLayout:  layout,
		LogFile:     opts.LogFile,
		GitBin:      opts.GitBin,
	}, nil
}

// SyncActive reports whether a remote is configured.
func (c *Config) SyncActive() bool {
	return c.Remote != ""
}

// CommitMessage renders the commit message for the given time. When the
// template has no placeholder the template itself is returned unchanged.
func (c *Config) CommitMessage(now time.Time) string {
	if c.TimeLayout == "" {
		return c.Message
	}
	return strings.Replace(c.Message, Placeholder, now.Format(c.TimeLayout), 1)
}

// PushRefspec derives the refspec for the whole run from the sync policy
// and the branch state observed at startup. It is pure so the selection
// table can be tested directly:
//
//	branch == ""        -> "" (default push semantics)
//	HEAD on a branch    -> "<startupBranch>:<branch>"
//	HEAD detached       -> "<branch>"
//
// The startup branch is used even if HEAD is later moved; the policy is
// resolved once and never revisited.
func PushRefspec(branch, startupBranch string, detached bool) string {
	if branch == "" {
		return ""
	}
	if detached {
		return branch
	}
	return startupBranch + ":" + branch
}

// canonicalize resolves relative components and symlinks to an absolute
// path.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
