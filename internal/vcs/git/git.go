// Package git provides a Git implementation of the VCS interface.
//
// Every operation shells out to the git binary, scoped to an explicit
// working tree and metadata directory so the daemon can watch a target
// whose .git directory lives elsewhere.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/gitwatchd/gitwatch/internal/vcs"
)

// DefaultBinary is the git binary used when no override is configured.
const DefaultBinary = "git"

// Git implements the VCS interface by invoking the git binary.
type Git struct {
	// workTree is the working tree path
	workTree string

	// gitDir is the repository metadata directory path
	gitDir string

	// bin is the git binary name or path
	bin string
}

// New creates a Git instance for the given working tree and metadata
// directory. An empty bin falls back to DefaultBinary.
//
// The metadata directory must exist and be a directory; the binary must
// be resolvable in PATH. Both are checked here so misconfiguration fails
// before the watch loop starts.
func New(workTree, gitDir, bin string) (*Git, error) {
	if bin == "" {
		bin = DefaultBinary
	}

	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", vcs.ErrBinaryNotAvailable, bin, err)
	}

	info, err := os.Stat(gitDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", vcs.ErrNotARepository, gitDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", vcs.ErrNotARepository, gitDir)
	}

	return &Git{
		workTree: workTree,
		gitDir:   gitDir,
		bin:      bin,
	}, nil
}

// Version returns the git version string.
func (g *Git) Version() (string, error) {
	cmd := exec.Command(g.bin, "--version")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get git version: %w", err)
	}

	// Output format: "git version 2.39.0"
	version := strings.TrimSpace(string(output))
	version = strings.TrimPrefix(version, "git version ")

	return version, nil
}

// command builds a git invocation scoped to the working tree and
// metadata directory.
func (g *Git) command(ctx context.Context, args ...string) *exec.Cmd {
	scoped := append([]string{"--git-dir", g.gitDir, "--work-tree", g.workTree}, args...)

	var cmd *exec.Cmd
	if ctx != nil {
		cmd = exec.CommandContext(ctx, g.bin, scoped...)
	} else {
		cmd = exec.Command(g.bin, scoped...)
	}
	cmd.Dir = g.workTree

	return cmd
}

// ChangedPaths returns the paths reported by a short status query.
func (g *Git) ChangedPaths() ([]string, error) {
	output, err := g.command(nil, "status", "--porcelain").Output()
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if len(line) < 4 {
			continue
		}
		// Porcelain format: XY <path>
		paths = append(paths, strings.TrimSpace(line[3:]))
	}

	return paths, nil
}

// HasChanges returns true if the status query reports at least one entry.
func (g *Git) HasChanges() (bool, error) {
	paths, err := g.ChangedPaths()
	if err != nil {
		return false, err
	}
	return len(paths) > 0, nil
}

// Add stages the given paths for commit.
func (g *Git) Add(paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	args := append([]string{"add", "--"}, paths...)
	output, err := g.command(nil, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("git add failed: %w\n%s", err, string(output))
	}

	return nil
}

// Commit creates a commit with the specified options.
func (g *Git) Commit(ctx context.Context, opts vcs.CommitOptions) error {
	if opts.Message == "" {
		return fmt.Errorf("commit message is required")
	}

	args := []string{"commit"}
	if opts.All {
		args = append(args, "-a")
	}
	args = append(args, "-m", opts.Message)

	output, err := g.command(ctx, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("git commit failed: %w\n%s", err, string(output))
	}

	return nil
}

// CurrentBranch returns the branch HEAD points at, or "" when detached.
func (g *Git) CurrentBranch() (string, error) {
	output, err := g.command(nil, "symbolic-ref", "--short", "-q", "HEAD").Output()
	if err != nil {
		// symbolic-ref exits non-zero when HEAD is detached.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", nil
		}
		return "", fmt.Errorf("git symbolic-ref failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// Pull pulls from the remote, preferring the incoming side for any
// line-level conflict. Local edits never win a textual conflict; the
// daemon preserves what was lost as side files instead.
func (g *Git) Pull(ctx context.Context, opts vcs.PullOptions) error {
	args := []string{"pull", "-X", "theirs", opts.Remote}
	if opts.Branch != "" {
		args = append(args, opts.Branch)
	}

	output, err := g.command(ctx, args...).CombinedOutput()
	if err != nil {
		outputStr := string(output)
		if strings.Contains(outputStr, "CONFLICT") {
			return fmt.Errorf("%w: %s", vcs.ErrConflicts, outputStr)
		}
		return fmt.Errorf("git pull failed: %w\n%s", err, outputStr)
	}

	return nil
}

// Fetch fetches from the named remote.
func (g *Git) Fetch(ctx context.Context, remote string) error {
	output, err := g.command(ctx, "fetch", remote).CombinedOutput()
	if err != nil {
		return fmt.Errorf("git fetch failed: %w\n%s", err, string(output))
	}

	return nil
}

// Push pushes using the given remote and optional refspec.
func (g *Git) Push(ctx context.Context, opts vcs.PushOptions) error {
	args := []string{"push", opts.Remote}
	if opts.Refspec != "" {
		args = append(args, opts.Refspec)
	}

	output, err := g.command(ctx, args...).CombinedOutput()
	if err != nil {
		outputStr := string(output)
		if strings.Contains(outputStr, "rejected") || strings.Contains(outputStr, "non-fast-forward") {
			return fmt.Errorf("%w: %s", vcs.ErrPushRejected, outputStr)
		}
		return fmt.Errorf("git push failed: %w\n%s", err, outputStr)
	}

	return nil
}

// UnmergedPaths lists paths left unmerged by the last merge.
func (g *Git) UnmergedPaths() ([]string, error) {
	output, err := g.command(nil, "diff", "--name-only", "--diff-filter=U").Output()
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}

	return paths, nil
}

// ShowStage returns the blob content of path at the given index stage.
func (g *Git) ShowStage(stage vcs.Stage, path string) ([]byte, error) {
	output, err := g.command(nil, "show", fmt.Sprintf(":%d:%s", int(stage), path)).Output()
	if err != nil {
		return nil, fmt.Errorf("git show :%d:%s failed: %w", int(stage), path, err)
	}

	return output, nil
}
