package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gitwatchd/gitwatch/internal/vcs"
)

// pull merges remote changes, always preferring the incoming side for
// any line-level conflict. Local edits never win a textual conflict;
// preserveConflicts records what was lost.
func (d *Daemon) pull(ctx context.Context) error {
	if err := d.vcs.Pull(ctx, vcs.PullOptions{Remote: d.cfg.Remote, Branch: d.cfg.Branch}); err != nil {
		return fmt.Errorf("pull from %s failed: %w", d.cfg.Remote, err)
	}
	return nil
}

// sync runs the per-iteration remote synchronization: conflict-stage
// preservation when the pull policy is active and a commit was just
// made, then the push resolved at startup.
func (d *Daemon) sync(ctx context.Context, committed bool) error {
	if committed && d.cfg.Pull {
		if err := d.preserveConflicts(ctx); err != nil {
			return err
		}
	}

	if err := d.vcs.Push(ctx, vcs.PushOptions{Remote: d.cfg.Remote, Refspec: d.refspec}); err != nil {
		return fmt.Errorf("push to %s failed: %w", d.cfg.Remote, err)
	}

	return nil
}

// preserveConflicts fetches the remote and writes the three index
// stages of every unmerged path to timestamped side files named
// <path>.<timestamp>.<original|yours|theirs>, so a human can recover
// local content the prefer-theirs pull silently overwrote. All files of
// one sync step share a single timestamp.
func (d *Daemon) preserveConflicts(ctx context.Context) error {
	if err := d.vcs.Fetch(ctx, d.cfg.Remote); err != nil {
		return fmt.Errorf("fetch from %s failed: %w", d.cfg.Remote, err)
	}

	paths, err := d.vcs.UnmergedPaths()
	if err != nil {
		return fmt.Errorf("failed to list unmerged paths: %w", err)
	}
	if len(paths) == 0 {
		return nil
	}

	stamp := d.run.Now().Format(time.RFC3339)

	for _, path := range paths {
		for _, stage := range vcs.Stages {
			content, err := d.vcs.ShowStage(stage, path)
			if err != nil {
				return fmt.Errorf("failed to extract stage %v of %s: %w", stage, path, err)
			}

			sidecar := filepath.Join(d.cfg.WorkTree, fmt.Sprintf("%s.%s.%s", path, stamp, stage))
			if err := os.WriteFile(sidecar, content, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", sidecar, err)
			}
		}
		d.run.Logger.Printf("preserved conflict stages for %s", path)
	}

	return nil
}
