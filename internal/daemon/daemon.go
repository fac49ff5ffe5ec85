// Package daemon implements the watch–debounce–commit–sync loop.
//
// The loop is strictly sequential:
//  1. optionally pull from the remote (pull-before-push policy)
//  2. block until the watch source reports filesystem activity
//  3. sleep a fixed quiet period so bursts coalesce into one change
//  4. query repository status; commit if anything is dirty
//  5. if a remote is configured, sync (conflict preservation + push)
//
// There is no concurrency in the core and no retry logic: commit and
// sync failures propagate out of Run so a supervisor can restart the
// process, rather than masking data-integrity problems. A hung
// subprocess stalls the loop indefinitely; this is an accepted
// limitation. The repository is assumed to be exclusively owned by the
// daemon for the duration of the run.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gitwatchd/gitwatch/internal/config"
	"github.com/gitwatchd/gitwatch/internal/vcs"
	"github.com/gitwatchd/gitwatch/internal/watcher"
)

// State identifies the loop controller's position in one iteration.
type State int

const (
	// StateWaiting blocks on the watch source (and runs the optional
	// pre-wait pull).
	StateWaiting State = iota

	// StateSettling sleeps out the debounce quiet period.
	StateSettling

	// StateChecking queries repository status.
	StateChecking

	// StateCommitting stages and commits the detected change.
	StateCommitting

	// StateSyncing preserves conflict stages and pushes.
	StateSyncing
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateSettling:
		return "settling"
	case StateChecking:
		return "checking"
	case StateCommitting:
		return "committing"
	case StateSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// RunConfig holds the loop's runtime dependencies. The clock is
// injectable so tests can drive the debounce gate without real sleeps.
type RunConfig struct {
	// Logger for daemon activity
	Logger *log.Logger

	// Sleep suspends the loop for the debounce quiet period
	Sleep func(time.Duration)

	// Now supplies the commit and side-file timestamps
	Now func() time.Time
}

// DefaultRunConfig returns sensible defaults.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		Logger: log.New(os.Stderr, "[gitwatch] ", log.LstdFlags),
		Sleep:  time.Sleep,
		Now:    time.Now,
	}
}

// Daemon owns the control loop. All configuration is resolved before
// Run starts and never re-evaluated, including the push refspec.
type Daemon struct {
	cfg   *config.Config
	vcs   vcs.VCS
	watch watcher.WatchSource
	run   *RunConfig

	// refspec is fixed for the whole run, derived from the branch HEAD
	// pointed to when the daemon started. Switching branches mid-run
	// does not change what gets pushed; see PushRefspec.
	refspec string

	state State
}

// New creates a Daemon and resolves the sync policy against the
// repository's branch state at this moment.
func New(cfg *config.Config, v vcs.VCS, ws watcher.WatchSource, run *RunConfig) (*Daemon, error) {
	if run == nil {
		run = DefaultRunConfig()
	}

	d := &Daemon{
		cfg:   cfg,
		vcs:   v,
		watch: ws,
		run:   run,
	}

	if cfg.SyncActive() && cfg.Branch != "" {
		startupBranch, err := v.CurrentBranch()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve startup branch: %w", err)
		}
		detached := startupBranch == ""
		d.refspec = config.PushRefspec(cfg.Branch, startupBranch, detached)
	}

	return d, nil
}

// State returns the loop's current state.
func (d *Daemon) State() State {
	return d.state
}

// Refspec returns the push refspec resolved at startup, or "" when the
// default push semantics apply.
func (d *Daemon) Refspec() string {
	return d.refspec
}

// Run drives the control loop until ctx is cancelled or a fatal error
// occurs. Watch, commit, and sync failures all terminate the loop.
func (d *Daemon) Run(ctx context.Context) error {
	for {
		d.state = StateWaiting

		if d.cfg.SyncActive() && d.cfg.Pull {
			if err := d.pull(ctx); err != nil {
				return err
			}
		}

		if err := d.watch.WaitForChange(ctx); err != nil {
			return err
		}

		// Fixed-delay debounce: the timer is not reset by further
		// events. A simple quiet period after the first event batches
		// an editor's multi-write save sequence; events that arrive
		// during the sleep are absorbed, not re-armed.
		d.state = StateSettling
		d.run.Sleep(d.cfg.Debounce)

		// A watch event does not imply a substantive change (touch
		// with no content change, event on an ignored path), so check
		// before committing to avoid empty commits.
		d.state = StateChecking
		dirty, err := d.vcs.HasChanges()
		if err != nil {
			return fmt.Errorf("status check failed: %w", err)
		}

		committed := false
		if dirty {
			d.state = StateCommitting
			if err := d.commit(ctx); err != nil {
				return err
			}
			committed = true
		}

		if d.cfg.SyncActive() {
			d.state = StateSyncing
			if err := d.sync(ctx, committed); err != nil {
				return err
			}
		}
	}
}

// commit stages the relevant paths and creates one commit with the
// message derived from the template.
func (d *Daemon) commit(ctx context.Context) error {
	msg := d.cfg.CommitMessage(d.run.Now())

	if d.cfg.TargetIsDir {
		if err := d.vcs.Add([]string{"."}); err != nil {
			return err
		}
		// -a as a safety net against modifications racing in between
		// staging and committing.
		if err := d.vcs.Commit(ctx, vcs.CommitOptions{Message: msg, All: true}); err != nil {
			return err
		}
	} else {
		if err := d.vcs.Add([]string{d.cfg.Target}); err != nil {
			return err
		}
		if err := d.vcs.Commit(ctx, vcs.CommitOptions{Message: msg}); err != nil {
			return err
		}
	}

	d.run.Logger.Printf("committed: %s", msg)
	return nil
}
