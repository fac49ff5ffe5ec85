package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gitwatchd/gitwatch/internal/config"
	"github.com/gitwatchd/gitwatch/internal/daemon"
	"github.com/gitwatchd/gitwatch/internal/ui"
	"github.com/gitwatchd/gitwatch/internal/vcs/git"
	"github.com/gitwatchd/gitwatch/internal/watcher"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "gitwatch [flags] <path>",
	Short:   "Watch a file or directory and auto-commit every change",
	Version: version,
	Long: `gitwatch watches a file or directory and commits every change into
its git repository, with a message derived from a template. When a
remote is configured it pushes after each cycle, and can pull before
waiting for changes; conflicting local edits lost to the pull's
prefer-theirs policy are preserved as timestamped side files.

The loop runs until interrupted. Commit, pull, and push failures are
fatal: run gitwatch under a process supervisor if you need restarts.

Settings can also come from GITWATCH_* environment variables or a YAML
config file; GITWATCH_GIT_BIN overrides the git binary.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	flags := rootCmd.Flags()
	flags.DurationP("debounce", "s", config.DefaultDebounce, "quiet period after the first event before committing")
	flags.StringP("date-format", "d", "", "strftime-style format for the commit timestamp")
	flags.StringP("remote", "r", "", "remote to push to after each cycle")
	flags.StringP("branch", "b", "", "remote branch to push to")
	flags.StringP("message", "m", "", "commit message template (\"%d\" is replaced by the formatted time)")
	flags.StringP("git-dir", "g", "", "repository metadata directory (default <work-tree>/.git)")
	flags.BoolP("pull", "u", false, "pull from the remote before waiting for changes")
	flags.StringP("log-file", "l", "", "append daemon output to a rotating log file")
	flags.String("config", "", "config file (default $HOME/.gitwatch.yaml)")

	viper.SetEnvPrefix("GITWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	cobra.CheckErr(viper.BindPFlags(flags))
	cobra.CheckErr(viper.BindEnv("git-bin"))
}

// loadConfigFile reads the optional config file into viper. A missing
// default file is fine; an explicitly named one must exist.
func loadConfigFile() error {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		return viper.ReadInConfig()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	viper.SetConfigName(".gitwatch")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(home)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if err := loadConfigFile(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := config.Resolve(config.Options{
		Target:     args[0],
		Debounce:   viper.GetDuration("debounce"),
		DateFormat: viper.GetString("date-format"),
		Remote:     viper.GetString("remote"),
		Branch:     viper.GetString("branch"),
		Message:    viper.GetString("message"),
		GitDir:     viper.GetString("git-dir"),
		Pull:       viper.GetBool("pull"),
		LogFile:    viper.GetString("log-file"),
		GitBin:     viper.GetString("git-bin"),
	})
	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		}
	}
	logger := log.New(out, "[gitwatch] ", log.LstdFlags)

	v, err := git.New(cfg.WorkTree, cfg.GitDir, cfg.GitBin)
	if err != nil {
		return err
	}

	ws, err := watcher.New(cfg.Target, cfg.TargetIsDir, cfg.GitDir)
	if err != nil {
		return err
	}
	defer ws.Close()

	run := daemon.DefaultRunConfig()
	run.Logger = logger

	d, err := daemon.New(cfg, v, ws, run)
	if err != nil {
		return err
	}

	printBanner(cfg, d)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Printf("%s gitwatch stopped\n", ui.RenderPass("✓"))
			return nil
		}
		return err
	}
	return nil
}

// printBanner summarizes the resolved configuration at startup.
func printBanner(cfg *config.Config, d *daemon.Daemon) {
	mode := "directory"
	if !cfg.TargetIsDir {
		mode = "file"
	}

	fmt.Printf("%s gitwatch %s\n", ui.RenderAccent("▶"), version)
	fmt.Printf("  target:   %s %s\n", cfg.Target, ui.RenderDim("("+mode+")"))
	fmt.Printf("  git dir:  %s\n", cfg.GitDir)
	fmt.Printf("  debounce: %v\n", cfg.Debounce)

	if cfg.SyncActive() {
		push := cfg.Remote
		if d.Refspec() != "" {
			push += " " + d.Refspec()
		}
		fmt.Printf("  push:     %s\n", push)
		if cfg.Pull {
			fmt.Printf("  pull:     %s %s\n", cfg.Remote, ui.RenderDim("(prefer theirs)"))
		}
	} else {
		fmt.Printf("  sync:     %s\n", ui.RenderDim("disabled"))
	}

	fmt.Printf("%s press Ctrl+C to stop\n", ui.RenderWarn("●"))
}
