package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"link-crawler/pkg/config"
	applog "link-crawler/pkg/log"
)

// shutdownGrace is how long a signalled process may take to wind down before it is killed.
const shutdownGrace = 30 * time.Second

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link-crawler",
		Short: "Concurrent recursive web crawler",
		Long: `link-crawler downloads every page reachable from a seed URL within a hop limit.

Downloads, link extractions and requests to any single host are each capped, every
URL is downloaded at most once per process, and the result lists the URLs that were
downloaded and the URLs that failed, with the error for each.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to YAML config file")
	cmd.PersistentFlags().String("loglevel", "", "Log level (debug, info, warn, error); overrides log_level")

	cmd.AddCommand(
		NewCrawlCmd(),
		NewValidateCmd(),
		NewListTargetsCmd(),
		NewMcpCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// exitError carries a process exit code out of a RunE. The command has already reported
// the failure, so Execute prints nothing more.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// exitWith turns a do* exit code into a RunE result.
func exitWith(code int) error {
	if code == 0 {
		return nil
	}
	return exitError{code: code}
}

// loadConfig reads a config file, or returns an empty config when path is empty.
// The result is not validated.
func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		return &config.AppConfig{}, nil
	}
	return config.Load(path)
}

// setupLogger builds the process logger from the config, with levelOverride taking
// precedence over log_level when set.
func setupLogger(appCfg *config.AppConfig, levelOverride string, out io.Writer) (*logrus.Logger, error) {
	level := appCfg.LogLevel
	if levelOverride != "" {
		level = levelOverride
	}
	return applog.NewLogger(level, appCfg.LogFormat, out)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM. A second signal, or a
// shutdown that outlasts shutdownGrace, forces the process to exit.
func signalContext(parent context.Context, log *logrus.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	stopped := make(chan struct{})
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("PANIC in signal handler: %v", r)
			}
		}()
		var sig os.Signal
		select {
		case sig = <-sigChan:
		case <-stopped:
			return
		}
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(shutdownGrace):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		case <-stopped:
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		close(stopped)
		cancel()
	}
}
