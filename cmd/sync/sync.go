package sync

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/launchpi/cmd/util"
	"github.com/sidkik/launchpi/pkg/errors"
	"github.com/sidkik/launchpi/pkg/fswatch"
	"github.com/sidkik/launchpi/pkg/launch"
)

// Mocked out for unit testing.
var (
	stdout         io.Writer = os.Stdout
	clock                    = clockwork.NewRealClock()
	newEnvironment           = util.NewEnvironment
	watch                    = fswatch.Watch
)

// Builds tend to write many files at once, so changes are batched until the
// classpath has been quiet for this long.
const quietPeriod = 500 * time.Millisecond

type synchronizer interface {
	Synchronize(context.Context, launch.ProgressMonitor) error
}

// New creates a new `sync` command.
func New() *cobra.Command {
	var projectDir string
	var watchChanges bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upload the classpath files that changed since the last sync",
		Long: "Upload the classpath files that changed since the last sync to " +
			"the staging directory of the remote host.\n\n" +
			"With --watch, the command keeps running and syncs whenever a " +
			"file on the classpath changes.",
		Run: func(_ *cobra.Command, _ []string) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() {
				signals := make(chan os.Signal, 1)
				signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
				<-signals
				cancel()
			}()

			if err := run(ctx, projectDir, watchChanges); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	util.AddProjectFlag(cmd, &projectDir)
	cmd.Flags().BoolVarP(&watchChanges, "watch", "w", false,
		"Keep running, and sync whenever a classpath file changes.")
	return cmd
}

func run(ctx context.Context, projectDir string, watchChanges bool) error {
	env, err := newEnvironment(projectDir)
	if err != nil {
		return err
	}

	if !watchChanges {
		err := syncOnce(ctx, env.Orchestrator)
		env.SaveState()
		return err
	}

	entries, err := env.Orchestrator.Resolver.Resolve()
	if err != nil {
		return errors.WithContext(err, "resolve classpath")
	}

	events, err := watch(entries)
	if err != nil {
		return errors.WithContext(err, "watch classpath")
	}

	return syncOnChange(ctx, env.Orchestrator, env.SaveState, events)
}

// syncOnChange syncs once, and then again after every change. Failed syncs
// are reported but don't stop the loop, since the next change may fix them.
func syncOnChange(ctx context.Context, s synchronizer, saveState func(),
	events <-chan struct{}) error {

	for {
		if err := syncOnce(ctx, s); err != nil {
			var launchErr launch.Error
			if errors.As(err, &launchErr) && launchErr.Kind == launch.Canceled {
				return nil
			}
			log.WithError(err).Error("Sync failed. Waiting for changes to retry.")
		}
		saveState()

		select {
		case <-ctx.Done():
			return nil
		case <-events:
		}

		if !waitForQuiet(ctx, events) {
			return nil
		}
	}
}

// waitForQuiet returns once no events have been received for the quiet
// period. It returns false if the context was canceled in the meantime.
func waitForQuiet(ctx context.Context, events <-chan struct{}) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-events:
		case <-clock.After(quietPeriod):
			return true
		}
	}
}

func syncOnce(ctx context.Context, s synchronizer) error {
	progress := util.NewConsoleProgress(stdout, launch.SynchronizeSteps)
	if err := s.Synchronize(ctx, progress); err != nil {
		progress.Failed("Sync failed")
		return err
	}

	progress.Succeeded("Sync complete")
	return nil
}
