package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/launchpi/cmd/util"
	"github.com/sidkik/launchpi/pkg/errors"
	"github.com/sidkik/launchpi/pkg/launch"
	"github.com/sidkik/launchpi/pkg/remote"
)

// Mocked out for unit testing.
var (
	stdin          io.Reader = os.Stdin
	stdout         io.Writer = os.Stdout
	stderr         io.Writer = os.Stderr
	newEnvironment           = util.NewEnvironment
)

type processCreator interface {
	CreateRemoteProcess(context.Context, launch.Spec, launch.Mode,
		launch.ProgressMonitor) (*remote.Process, error)
}

// process is the subset of remote.Process used to follow a running program.
type process interface {
	Wait() error
	Terminate() error
	Close() error
}

// NewRun creates a new `run` command.
func NewRun() *cobra.Command {
	return newCommand(launch.Run, "run",
		"Sync the classpath and run the program on the remote host")
}

// NewDebug creates a new `debug` command.
func NewDebug() *cobra.Command {
	return newCommand(launch.Debug, "debug",
		"Sync the classpath and start the program suspended, waiting for a debugger")
}

func newCommand(mode launch.Mode, use, short string) *cobra.Command {
	var projectDir string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(_ *cobra.Command, _ []string) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() {
				signals := make(chan os.Signal, 1)
				signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
				<-signals
				cancel()
			}()

			if err := run(ctx, projectDir, mode); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	util.AddProjectFlag(cmd, &projectDir)
	return cmd
}

func run(ctx context.Context, projectDir string, mode launch.Mode) error {
	env, err := newEnvironment(projectDir)
	if err != nil {
		return err
	}

	spec := env.Spec()
	proc, err := start(ctx, env.Orchestrator, spec, mode)

	// Files that made it to the remote host don't need to be uploaded again,
	// even if the program failed to start.
	env.SaveState()
	if err != nil {
		return err
	}

	if mode == launch.Debug {
		fmt.Fprintf(stdout, "Waiting for a debugger to attach to %s:%d\n",
			env.Project.System, spec.DebugPort)
	}

	return follow(ctx, proc, attach(proc))
}

// attach connects the local terminal to the remote program. The returned
// WaitGroup is done once all of the program's output has been copied.
func attach(proc *remote.Process) *sync.WaitGroup {
	if proc.Stdin != nil {
		go forwardInput(proc.Stdin, stdin)
	}

	var outputWaitGroup sync.WaitGroup
	outputWaitGroup.Add(2)
	go func() {
		defer outputWaitGroup.Done()
		copyOutput(stdout, proc.Stdout)
	}()
	go func() {
		defer outputWaitGroup.Done()
		copyOutput(stderr, proc.Stderr)
	}()
	return &outputWaitGroup
}

func start(ctx context.Context, creator processCreator, spec launch.Spec,
	mode launch.Mode) (*remote.Process, error) {

	progress := util.NewConsoleProgress(stdout, launch.LaunchSteps)
	proc, err := creator.CreateRemoteProcess(ctx, spec, mode, progress)
	if err != nil {
		progress.Failed(fmt.Sprintf("Failed to %s %s", mode, spec.MainClass))
		return nil, err
	}

	progress.Succeeded(fmt.Sprintf("Started %s", spec.MainClass))
	return proc, nil
}

// follow waits for the program to exit, and for `output` to be flushed. If
// the context is canceled first, the program is terminated.
func follow(ctx context.Context, proc process, output *sync.WaitGroup) error {
	exited := make(chan error, 1)
	go func() {
		exited <- proc.Wait()
	}()

	select {
	case err := <-exited:
		// The exit status can arrive before the channel is drained.
		output.Wait()
		if closeErr := proc.Close(); closeErr != nil {
			log.WithError(closeErr).Debug("Failed to close remote process")
		}
		if err != nil {
			return errors.WithContext(err, "remote program")
		}
		return nil
	case <-ctx.Done():
		log.Info("Stopping remote program")
		if err := proc.Terminate(); err != nil {
			return errors.WithContext(err, "terminate")
		}
		return nil
	}
}

func copyOutput(dst io.Writer, src io.Reader) {
	if src == nil {
		return
	}
	if _, err := io.Copy(dst, src); err != nil {
		log.WithError(err).Debug("Stopped copying remote output")
	}
}

// forwardInput copies local input to the remote program, and hangs up its
// stdin once the input ends.
func forwardInput(dst io.WriteCloser, src io.Reader) {
	if _, err := io.Copy(dst, src); err != nil {
		log.WithError(err).Debug("Stopped forwarding input")
	}
	if err := dst.Close(); err != nil {
		log.WithError(err).Debug("Failed to close remote stdin")
	}
}
