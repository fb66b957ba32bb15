package ssh

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/sidkik/launchpi/cmd/util"
	"github.com/sidkik/launchpi/pkg/errors"
	"github.com/sidkik/launchpi/pkg/remote"
)

// Mocked out for unit testing.
var newEnvironment = util.NewEnvironment

const defaultTermType = "xterm"

// New creates a new `ssh` command.
func New() *cobra.Command {
	var projectDir string
	cmd := &cobra.Command{
		Use:   "ssh",
		Short: "Get a shell in the project's staging directory on the remote host",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(context.Background(), projectDir); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	util.AddProjectFlag(cmd, &projectDir)
	return cmd
}

func run(ctx context.Context, projectDir string) error {
	env, err := newEnvironment(projectDir)
	if err != nil {
		return err
	}

	target := env.Orchestrator.Target
	session, err := env.Orchestrator.Dialer.Dial(ctx, target)
	if err != nil {
		return errors.WithContext(err, "connect")
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.WithError(err).Debug("Failed to close session")
		}
	}()

	stagingDir, err := remote.StagingPath(session, target.StagingDir)
	if err != nil {
		return errors.WithContext(err, "get staging directory")
	}

	if err := session.EnsureStagingDirectory(stagingDir); err != nil {
		return errors.WithContext(err, "create staging directory")
	}

	shell, ok := session.(remote.Shell)
	if !ok {
		return errors.New("interactive shells aren't supported for %s", target.Host)
	}

	fd := int(os.Stdin.Fd())
	term := remote.Terminal{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Type:   termType(),
	}
	if width, height, err := terminal.GetSize(fd); err == nil {
		term.Width, term.Height = width, height
	} else {
		log.WithError(err).Debug("Failed to get terminal size")
		term.Width, term.Height = 80, 24
	}

	// Put the terminal into raw mode to prevent it echoing characters twice.
	oldState, err := terminal.MakeRaw(fd)
	if err != nil {
		return errors.WithContext(err, "set terminal mode")
	}

	defer func() {
		_ = terminal.Restore(fd, oldState)
	}()

	return shell.Shell(stagingDir, term)
}

func termType() string {
	if term := os.Getenv("TERM"); term != "" {
		return term
	}
	return defaultTermType
}
