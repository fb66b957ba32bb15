// Package remote runs commands and uploads files on a remote host.
package remote

//go:generate mockery -name Session
//go:generate mockery -name Dialer

import (
	"context"
	"io"
	"path"

	"github.com/sidkik/launchpi/pkg/config"
)

// Target identifies the remote host, how to authenticate to it, and the
// directory archives are staged in.
type Target struct {
	Host    string
	Profile config.Profile

	// StagingDir is the staging directory. Relative paths are relative to
	// the remote user's home directory.
	StagingDir string
}

// Dialer opens sessions to remote hosts.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Session, error)
}

// Session is an open connection to a remote host.
type Session interface {
	// Home returns the absolute path of the remote user's home directory.
	Home() (string, error)

	// EnsureStagingDirectory creates `dir` if it doesn't exist. An existing
	// directory is left untouched.
	EnsureStagingDirectory(dir string) error

	// Upload copies the local file into `remoteDir`, keeping its base name.
	Upload(localPath, remoteDir string) error

	// RunCommand starts `commandLine` in `workingDir` and returns without
	// waiting for it to exit.
	RunCommand(workingDir, commandLine string) (*Process, error)

	Close() error
}

// Terminal is the local terminal an interactive shell is attached to.
type Terminal struct {
	Stdin          io.Reader
	Stdout, Stderr io.Writer

	// Type is the value of TERM, such as "xterm".
	Type          string
	Width, Height int
}

// Shell is implemented by sessions that can open an interactive shell.
type Shell interface {
	// Shell runs the user's login shell in `workingDir` until it exits.
	Shell(workingDir string, term Terminal) error
}

// StagingPath returns the absolute path of the staging directory `dir`.
// Relative directories are resolved against the remote home directory.
func StagingPath(session Session, dir string) (string, error) {
	if path.IsAbs(dir) {
		return dir, nil
	}

	home, err := session.Home()
	if err != nil {
		return "", err
	}
	return path.Join(home, dir), nil
}
