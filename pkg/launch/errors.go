package launch

import (
	"fmt"
)

// Kind classifies the failure of a run.
type Kind int

const (
	// ConnectionError means the remote host couldn't be reached or
	// authenticated to.
	ConnectionError Kind = iota

	// StagingError means the remote staging directory couldn't be created
	// or accessed.
	StagingError

	// HashError means a classpath file couldn't be read or fingerprinted.
	HashError

	// ArchiveError means the classpath couldn't be resolved, or the archive
	// couldn't be written.
	ArchiveError

	// TransferError means the archive upload failed.
	TransferError

	// CommandError means the launch configuration is malformed.
	CommandError

	// Canceled means the run was canceled by the caller.
	Canceled
)

var kindNames = map[Kind]string{
	ConnectionError: "connection error",
	StagingError:    "staging error",
	HashError:       "hash error",
	ArchiveError:    "archive error",
	TransferError:   "transfer error",
	CommandError:    "command error",
	Canceled:        "canceled",
}

func (kind Kind) String() string {
	if name, ok := kindNames[kind]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(kind))
}

// Error is the terminal error of a run. It records the state the run was in
// when it failed, and the file, host, or config field responsible.
type Error struct {
	Kind     Kind
	Step     State
	Resource string
	Err      error
}

func (err Error) Error() string {
	msg := fmt.Sprintf("%s while %s", err.Kind, err.Step)
	if err.Resource != "" {
		msg += fmt.Sprintf(" (%s)", err.Resource)
	}
	return fmt.Sprintf("%s: %s", msg, err.Err)
}

func (err Error) Unwrap() error {
	return err.Err
}
