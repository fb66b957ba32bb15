// Package launch synchronizes a project's classpath to a remote host, and
// starts the program there.
package launch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/launchpi/pkg/archive"
	"github.com/sidkik/launchpi/pkg/classpath"
	"github.com/sidkik/launchpi/pkg/errors"
	"github.com/sidkik/launchpi/pkg/fingerprint"
	"github.com/sidkik/launchpi/pkg/remote"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// The number of progress units reported by a successful run.
const (
	SynchronizeSteps = 4
	LaunchSteps      = 6
)

// State is a step of a run.
type State int

const (
	Idle State = iota
	Connecting
	StagingReady
	Synchronizing
	Uploading
	CommandBuilt
	Launched

	// Aborted is the state of a run that failed.
	Aborted
)

var stateNames = map[State]string{
	Idle:          "idle",
	Connecting:    "connecting",
	StagingReady:  "preparing staging directory",
	Synchronizing: "synchronizing",
	Uploading:     "uploading",
	CommandBuilt:  "building command",
	Launched:      "launching",
	Aborted:       "aborted",
}

func (state State) String() string {
	if name, ok := stateNames[state]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(state))
}

// Orchestrator ships the changed classpath files of a project to the target
// host, and starts the program there.
type Orchestrator struct {
	// Project names the local archive.
	Project string

	Target   remote.Target
	Resolver classpath.Resolver
	Dialer   remote.Dialer

	// Store holds the fingerprints of the files already on the target. It's
	// only updated after an upload succeeds.
	Store *fingerprint.Store

	// SkipEmptyUpload skips the upload when nothing changed.
	SkipEmptyUpload bool

	// SkipUnhashable treats files that can't be fingerprinted as unchanged
	// instead of failing the run.
	SkipUnhashable bool

	Log   log.FieldLogger
	Clock clockwork.Clock
}

// Synchronize ships the files that changed since the last successful
// synchronization to the staging directory.
func (o Orchestrator) Synchronize(ctx context.Context, progress ProgressMonitor) error {
	r := o.newRun(ctx, progress)

	session, err := r.connect()
	if err != nil {
		return err
	}
	defer r.closeSession(session)

	if _, err := r.synchronize(session); err != nil {
		return err
	}

	r.logger.WithField("elapsed", r.elapsed()).Info("Synchronized classpath")
	return nil
}

// CreateRemoteProcess synchronizes the classpath, and then starts the program
// in the staging directory. The returned process owns the remote session.
func (o Orchestrator) CreateRemoteProcess(ctx context.Context, spec Spec, mode Mode,
	progress ProgressMonitor) (*remote.Process, error) {

	r := o.newRun(ctx, progress)

	// Catch configuration mistakes before touching the remote host.
	if err := spec.Validate(mode); err != nil {
		launchErr := err.(Error)
		return nil, r.fail(launchErr.Kind, launchErr.Resource, launchErr.Err)
	}

	session, err := r.connect()
	if err != nil {
		return nil, err
	}

	process, err := r.launch(session, spec, mode)
	if err != nil {
		r.closeSession(session)
		return nil, err
	}

	r.logger.WithFields(log.Fields{
		"elapsed": r.elapsed(),
		"mode":    mode,
	}).Info("Started remote process")
	return process, nil
}

// run tracks the progress of a single Synchronize or CreateRemoteProcess
// call.
type run struct {
	Orchestrator

	ctx      context.Context
	progress ProgressMonitor
	logger   log.FieldLogger
	clock    clockwork.Clock
	start    time.Time
	state    State
}

func (o Orchestrator) newRun(ctx context.Context, progress ProgressMonitor) *run {
	logger := o.Log
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger = logger.WithFields(log.Fields{
		"project": o.Project,
		"host":    o.Target.Host,
	})

	clock := o.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if progress == nil {
		progress = LogProgress{Log: logger}
	}

	return &run{
		Orchestrator: o,
		ctx:          ctx,
		progress:     progress,
		logger:       logger,
		clock:        clock,
		start:        clock.Now(),
		state:        Idle,
	}
}

func (r *run) elapsed() time.Duration {
	return r.clock.Now().Sub(r.start)
}

// enter moves the run into the next state. Cancellation is only checked
// here, so a step that has started always runs to completion.
func (r *run) enter(state State, task string) error {
	if err := r.ctx.Err(); err != nil {
		return r.fail(Canceled, "", err)
	}

	r.state = state
	r.progress.SubTask(task)
	r.logger.WithFields(log.Fields{
		"state":   state,
		"elapsed": r.elapsed(),
	}).Debug("Entered state")
	return nil
}

func (r *run) fail(kind Kind, resource string, err error) error {
	launchErr := Error{
		Kind:     kind,
		Step:     r.state,
		Resource: resource,
		Err:      err,
	}

	r.state = Aborted
	r.logger.WithError(err).WithFields(log.Fields{
		"step":     launchErr.Step,
		"resource": resource,
		"elapsed":  r.elapsed(),
	}).Debug("Run aborted")
	return launchErr
}

func (r *run) connect() (remote.Session, error) {
	if err := r.enter(Connecting, fmt.Sprintf("Connecting to %s", r.Target.Host)); err != nil {
		return nil, err
	}

	session, err := r.Dialer.Dial(r.ctx, r.Target)
	if err != nil {
		return nil, r.fail(ConnectionError, r.Target.Host, err)
	}

	r.progress.Worked(1)
	return session, nil
}

func (r *run) closeSession(session remote.Session) {
	if err := session.Close(); err != nil {
		r.logger.WithError(err).Warn("Failed to close remote session")
	}
}

// synchronize runs the steps shared by Synchronize and CreateRemoteProcess,
// and returns the staging directory.
func (r *run) synchronize(session remote.Session) (string, error) {
	stagingDir, err := r.prepareStagingDirectory(session)
	if err != nil {
		return "", err
	}

	res, err := r.buildArchive()
	if err != nil {
		return "", err
	}

	if err := r.upload(session, res, stagingDir); err != nil {
		return "", err
	}
	return stagingDir, nil
}

func (r *run) prepareStagingDirectory(session remote.Session) (string, error) {
	if err := r.enter(StagingReady, "Creating staging directory"); err != nil {
		return "", err
	}

	stagingDir, err := remote.StagingPath(session, r.Target.StagingDir)
	if err != nil {
		return "", r.fail(StagingError, r.Target.StagingDir, err)
	}

	if err := session.EnsureStagingDirectory(stagingDir); err != nil {
		return "", r.fail(StagingError, stagingDir, err)
	}

	r.progress.Worked(1)
	return stagingDir, nil
}

func (r *run) buildArchive() (archive.Result, error) {
	if err := r.enter(Synchronizing, "Building classpath archive"); err != nil {
		return archive.Result{}, err
	}

	entries, err := r.Resolver.Resolve()
	if err != nil {
		return archive.Result{}, r.fail(ArchiveError, missingPath(err), errors.WithContext(err, "resolve classpath"))
	}

	builder := archive.Builder{
		Project:        r.Project,
		Store:          r.Store,
		SkipUnhashable: r.SkipUnhashable,
		Log:            r.logger,
	}
	res, err := builder.Build(entries)
	if err != nil {
		var hashErr fingerprint.HashError
		if errors.As(err, &hashErr) {
			return archive.Result{}, r.fail(HashError, hashErr.Path, err)
		}
		return archive.Result{}, r.fail(ArchiveError, missingPath(err), err)
	}

	r.logger.WithField("files", len(res.Members)).Info("Built classpath archive")
	r.progress.Worked(1)
	return res, nil
}

func (r *run) upload(session remote.Session, res archive.Result, stagingDir string) error {
	if err := r.enter(Uploading, "Uploading classpath archive"); err != nil {
		r.removeArchive(res.Path)
		return err
	}

	if r.SkipEmptyUpload && len(res.Members) == 0 {
		r.logger.Info("No classpath files changed. Skipping upload.")
		r.removeArchive(res.Path)
		r.progress.Worked(1)
		return nil
	}

	uploadLog := r.logger.WithField("files", len(res.Members))
	if fi, err := fs.Stat(res.Path); err == nil {
		uploadLog = uploadLog.WithField("size", fi.Size())
	}
	uploadLog.Info("Uploading classpath archive")

	err := session.Upload(res.Path, stagingDir)
	r.removeArchive(res.Path)
	if err != nil {
		return r.fail(TransferError, res.Path, err)
	}

	// Only now that the files are on the remote host is it safe to skip them
	// next time.
	r.Store.Commit(res.Pending)
	r.progress.Worked(1)
	return nil
}

func (r *run) removeArchive(archivePath string) {
	if err := fs.Remove(archivePath); err != nil && !os.IsNotExist(err) {
		r.logger.WithError(err).WithField("path", archivePath).Warn(
			"Failed to remove local archive")
	}
}

func (r *run) launch(session remote.Session, spec Spec, mode Mode) (*remote.Process, error) {
	stagingDir, err := r.synchronize(session)
	if err != nil {
		return nil, err
	}

	if err := r.enter(CommandBuilt, "Building launch command"); err != nil {
		return nil, err
	}

	command, err := BuildCommand(spec, mode)
	if err != nil {
		launchErr := err.(Error)
		return nil, r.fail(launchErr.Kind, launchErr.Resource, launchErr.Err)
	}
	r.logger.WithField("command", command).Debug("Built launch command")
	r.progress.Worked(1)

	if err := r.enter(Launched, fmt.Sprintf("Starting %s", spec.MainClass)); err != nil {
		return nil, err
	}

	process, err := session.RunCommand(stagingDir, command)
	if err != nil {
		return nil, r.fail(ConnectionError, r.Target.Host, errors.WithContext(err, "start command"))
	}

	r.progress.Worked(1)
	return process, nil
}

// missingPath returns the path that caused `err` if it's because a file
// doesn't exist.
func missingPath(err error) string {
	var notFound errors.FileNotFound
	if errors.As(err, &notFound) {
		return notFound.Path
	}
	return ""
}
