package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/launchpi/pkg/classpath"
	"github.com/sidkik/launchpi/pkg/config"
	"github.com/sidkik/launchpi/pkg/errors"
	"github.com/sidkik/launchpi/pkg/fingerprint"
	"github.com/sidkik/launchpi/pkg/launch"
	"github.com/sidkik/launchpi/pkg/remote"
)

// Mocked out for unit testing.
var (
	stderr       io.Writer = os.Stderr
	exit                   = os.Exit
	parseProject           = config.ParseProject
	parseUser              = config.ParseUser
	loadStore              = fingerprint.LoadStore
	getwd                  = os.Getwd
)

// HandleFatalError handles errors that are severe enough to terminate the
// program. Friendly errors are printed as-is, everything else is logged with
// its full context.
func HandleFatalError(err error) {
	if msg, ok := errors.GetFriendlyMessage(err); ok {
		fmt.Fprintln(stderr, msg)
	} else {
		log.Error(err)
	}
	exit(1)
}

// HandlePanic logs the stack trace of a panic before exiting.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Errorf("Panic: %v", r)
		exit(1)
	}
}

// AddProjectFlag adds the flag for selecting the project directory.
func AddProjectFlag(cmd *cobra.Command, dir *string) {
	cmd.Flags().StringVarP(dir, "project", "p", "",
		"The directory containing "+config.ProjectConfigName+
			". Defaults to the current directory.")
}

// Environment contains everything needed to synchronize and launch a project.
type Environment struct {
	Project      config.Project
	Store        *fingerprint.Store
	Orchestrator launch.Orchestrator
}

// NewEnvironment reads the project in `dir`, and the connection profile it
// references.
func NewEnvironment(dir string) (Environment, error) {
	if dir == "" {
		wd, err := getwd()
		if err != nil {
			return Environment{}, errors.WithContext(err, "get working directory")
		}
		dir = wd
	}

	project, err := parseProject(dir)
	if err != nil {
		return Environment{}, errors.WithContext(err, "read project config")
	}

	userConfig, err := parseUser()
	if err != nil {
		return Environment{}, errors.WithContext(err, "read user config")
	}

	profile, err := userConfig.GetProfile(project.Profile)
	if err != nil {
		return Environment{}, err
	}

	store := fingerprint.NewStore()
	if project.StateFile != "" {
		store, err = loadStore(project.StateFile)
		if err != nil {
			return Environment{}, errors.WithContext(err, "load fingerprints")
		}
	}

	return Environment{
		Project: project,
		Store:   store,
		Orchestrator: launch.Orchestrator{
			Project: project.Name,
			Target: remote.Target{
				Host:       project.System,
				Profile:    profile,
				StagingDir: project.StagingDir,
			},
			Resolver:        classpath.StaticResolver{Paths: project.Classpath},
			Dialer:          remote.SSHDialer{},
			Store:           store,
			SkipEmptyUpload: project.SkipEmptyUpload,
			SkipUnhashable:  project.HashFailurePolicy == config.HashFailureSkip,
			Log:             log.StandardLogger(),
		},
	}, nil
}

// Spec returns the launch settings of the project.
func (env Environment) Spec() launch.Spec {
	return launch.Spec{
		JavaCommand: env.Project.JavaCommand,
		VMArgs:      env.Project.VMArgs,
		DebugPort:   env.Project.DebugPort,
		MainClass:   env.Project.MainClass,
		ProgramArgs: env.Project.ProgramArgs,
	}
}

// SaveState persists the fingerprints if the project has a state file.
func (env Environment) SaveState() {
	if env.Project.StateFile == "" {
		return
	}

	if err := env.Store.Save(env.Project.StateFile); err != nil {
		log.WithError(err).WithField("path", env.Project.StateFile).Warn(
			"Failed to save fingerprints. The next run will upload all files.")
	}
}
