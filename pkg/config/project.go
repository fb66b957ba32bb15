package config

import (
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/launchpi/pkg/errors"
)

const (
	// ProjectConfigName is the name of the file that describes how a project
	// is synchronized and launched.
	ProjectConfigName = "launchpi.yaml"

	// DefaultStagingDir is the directory, relative to the remote user's home,
	// that archives are uploaded to and that programs are launched from.
	DefaultStagingDir = ".launchpi_projects"

	// DefaultJavaCommand is the VM executable used when the project doesn't
	// specify one.
	DefaultJavaCommand = "java"

	// DefaultDebugPort is the port the remote VM listens on for a debugger
	// when launched in debug mode.
	DefaultDebugPort = 8000

	// InitialProjectConfigVersion is the first version of the project
	// config. Config files that do not specify a version will default to
	// this version.
	InitialProjectConfigVersion = "v1alpha1"

	// SupportedProjectConfigVersion is the supported version of the project
	// config of the current binary.
	SupportedProjectConfigVersion = "v1alpha1"
)

// Policies for handling files whose contents can't be hashed.
const (
	// HashFailureFail aborts the synchronization.
	HashFailureFail = "fail"

	// HashFailureSkip treats the file as unchanged and leaves it out of the
	// archive.
	HashFailureSkip = "skip"
)

// Project contains the configuration for synchronizing a project to a remote
// host and launching it there.
type Project struct {
	Version string `json:"version,omitempty"`
	Name    string `json:"name"` // Required.

	// System is the remote host, and Profile names the connection profile in
	// the user config used to reach it.
	System     string `json:"system"`  // Required.
	Profile    string `json:"profile"` // Required.
	StagingDir string `json:"stagingDir,omitempty"`

	// Classpath is the ordered list of jar files and class directories that
	// need to be present on the remote host. Relative paths are resolved
	// relative to the directory containing the config.
	Classpath []string `json:"classpath"`

	JavaCommand string   `json:"javaCommand,omitempty"`
	VMArgs      []string `json:"vmArgs,omitempty"`
	MainClass   string   `json:"mainClass,omitempty"`
	ProgramArgs []string `json:"programArgs,omitempty"`
	DebugPort   int      `json:"debugPort,omitempty"`

	SkipEmptyUpload   bool   `json:"skipEmptyUpload,omitempty"`
	HashFailurePolicy string `json:"hashFailurePolicy,omitempty"`

	// StateFile is where file fingerprints are persisted between runs. If
	// it's empty, fingerprints only live as long as the process.
	StateFile string `json:"stateFile,omitempty"`

	// Only populated and consumed by launchpi. Never set by user.
	path string
}

// GetPath returns the filepath that the project was parsed from. A getter
// method is used rather than making the field public so that it can't get set
// by the yaml Unmarshalling.
func (c Project) GetPath() string {
	return c.path
}

func (c Project) getVersion() string {
	return c.Version
}

// ParseProject parses the project configuration in the directory `path`.
func ParseProject(path string) (Project, error) {
	configPath := filepath.Join(path, ProjectConfigName)
	config := Project{
		path:    configPath,
		Version: InitialProjectConfigVersion,
	}
	if err := parseConfig(configPath, &config, SupportedProjectConfigVersion); err != nil {
		return Project{}, errors.WithContext(err, "parse")
	}

	if config.Name == "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			absPath = path
			log.WithError(err).Debug("Failed to parse absolute path")
		}
		return Project{}, errors.NewFriendlyError(
			"The project defined in %q does not have a name set.\n"+
				"The name is required, and is used to name the archive "+
				"uploaded to the remote host.", filepath.Base(absPath))
	}

	required := []struct{ field, val string }{
		{"system", config.System},
		{"profile", config.Profile},
	}
	for _, r := range required {
		if r.val == "" {
			return Project{}, errors.WithContext(
				errors.MissingFieldError{Field: r.field}, "parse")
		}
	}

	switch config.HashFailurePolicy {
	case "":
		config.HashFailurePolicy = HashFailureFail
	case HashFailureFail, HashFailureSkip:
	default:
		return Project{}, errors.NewFriendlyError(
			"Unknown hashFailurePolicy %q in %q. Must be %q or %q.",
			config.HashFailurePolicy, configPath, HashFailureFail, HashFailureSkip)
	}

	if config.StagingDir == "" {
		config.StagingDir = DefaultStagingDir
	}
	if config.JavaCommand == "" {
		config.JavaCommand = DefaultJavaCommand
	}
	if config.DebugPort == 0 {
		config.DebugPort = DefaultDebugPort
	}

	var cleanedClasspath []string
	for _, entry := range config.Classpath {
		resolved, err := resolvePath(path, entry)
		if err != nil {
			return Project{}, errors.WithContext(err, "expand classpath entry")
		}
		cleanedClasspath = append(cleanedClasspath, resolved)
	}
	config.Classpath = cleanedClasspath

	if config.StateFile != "" {
		stateFile, err := resolvePath(path, config.StateFile)
		if err != nil {
			return Project{}, errors.WithContext(err, "expand state file")
		}
		config.StateFile = stateFile
	}
	return config, nil
}

// resolvePath expands ~'s, and evaluates relative paths relative to the
// project directory.
func resolvePath(projectDir, path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}

	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(projectDir, expanded)
	}
	return filepath.Clean(expanded), nil
}
