package config

import (
	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/launchpi/pkg/errors"
)

const (
	// UserConfigPath is the default path to the launchpi user config.
	UserConfigPath = "~/.launchpi.yaml"

	// DefaultKnownHostsPath is used to verify host keys when a profile
	// doesn't name its own known_hosts file.
	DefaultKnownHostsPath = "~/.ssh/known_hosts"

	// DefaultSSHPort is the port used when a profile doesn't set one.
	DefaultSSHPort = 22

	// InitialUserConfigVersion is the first version of the launchpi user
	// config. Config files that do not specify a version will default to
	// this version.
	InitialUserConfigVersion = "v1alpha1"

	// SupportedUserConfigVersion is the supported version of the launchpi
	// user config of the current binary.
	SupportedUserConfigVersion = "v1alpha1"
)

// User contains the connection profiles of the user. Profiles are kept out of
// the project config so that credentials don't get committed with the code.
type User struct {
	Version  string    `json:"version,omitempty"`
	Profiles []Profile `json:"profiles,omitempty"`
}

// Profile describes how to authenticate to a remote host.
type Profile struct {
	Name string `json:"name"`
	User string `json:"user"`
	Port int    `json:"port,omitempty"`

	// IdentityFile is the path to a PEM encoded private key.
	IdentityFile string `json:"identityFile,omitempty"`
	Password     string `json:"password,omitempty"`

	KnownHostsFile        string `json:"knownHostsFile,omitempty"`
	InsecureIgnoreHostKey bool   `json:"insecureIgnoreHostKey,omitempty"`
}

func (u User) getVersion() string {
	return u.Version
}

// GetProfile returns the profile with the given name.
func (u User) GetProfile(name string) (Profile, error) {
	for _, p := range u.Profiles {
		if p.Name == name {
			return p, nil
		}
	}

	path, _ := GetUserConfigPath()
	return Profile{}, errors.NewFriendlyError("The connection profile %q "+
		"isn't defined in %q.\nRun `launchpi config --profile %s` to create it.",
		name, path, name)
}

// SetProfile adds `profile` to the config, replacing any existing profile
// with the same name.
func (u *User) SetProfile(profile Profile) {
	for i, p := range u.Profiles {
		if p.Name == profile.Name {
			u.Profiles[i] = profile
			return
		}
	}
	u.Profiles = append(u.Profiles, profile)
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ParseUser attempts to parse the User stored in the default path. Unset
// profile settings are filled in with their defaults, and paths are expanded.
func ParseUser() (User, error) {
	config, err := readUser()
	if err != nil {
		return User{}, err
	}

	for i, p := range config.Profiles {
		if p.Port == 0 {
			p.Port = DefaultSSHPort
		}

		if p.KnownHostsFile == "" {
			p.KnownHostsFile = DefaultKnownHostsPath
		}

		if p.IdentityFile, err = homedir.Expand(p.IdentityFile); err != nil {
			return User{}, errors.WithContext(err, "expand identity file path")
		}

		if p.KnownHostsFile, err = homedir.Expand(p.KnownHostsFile); err != nil {
			return User{}, errors.WithContext(err, "expand known hosts path")
		}
		config.Profiles[i] = p
	}
	return config, nil
}

// readUser parses the User as written on disk.
func readUser() (User, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return User{}, errors.WithContext(err, "expand config path")
	}

	config := User{Version: InitialUserConfigVersion}
	if err := parseConfig(path, &config, SupportedUserConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return User{}, errors.NewFriendlyError("The launchpi user config "+
				"file doesn't exist at %q. Please run `launchpi config` "+
				"to create a connection profile.", path)
		}
		return User{}, errors.WithContext(err, "parse")
	}

	for _, p := range config.Profiles {
		if p.Name == "" {
			return User{}, errors.WithContext(
				errors.MissingFieldError{Field: "profiles.name"}, "parse")
		}
	}
	return config, nil
}

// ParseUserOrEmpty returns the User as written on disk, without defaults, so
// that it can be modified and written back. An empty config is returned if
// the file doesn't exist yet.
func ParseUserOrEmpty() (User, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return User{}, errors.WithContext(err, "expand config path")
	}

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return User{}, errors.WithContext(err, "stat")
	}

	if !exists {
		return User{Version: SupportedUserConfigVersion}, nil
	}
	return readUser()
}

// WriteUser writes the given user config to disk.
func WriteUser(cfg User) error {
	cfg.Version = SupportedUserConfigVersion
	path, err := GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	// The file may contain passwords.
	if err := afero.WriteFile(fs, path, yamlBytes, 0600); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// GetUserConfigPath gets the path to the user's global launchpi
// configuration. This path is expanded, so it can be directly passed to file
// operations.
func GetUserConfigPath() (string, error) {
	return homedirExpand(UserConfigPath)
}
