package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/user"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/launchpi/cmd/util"
	"github.com/sidkik/launchpi/pkg/config"
	"github.com/sidkik/launchpi/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout          io.Writer = os.Stdout
	stdin           io.Reader = os.Stdin
	guessDefaults             = guessDefaultsImpl
	parseUserConfig           = config.ParseUserOrEmpty
	writeUserConfig           = config.WriteUser
	stat                      = os.Stat
	getCurrentUser            = user.Current
	expandPath                = homedir.Expand
)

const defaultIdentityFile = "~/.ssh/id_rsa"

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts config.Profile
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or update a connection profile",
		Long: "Create or update a connection profile in " + config.UserConfigPath + ".\n" +
			"Any setting that isn't passed as a flag is prompted for interactively.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := SetupProfile(cliOpts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&cliOpts.Name, "profile", "",
		"The name of the profile to create or update.")
	cmd.Flags().StringVar(&cliOpts.User, "user", "",
		"The user to log in to the remote host as.")
	cmd.Flags().IntVar(&cliOpts.Port, "port", 0,
		fmt.Sprintf("The SSH port of the remote host. Defaults to %d.", config.DefaultSSHPort))
	cmd.Flags().StringVar(&cliOpts.IdentityFile, "identity-file", "",
		"The private key used to authenticate.")
	cmd.Flags().StringVar(&cliOpts.Password, "password", "",
		"The password used to authenticate, if there's no identity file.")
	cmd.Flags().StringVar(&cliOpts.KnownHostsFile, "known-hosts", "",
		"The known_hosts file used to verify the remote host. "+
			"Defaults to "+config.DefaultKnownHostsPath+".")
	cmd.Flags().BoolVar(&cliOpts.InsecureIgnoreHostKey, "insecure-ignore-host-key", false,
		"Don't verify the remote host's key.")

	cmd.AddCommand(&cobra.Command{
		Use:   "get-profiles",
		Short: "List the configured connection profiles",
		Run: func(_ *cobra.Command, _ []string) {
			cfg, err := parseUserConfig()
			if err != nil {
				err = errors.WithContext(err, "read config")
				util.HandleFatalError(err)
			}

			for _, profile := range cfg.Profiles {
				fmt.Fprintf(stdout, "%s\t%s\n", profile.Name, profile.User)
			}
		},
	})

	return cmd
}

// SetupProfile prompts for the profile settings that weren't set in
// `cliOpts`, and saves the profile to the user config.
func SetupProfile(cliOpts config.Profile) error {
	cfg, err := parseUserConfig()
	if err != nil {
		return errors.WithContext(err, "read config")
	}

	profile, err := generateProfile(cliOpts, cfg)
	if err != nil {
		return errors.WithContext(err, "generate profile")
	}

	cfg.SetProfile(profile)
	if err := writeUserConfig(cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	path, err := config.GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "get user config path")
	}

	fmt.Fprintf(stdout, "Wrote profile %q to %s\n", profile.Name, path)
	return nil
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	field                                         *string
	validationFn                                  func(string) (string, bool)
}

// generateProfile interacts with the user to decide what the profile should
// contain. Settings of an existing profile with the same name are offered as
// answers.
func generateProfile(cliOpts config.Profile, cfg config.User) (config.Profile, error) {
	in := bufio.NewReader(stdin)
	profile := cliOpts
	if profile.Name == "" {
		resp, err := ask(in, prompt{
			helpString:    "Enter a name for the connection profile.",
			prompt:        "Profile name",
			defaultAnswer: "default",
			validationFn:  noWhitespace,
		})
		if err != nil {
			return config.Profile{}, err
		}
		profile.Name = resp
	}

	defaults := guessDefaults()
	curr, err := cfg.GetProfile(profile.Name)
	if err != nil {
		log.WithError(err).Debug("Creating new profile")
		curr = config.Profile{}
	}

	var prompts []prompt
	if cliOpts.User == "" {
		prompts = append(prompts, prompt{
			helpString:    "Enter the user to log in to the remote host as.",
			prompt:        "Remote user",
			defaultAnswer: defaults.User,
			currAnswer:    curr.User,
			field:         &profile.User,
			validationFn:  noWhitespace,
		})
	}

	if cliOpts.IdentityFile == "" && cliOpts.Password == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the path to the private key used to authenticate.\n" +
				"The key must not be protected by a passphrase.",
			prompt:        "Identity file",
			defaultAnswer: defaults.IdentityFile,
			currAnswer:    curr.IdentityFile,
			field:         &profile.IdentityFile,
		})
	}

	for _, p := range prompts {
		resp, err := ask(in, p)
		if err != nil {
			return config.Profile{}, err
		}
		*p.field = resp
	}

	if profile.Port == 0 {
		profile.Port = curr.Port
	}
	if profile.KnownHostsFile == "" {
		profile.KnownHostsFile = curr.KnownHostsFile
	}
	return profile, nil
}

// ask prompts until the user enters a valid response.
func ask(in *bufio.Reader, p prompt) (string, error) {
	for {
		resp, err := promptUser(in, p.helpString, p.prompt, p.defaultAnswer, p.currAnswer)
		if err != nil {
			return "", errors.WithContext(err, "read response")
		}

		if p.validationFn == nil {
			return resp, nil
		}

		validationErr, ok := p.validationFn(resp)
		if ok {
			return resp, nil
		}
		fmt.Fprintln(stdout, validationErr)
	}
}

func noWhitespace(resp string) (string, bool) {
	if resp == "" {
		return "A value is required.", false
	}
	if strings.ContainsAny(resp, " \t") {
		return "The value must not contain whitespace.", false
	}
	return "", true
}

// guessDefaults tries to guess reasonable defaults for the fields in the
// profile.
func guessDefaultsImpl() (profile config.Profile) {
	if user, err := getCurrentUser(); err == nil {
		profile.User = user.Username
	} else {
		log.WithError(err).Info("Failed to guess user")
	}

	if identityFile, err := guessIdentityFile(); err == nil {
		profile.IdentityFile = identityFile
	} else {
		log.WithError(err).Info("Failed to guess identity file")
	}

	return profile
}

// guessIdentityFile returns the path to the default SSH key if it exists.
func guessIdentityFile() (string, error) {
	path, err := expandPath(defaultIdentityFile)
	if err != nil {
		return "", errors.WithContext(err, "expand path")
	}

	if _, err := stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.WithContext(err, "stat")
	}
	return path, nil
}

func promptUser(in *bufio.Reader, helpString, prompt, defaultAnswer,
	currAnswer string) (string, error) {

	// Display a new line at the end to separate different fields to make it
	// look clearer.
	defer fmt.Fprintln(stdout)

	options := []string{}
	if defaultAnswer != "" {
		options = append(options, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		options = append(options, currAnswer)
	}
	options = append(options, "(Enter manually)")

	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	if nOptions := len(options); nOptions > 1 {
		fmt.Fprintln(stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(stdout)

		for {
			fmt.Fprintf(stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := in.ReadString('\n')
			if err != nil {
				return "", err
			}

			var choice int
			choiceStr = strings.TrimRight(choiceStr, "\n")

			// Default to the first choice if user doesn't enter anything.
			if choiceStr == "" {
				choice = 1
			} else {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					continue
				}
			}

			if choice == nOptions {
				break
			}
			return options[choice-1], nil
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	resp, err := in.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(resp, "\n"), nil
}
