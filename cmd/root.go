package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	configCmd "github.com/sidkik/launchpi/cmd/config"
	"github.com/sidkik/launchpi/cmd/run"
	"github.com/sidkik/launchpi/cmd/ssh"
	syncCmd "github.com/sidkik/launchpi/cmd/sync"
	"github.com/sidkik/launchpi/cmd/util"
	"github.com/sidkik/launchpi/cmd/version"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "LAUNCHPI_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	rootCmd := &cobra.Command{
		Use:   "launchpi",
		Short: "Sync a Java program's classpath to a remote host and launch it there",
		Long: "launchpi uploads the jars and class files that changed since the " +
			"last upload to a remote host over SSH, and then runs or debugs " +
			"the program there.",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		configCmd.New(),
		syncCmd.New(),
		run.NewRun(),
		run.NewDebug(),
		ssh.New(),
		version.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}
