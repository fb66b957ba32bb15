package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sidkik/launchpi/pkg/version"
)

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of launchpi.",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("launchpi version: %s\n", version.Version)
		},
	}
}
