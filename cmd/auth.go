package cmd

import (
	"github.com/spf13/cobra"

	"streamgrab/internal/app"
)

var (
	authCmd = &cobra.Command{
		Use:   "auth",
		Short: "Authentication management commands",
		Long:  `Validate the credentials configured for each enabled provider.`,
	}

	authLoginCmd = &cobra.Command{
		Use:   "login",
		Short: "Validate every enabled provider's configured credential",
		Long: `Calls each enabled provider's Login to confirm its configured
credential (token, cookie, or app id) still authenticates.

Unlike a browser-based login flow, this never acquires a new credential
on its own -- set one in the configuration file first.`,
		PersistentPreRun: initConfig,
		Run: func(cmd *cobra.Command, _ []string) {
			app.ExecuteAuthLoginCommand(cmd.Context(), appConfig)
		},
	}
)

//nolint:gochecknoinits // Cobra requires the init function to set up commands.
func init() {
	authCmd.AddCommand(authLoginCmd)
	rootCmd.AddCommand(authCmd)
}
