// File: cmd/login.go

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/billfetch/billfetch-cli/internal/secrets"
)

var loginInteractive bool

var loginCmd = &cobra.Command{
	Use:   "login <platform>",
	Short: "Perform a fresh portal login and persist the session",
	Long: `Login discards any persisted session for the platform and performs a fresh
login, storing the resulting cookies and storage for later fetch runs.

With --interactive the browser opens the portal's login page and waits for
you to complete the login by hand; press Enter once the portal shows the
authenticated area. Without it, credentials come from the configured secrets
provider.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platformName := args[0]

		runner, cleanup, err := buildRunner(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if !loginInteractive {
			return runner.Login(cmd.Context(), platformName)
		}

		printTOTPHint(cmd, platformName)
		return runner.InteractiveLogin(cmd.Context(), platformName, func() error {
			fmt.Fprintln(cmd.OutOrStdout(), "Complete the login in the browser window, then press Enter.")
			reader := bufio.NewReader(cmd.InOrStdin())
			if _, err := reader.ReadString('\n'); err != nil {
				return errors.New("aborted before login completed")
			}
			return nil
		})
	},
}

// printTOTPHint shows the current one-time code when the platform has a TOTP
// secret configured, saving the operator a trip to their authenticator app.
func printTOTPHint(cmd *cobra.Command, platformName string) {
	provider, closeProvider, err := buildSecretsProvider(cmd.Context())
	if err != nil {
		return
	}
	defer closeProvider()

	secretName := strings.ToUpper(platformName) + "_TOTP_SECRET"
	secret, err := provider.GetSecret(cmd.Context(), secretName)
	if err != nil {
		return
	}
	code, err := secrets.TimeBasedCode(secret)
	if err != nil {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Current one-time code for %s: %s\n", platformName, code)
}

func init() {
	loginCmd.Flags().BoolVarP(&loginInteractive, "interactive", "i", false, "complete the login by hand in the browser window")
	rootCmd.AddCommand(loginCmd)
}
