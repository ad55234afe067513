package cmd

import (
	"fmt"

	"github.com/solatis/overseer/internal/core/auth"
	"github.com/solatis/overseer/internal/core/config"
	"github.com/spf13/cobra"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage agent API keys",
}

var apikeyIssueCmd = &cobra.Command{
	Use:   "issue AGENT_ID",
	Short: "Issue an API key for an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyIssue,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke KEY_ID",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeDB, err := openAuthenticator(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		if err := a.Revoke(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyIssueCmd, apikeyRevokeCmd)
	apikeyIssueCmd.Flags().String("secret-id", "", "secret to sign with (defaults to the only configured secret)")
}

func runAPIKeyIssue(cmd *cobra.Command, args []string) error {
	secretID, _ := cmd.Flags().GetString("secret-id")
	if secretID == "" {
		secrets, err := config.HMACSecrets()
		if err != nil {
			return err
		}
		if len(secrets) != 1 {
			return fmt.Errorf("%d HMAC secrets configured; choose one with --secret-id", len(secrets))
		}
		for id := range secrets {
			secretID = id
		}
	}

	a, closeDB, err := openAuthenticator(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	key, err := a.Issue(cmd.Context(), secretID, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:    %s\nagent: %s\nkey:   %s\n", key.ID, key.AgentID, key.Key)
	fmt.Fprintln(out, "The key is shown only once.")
	return nil
}

func openAuthenticator(cmd *cobra.Command) (*auth.Authenticator, func(), error) {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return nil, nil, fmt.Errorf("no HMAC secrets configured (set OV_HMAC_SECRET environment variable)")
	}

	queries, closeDB, err := openQueries(cmd)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewAuthenticator(secrets, queries), closeDB, nil
}
