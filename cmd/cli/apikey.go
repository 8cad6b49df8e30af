package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anstrom/netport/internal/auth"
)

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Create API keys for the server",
		Long: `The server stores only bcrypt hashes of API keys under api.api_key_hashes.
Generate a key, hand the key to the client and put the hash in the config.`,
	}

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new key and its hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := auth.GenerateAPIKey()
			if err != nil {
				return err
			}
			hash, err := auth.HashAPIKey(key)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "API key: %s\n", key)
			fmt.Fprintf(out, "Hash:    %s\n\n", hash)
			fmt.Fprintln(out, "Store the key now, it cannot be recovered from the hash.")
			return nil
		},
	}

	hash := &cobra.Command{
		Use:   "hash <key>",
		Short: "Hash an existing key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			if !auth.IsValidAPIKeyFormat(key) {
				return fmt.Errorf("not a netport API key")
			}
			h, err := auth.HashAPIKey(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}

	cmd.AddCommand(generate, hash)
	return cmd
}

func init() {
	rootCmd.AddCommand(newAPIKeyCmd())
}
