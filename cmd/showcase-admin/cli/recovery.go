package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newRecoveryCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recovery",
		Short: "Manage recovery codes",
	}
	cmd.AddCommand(newRecoveryRegenerateCmd(rt))
	return cmd
}

func newRecoveryRegenerateCmd(rt *runtime) *cobra.Command {
	var (
		username   string
		count      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Replace an admin's recovery codes, invalidating the old batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, stop, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			codes, err := a.Provisioning().RegenerateRecoveryCodes(cmd.Context(), username, count)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"username": username, "recovery_codes": codes})
			}

			fmt.Fprintf(out, "Recovery codes for %s:\n", username)
			printCodes(out, codes)
			fmt.Fprintln(out)
			fmt.Fprintln(out, warning)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "admin username (required)")
	cmd.Flags().IntVar(&count, "count", 0, "number of codes (default from RECOVERY_CODE_COUNT)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the codes as JSON")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func newUnlockCmd(rt *runtime) *cobra.Command {
	var (
		username string
		source   string
	)

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Clear an admin's lockout and optionally a source's throttle window",
		Long: `Unlock resets the failure counter and lockout shown on the account. Login
throttling is keyed by client address, so pass --source to lift the block
on the address itself. With the memory throttle store the block lives in
the server process and clears on restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, stop, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			if err := a.Provisioning().Unlock(cmd.Context(), username, source); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Unlocked %s\n", username)
			if source != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared throttle window for %s\n", source)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "admin username (required)")
	cmd.Flags().StringVar(&source, "source", "", "client address whose throttle window to clear")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}
