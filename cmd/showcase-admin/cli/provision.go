package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/tech-arch1tect/showcase/services/provisioning"
)

type credentialFlags struct {
	username    string
	passwords   passwordFlags
	secret      string
	recovery    int
	disableTOTP bool
	dryRun      bool
	qrOut       string
	json        bool
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "admin username (required)")
	f.passwords.register(cmd)
	cmd.Flags().StringVar(&f.secret, "totp-secret", "", "base32 TOTP secret to install instead of generating one")
	cmd.Flags().IntVar(&f.recovery, "recovery-codes", 0, "number of recovery codes to generate (default from RECOVERY_CODE_COUNT)")
	cmd.Flags().BoolVar(&f.disableTOTP, "disable-totp", false, "install a password only, with no second factor")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "generate and print the material without writing it")
	cmd.Flags().StringVar(&f.qrOut, "qr-out", "", "write the enrollment QR code as a PNG to this path")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("username")
	cmd.MarkFlagsMutuallyExclusive("totp-secret", "disable-totp")
}

type provisionFunc func(*provisioning.Service, context.Context, provisioning.Options) (*provisioning.Result, error)

func (f *credentialFlags) run(cmd *cobra.Command, rt *runtime, provision provisionFunc) error {
	password, err := f.passwords.resolve(cmd, rt)
	if err != nil {
		return err
	}

	a, stop, err := rt.open(cmd.Context())
	if err != nil {
		return err
	}
	defer stop()

	result, err := provision(a.Provisioning(), cmd.Context(), provisioning.Options{
		Username:      f.username,
		Password:      password,
		Secret:        f.secret,
		RecoveryCount: f.recovery,
		DryRun:        f.dryRun,
		DisableTOTP:   f.disableTOTP,
	})
	if err != nil {
		return err
	}

	if f.qrOut != "" && result.Key != nil {
		if err := writeQR(f.qrOut, result.Key); err != nil {
			return err
		}
	}

	if f.json {
		return printJSON(cmd.OutOrStdout(), result, f.qrOut)
	}
	printResult(cmd.OutOrStdout(), result, f.qrOut)
	return nil
}

func newProvisionCmd(rt *runtime) *cobra.Command {
	var flags credentialFlags

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Replace an admin's password, TOTP secret and recovery codes",
		Long: `Provision installs fresh credentials on an existing admin account in one
transaction. The previous secret, recovery codes, accepted TOTP step,
trusted devices and lockout state are discarded.`,
		Example: `  showcase-admin provision --username admin
  showcase-admin provision --username admin --qr-out admin.png --recovery-codes 12
  echo "$NEW_PASSWORD" | showcase-admin provision -u admin --password-stdin --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.run(cmd, rt, (*provisioning.Service).Provision)
		},
	}
	flags.register(cmd)
	return cmd
}

func newAccountCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage admin accounts",
	}

	var flags credentialFlags
	create := &cobra.Command{
		Use:     "create",
		Short:   "Enroll a new admin account",
		Example: `  showcase-admin account create --username admin --qr-out admin.png`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.run(cmd, rt, (*provisioning.Service).Create)
		},
	}
	flags.register(create)

	cmd.AddCommand(create)
	return cmd
}
