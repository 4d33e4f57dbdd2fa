package cli

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tech-arch1tect/showcase/app"
)

// runtime is what the commands need from the outside world. Tests replace it.
type runtime struct {
	build        func(offline bool) (*app.App, error)
	readPassword func(prompt string) (string, error)
}

func Execute(version, commit string) error {
	rt := &runtime{
		build:        buildApp,
		readPassword: readTerminalPassword,
	}
	return newRootCmd(rt, version, commit).ExecuteContext(context.Background())
}

func buildApp(offline bool) (*app.App, error) {
	builder := app.NewApp().WithAutoConfig()
	if offline {
		builder = builder.WithoutHTTP()
	}
	return builder.Build()
}

func newRootCmd(rt *runtime, version, commit string) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "showcase-admin",
		Short: "Run and administer the showcase admin backend",
		Long: `showcase-admin serves the admin login API and provides offline tooling
to enroll administrators, rotate their credentials and clear lockouts.

Configuration is read from the environment (and a .env file when present).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("failed to load env file %s: %w", envFile, err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "additional env file to load before configuration")

	cmd.AddCommand(newServeCmd(rt))
	cmd.AddCommand(newProvisionCmd(rt))
	cmd.AddCommand(newAccountCmd(rt))
	cmd.AddCommand(newRecoveryCmd(rt))
	cmd.AddCommand(newUnlockCmd(rt))
	cmd.AddCommand(newVersionCmd(version, commit))

	return cmd
}

// open builds the offline application and starts its lifecycle. The
// returned func stops it.
func (rt *runtime) open(ctx context.Context) (*app.App, func(), error) {
	a, err := rt.build(true)
	if err != nil {
		return nil, nil, err
	}
	if err := a.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start: %w", err)
	}
	return a, func() { _ = a.Stop() }, nil
}

func newServeCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the admin HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.build(false)
			if err != nil {
				return err
			}
			return a.Run()
		},
	}
}

func newVersionCmd(version, commit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "showcase-admin %s (%s)\n", version, commit)
		},
	}
}
