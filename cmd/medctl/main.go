// Command medctl runs one-off administrative tasks against the configured
// storage: schema migration, bootstrapping the first admin and OTP cleanup.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/david-solomon-henshaw/MedAppV1/internal/app"
	"github.com/david-solomon-henshaw/MedAppV1/internal/config"
	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository/postgres"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/account"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/audit"
	"github.com/david-solomon-henshaw/MedAppV1/internal/worker"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/security"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	root := &cobra.Command{
		Use:          "medctl",
		Short:        "MedApp administration tool",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config", "", "directory containing config.yaml")

	loadConfig := func() (*config.Config, error) {
		if configDir != "" {
			return config.LoadConfig(configDir)
		}
		return config.LoadConfig()
	}

	root.AddCommand(
		migrateCmd(loadConfig),
		createAdminCmd(loadConfig),
		hashPasswordCmd(),
		sweepOTPsCmd(loadConfig),
	)
	return root
}

func migrateCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("migrate requires the postgres storage driver, got %q", cfg.Storage.Driver)
			}

			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func createAdminCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var req model.RegisterAdminRequest

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			l := app.NewLogger(cfg.Log)

			stores, err := app.OpenStores(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer stores.Close()

			svc := account.NewService(
				stores.Admins, stores.Patients, stores.Caregivers, stores.Appointments,
				security.NewBcryptHasher(cfg.Auth.BcryptCost),
				audit.NewService(stores.Audit, l),
				l,
			)
			// Bootstrap accounts have no acting admin.
			admin, err := svc.RegisterAdmin(cmd.Context(), uuid.Nil, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", admin.ID, admin.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&req.Email, "email", "", "login email")
	cmd.Flags().StringVar(&req.Password, "password", "", "initial password")
	for _, f := range []string{"first-name", "last-name", "email", "password"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := security.NewBcryptHasher(cost).Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", 10, "bcrypt cost")
	return cmd
}

func sweepOTPsCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-otps",
		Short: "Clear expired OTP codes once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			l := app.NewLogger(cfg.Log)

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			stores, err := app.OpenStores(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer stores.Close()

			cleared, err := worker.NewOTPSweeper(stores.Accounts(), 0, cfg.Worker.OTPSweepGrace, nil, l).Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d expired OTPs\n", cleared)
			return nil
		},
	}
}
