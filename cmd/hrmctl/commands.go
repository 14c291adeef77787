package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"hrms.org/internal/auth"
	"hrms.org/internal/config"
	"hrms.org/internal/migrate"
	"hrms.org/internal/obs"
	"hrms.org/internal/seed"
	"hrms.org/internal/store/pg"
)

type options struct {
	envFile string
	dsn     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "hrmctl",
		Short:         "Administrative tasks for the HRMS API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to the .env file")
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (overrides HRM_DATABASE_*)")

	root.AddCommand(newMigrateCmd(opts), newSeedCmd(opts), newCreateSuperuserCmd(opts))
	return root
}

func (o *options) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(o.envFile)
	if err != nil {
		return nil, nil, err
	}
	if o.dsn != "" {
		cfg.DatabaseURL = o.dsn
	}
	logger := obs.NewLogger(os.Stderr, cfg.LogLevel)
	obs.SetLogger(logger)
	return cfg, logger, nil
}

func newMigrateCmd(opts *options) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the embedded schema migrations",
	}
	manager := func() (*migrate.Manager, error) {
		cfg, _, err := opts.load()
		if err != nil {
			return nil, err
		}
		return migrate.NewManager(cfg.DSN(), migrate.WithMigrationsTable(table))
	}
	cmd.PersistentFlags().StringVar(&table, "table", "", "Migrations bookkeeping table")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := manager()
				if err != nil {
					return err
				}
				return m.Up(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := manager()
				if err != nil {
					return err
				}
				return m.Down(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the applied and latest migration versions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := manager()
				if err != nil {
					return err
				}
				st, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d latest=%d dirty=%t\n", st.Version, st.Latest, st.Dirty)
				return nil
			},
		},
	)
	return cmd
}

// seeder opens the database and wires a Seeder over it. The caller closes the store.
func (o *options) seeder() (*seed.Seeder, *pg.Store, *config.Config, error) {
	cfg, logger, err := o.load()
	if err != nil {
		return nil, nil, nil, err
	}
	dsn := cfg.DSN()
	if dsn == "" {
		return nil, nil, nil, errors.New("database DSN is not set; use --dsn or HRM_DATABASE_URL")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	rbac, err := auth.NewRBACService(store, auth.NewPasswordHasher(cfg.PasswordHash, cfg.BcryptCost))
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}
	return seed.NewSeeder(store, rbac, logger), store, cfg, nil
}

func newSeedCmd(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the permission catalogue from a YAML manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, store, cfg, err := opts.seeder()
			if err != nil {
				return err
			}
			defer store.Close()
			if file == "" {
				file = cfg.SeedFile
			}
			manifest, err := seed.LoadManifest(file)
			if err != nil {
				return err
			}
			res, err := s.Permissions(cmd.Context(), manifest)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "permissions created=%d existing=%d\n", res.Created, res.Existing)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Manifest path (defaults to HRM_SEED_FILE)")
	return cmd
}

func newCreateSuperuserCmd(opts *options) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "create-superuser",
		Short: "Create the superuser account when it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, store, cfg, err := opts.seeder()
			if err != nil {
				return err
			}
			defer store.Close()
			if username == "" {
				username = cfg.SuperuserUsername
			}
			if password == "" {
				password = cfg.SuperuserPassword
			}
			created, err := s.Superuser(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "superuser %s created\n", username)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Superuser name (defaults to HRM_SUPERUSER_USERNAME)")
	cmd.Flags().StringVar(&password, "password", "", "Superuser password (defaults to HRM_SUPERUSER_PASSWORD)")
	return cmd
}
