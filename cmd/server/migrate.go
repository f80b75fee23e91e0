package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atinyakov/commlog/internal/db"
)

func newMigrateCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := loadOptions(cmd, gf)
			if err != nil {
				return err
			}
			log, err := newLogger(opts)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			conn, err := db.InitPostgres(cmd.Context(), opts.Database.DSN)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.RunMigrations(cmd.Context(), conn); err != nil {
				return err
			}
			log.Info("migrations applied", zap.String("dialect", "postgres"))
			return nil
		},
	}
}
