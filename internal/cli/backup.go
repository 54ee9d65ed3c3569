package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dukerupert/menuboard/internal/backup"
	"github.com/dukerupert/menuboard/internal/database"
	"github.com/spf13/cobra"
)

// NewBackupCommand creates the backup command group. Run without a
// subcommand it takes a snapshot.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	var passphrase string

	newManager := func() (*backup.Manager, func(), error) {
		cfg := rootOpts.cfg
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		m := backup.NewManager(backup.Config{
			S3: backup.S3Config{
				Endpoint:  cfg.Backup.Endpoint,
				Bucket:    cfg.Backup.Bucket,
				Region:    cfg.Backup.Region,
				AccessKey: cfg.Backup.AccessKey,
				SecretKey: cfg.Backup.SecretKey,
			},
			Prefix: cfg.Backup.Prefix,
		}, db, rootOpts.logger.With("component", "backup"))
		return m, func() { db.Close() }, nil
	}

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the database to object storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, done, err := newManager()
			if err != nil {
				return err
			}
			defer done()

			snap, err := m.Run(cmd.Context(), passphrase)
			if err != nil {
				return err
			}
			return rootOpts.print(cmd.OutOrStdout(), snap, func(w io.Writer) {
				fmt.Fprintf(w, "uploaded %s (%d bytes)\n", snap.Key, snap.Size)
			})
		},
	}
	cmd.PersistentFlags().StringVar(&passphrase, "passphrase", "", "encryption passphrase")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, done, err := newManager()
			if err != nil {
				return err
			}
			defer done()

			snaps, err := m.List(cmd.Context())
			if err != nil {
				return err
			}
			return rootOpts.print(cmd.OutOrStdout(), snaps, func(w io.Writer) {
				for _, s := range snaps {
					fmt.Fprintf(w, "%s\t%d\t%s\n", s.Key, s.Size, s.CreatedAt.Format(time.RFC3339))
				}
			})
		},
	})

	var restoreTo string
	restore := &cobra.Command{
		Use:   "restore <key>",
		Short: "Download and decrypt a snapshot to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, done, err := newManager()
			if err != nil {
				return err
			}
			defer done()

			if err := m.Restore(cmd.Context(), args[0], passphrase, restoreTo); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s\n", args[0], restoreTo)
			return nil
		},
	}
	restore.Flags().StringVar(&restoreTo, "to", "menuboard-restored.db", "destination file")
	cmd.AddCommand(restore)

	var retention time.Duration
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete snapshots older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, done, err := newManager()
			if err != nil {
				return err
			}
			defer done()

			n, err := m.Cleanup(cmd.Context(), retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d snapshots\n", n)
			return nil
		},
	}
	cleanup.Flags().DurationVar(&retention, "retention", 30*24*time.Hour, "how long to keep snapshots")
	cmd.AddCommand(cleanup)

	return cmd
}
