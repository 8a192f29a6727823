package main

import (
	"context"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"propertyhub/internal/backup"
)

func newBackupCommand(ctx context.Context, c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage backups of the sqlite store",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Take a manual backup",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBackups(ctx, c, func(svc *backup.Service) error {
					path, err := svc.CreateBackup(ctx, backup.ReasonManual)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), path)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List backups, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBackups(ctx, c, func(svc *backup.Service) error {
					list, err := svc.ListBackups()
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "NAME\tREASON\tCREATED\tSIZE")
					for _, b := range list {
						fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", b.Name, b.Reason, b.CreatedAt.Format(time.RFC3339), b.Size)
					}
					return w.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "stage <file>",
			Short: "Stage a backup to replace the store on the next start",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBackups(ctx, c, func(svc *backup.Service) error {
					path := args[0]
					if filepath.Base(path) == path {
						path = filepath.Join(svc.Dir(), path)
					}
					if err := svc.StageRestore(path); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "restore of %s staged, restart the service to apply it\n", path)
					return nil
				})
			},
		},
	)
	return cmd
}

// withBackups opens the store through the full lifecycle and runs fn.
func withBackups(ctx context.Context, c *cli, fn func(svc *backup.Service) error) error {
	if !c.cfg.DesktopMode() {
		return errServerMode
	}
	rt, err := bootstrap(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt.backups)
}
