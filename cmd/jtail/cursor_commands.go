package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jtail/internal/journal"
	"jtail/internal/logging"
	"jtail/internal/position"
)

func newCursorCommand(ctx *commandContext) *cobra.Command {
	cursorCmd := &cobra.Command{
		Use:   "cursor",
		Short: "Inspect or reset the saved journal position",
	}
	cursorCmd.AddCommand(newCursorShowCommand(ctx))
	cursorCmd.AddCommand(newCursorResetCommand(ctx))
	return cursorCmd
}

func newCursorShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the saved cursor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store := position.New(cfg.Storage.CursorPath, logging.NewNop())
			out := cmd.OutOrStdout()
			raw, ok := store.Current()
			pos, parsed := journal.ParsePosition(raw)
			if !ok || !parsed {
				fmt.Fprintf(out, "No cursor saved at %s; the next run starts at %s\n", store.Path(), defaultStart(cfg))
				return nil
			}
			fmt.Fprintln(out, pos.String())
			return nil
		},
	}
}

func newCursorResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the saved cursor so the next run starts at head or tail",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store := position.New(cfg.Storage.CursorPath, logging.NewNop())
			if err := store.Start(); err != nil {
				return wrapLockError(err)
			}
			defer store.Shutdown()
			if err := store.Clear(); err != nil {
				return fmt.Errorf("clear cursor: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cursor cleared (%s)\n", store.Path())
			return nil
		},
	}
}
