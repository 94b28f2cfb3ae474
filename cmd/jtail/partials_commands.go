package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jtail/internal/logging"
	"jtail/internal/partial"
	"jtail/internal/position"
)

type pendingJSON struct {
	ContainerID string    `json:"container_id"`
	Started     time.Time `json:"started"`
	AgeSeconds  float64   `json:"age_seconds"`
	Bytes       int       `json:"bytes"`
	Message     string    `json:"message"`
}

func newPartialsCommand(ctx *commandContext) *cobra.Command {
	partialsCmd := &cobra.Command{
		Use:   "partials",
		Short: "Inspect or clear buffered container message fragments",
	}
	partialsCmd.AddCommand(newPartialsListCommand(ctx))
	partialsCmd.AddCommand(newPartialsClearCommand(ctx))
	return partialsCmd
}

func newPartialsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending fragments from the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			pending, err := partial.Inspect(cfg.Partials.SnapshotPath, logging.NewNop())
			if err != nil {
				return fmt.Errorf("read partial snapshot: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), toPendingJSON(pending))
			}
			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "No pending fragments")
				return nil
			}
			rows := make([][]string, 0, len(pending))
			for _, p := range pending {
				rows = append(rows, []string{
					shortID(p.ContainerID),
					p.Started.Local().Format(time.DateTime),
					p.Age.Truncate(time.Second).String(),
					fmt.Sprintf("%d", p.Bytes),
					preview(string(p.Entry.Message()), 48),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Container", "Started", "Age", "Bytes", "Message"},
				rows,
				2, 3,
			))
			if !cfg.Partials.Enabled {
				fmt.Fprintln(out, "Note: partials.enabled is false; this snapshot is not being updated")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newPartialsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard every pending fragment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			r, err := partial.New(
				position.New(cfg.Partials.SnapshotPath, logging.NewNop()),
				partial.Options{Retention: cfg.PartialRetention(), CleanupProbability: cfg.Partials.CleanupProbability},
				logging.NewNop(),
			)
			if err != nil {
				return err
			}
			if err := r.Start(); err != nil {
				return wrapLockError(err)
			}
			dropped := r.Len()
			if err := r.Clear(); err != nil {
				_ = r.Close()
				return fmt.Errorf("clear partial snapshot: %w", err)
			}
			if err := r.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dropped %d pending fragment chain(s)\n", dropped)
			return nil
		},
	}
}

func toPendingJSON(pending []partial.Pending) []pendingJSON {
	out := make([]pendingJSON, 0, len(pending))
	for _, p := range pending {
		out = append(out, pendingJSON{
			ContainerID: p.ContainerID,
			Started:     p.Started.UTC(),
			AgeSeconds:  p.Age.Seconds(),
			Bytes:       p.Bytes,
			Message:     string(p.Entry.Message()),
		})
	}
	return out
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
