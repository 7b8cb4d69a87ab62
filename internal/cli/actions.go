package cli

import (
	"github.com/spf13/cobra"

	"taskboard/internal/store"
)

func newActionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "Inspect the audit trail",
	}

	var limit int
	recent := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recent actions (newest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cmd.Context(), app.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			recs, err := st.RecentActions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeOut(cmd, recs)
		},
	}
	recent.Flags().IntVar(&limit, "limit", 20, "Maximum number of records")

	cmd.AddCommand(recent)
	return cmd
}
