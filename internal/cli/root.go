package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

type App struct {
	DBPath string
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "taskboard",
		Short:        "Collaborative task board server",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&app.DBPath, "db", envOr("TASKBOARD_DB", "taskboard.sqlite"), "Path to the SQLite database")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newUsersCmd(app))
	cmd.AddCommand(newActionsCmd(app))
	cmd.AddCommand(newTokenCmd(app))
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeOut(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
