package cli

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"taskboard/internal/model"
	"taskboard/internal/store"
)

func newUsersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage board users (identity and display name only)",
	}
	cmd.AddCommand(newUsersAddCmd(app))
	cmd.AddCommand(newUsersListCmd(app))
	return cmd
}

func newUsersAddCmd(app *App) *cobra.Command {
	var name, email, id string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			name = strings.TrimSpace(name)
			email = strings.ToLower(strings.TrimSpace(email))
			if name == "" {
				return errors.New("users add: missing --name")
			}
			if email == "" {
				return errors.New("users add: missing --email")
			}
			if strings.TrimSpace(id) == "" {
				id = uuid.NewString()
			}

			st, err := store.Open(cmd.Context(), app.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			u := model.User{ID: id, Name: name, Email: email, CreatedAt: time.Now().UTC()}
			if err := st.InsertUser(cmd.Context(), &u); err != nil {
				return err
			}
			return writeOut(cmd, u)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email (identity key)")
	cmd.Flags().StringVar(&id, "id", "", "User id (default: generated)")
	return cmd
}

func newUsersListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cmd.Context(), app.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			users, err := st.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			return writeOut(cmd, users)
		},
	}
}
