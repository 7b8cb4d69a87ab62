package cli

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskboard/internal/web"
)

func newTokenCmd(app *App) *cobra.Command {
	var (
		userID     string
		ttl        time.Duration
		secretPath string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				return errors.New("token: missing --user")
			}
			if strings.TrimSpace(secretPath) == "" {
				secretPath = filepath.Join(filepath.Dir(app.DBPath), "secret.key")
			}

			secret, err := web.LoadOrInitSecretKey(secretPath)
			if err != nil {
				return err
			}
			tok, err := web.NewSessionToken(secret, userID, ttl)
			if err != nil {
				return err
			}
			return writeOut(cmd, map[string]string{"token": tok, "user": userID})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id the token authenticates as")
	cmd.Flags().DurationVar(&ttl, "ttl", 7*24*time.Hour, "Token lifetime")
	cmd.Flags().StringVar(&secretPath, "secret", "", "Signing key path (default: secret.key next to --db)")
	return cmd
}
