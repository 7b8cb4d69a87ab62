package cli

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskboard/internal/store"
	"taskboard/internal/web"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		addr       string
		authMode   string
		secretPath string
		lockTTL    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the board server (HTTP API + websocket events)",
		Example: strings.TrimSpace(`
# Local dev: no auth, X-User-Id header selects the user
taskboard serve --addr 127.0.0.1:3001 --auth none

# Signed session tokens, locks expire after 5 minutes
taskboard serve --auth token --lock-ttl 5m
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.New(slog.NewTextHandler(os.Stderr, nil))

			st, err := store.Open(cmd.Context(), app.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			if strings.TrimSpace(secretPath) == "" {
				secretPath = filepath.Join(filepath.Dir(app.DBPath), "secret.key")
			}

			srv, err := web.NewServer(web.Config{
				Addr:       addr,
				AuthMode:   authMode,
				SecretPath: secretPath,
				LockTTL:    lockTTL,
				Logger:     log,
			}, st)
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", srv.Addr())
			if err != nil {
				return err
			}

			log.Info("taskboard listening",
				"addr", ln.Addr().String(),
				"db", app.DBPath,
				"auth", authMode,
				"lockTTL", lockTTL.String(),
			)
			fmt.Fprintf(cmd.ErrOrStderr(), "taskboard running at http://%s/\n", ln.Addr().String())

			return http.Serve(ln, srv.Handler())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", envOr("TASKBOARD_ADDR", "127.0.0.1:3001"), "Bind address (host:port or :port)")
	cmd.Flags().StringVar(&authMode, "auth", envOr("TASKBOARD_AUTH", "none"), "Auth mode (none|token)")
	cmd.Flags().StringVar(&secretPath, "secret", "", "Token signing key path (default: secret.key next to --db)")
	cmd.Flags().DurationVar(&lockTTL, "lock-ttl", 0, "Edit-lock lease duration; 0 means locks never expire")
	return cmd
}
