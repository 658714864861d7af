package cmd

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/simonvc/confutil/internal/web"
)

var (
	webPort     int
	webHost     string
	webSessions string
)

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the TUI in a browser, one sandbox database per session",
	RunE: func(cmd *cobra.Command, args []string) error {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("find executable: %w", err)
		}
		listenAddr := net.JoinHostPort(webHost, fmt.Sprintf("%d", webPort))
		fmt.Fprintf(cmd.OutOrStdout(), "confutil web UI: http://%s\n", listenAddr)

		srv := web.NewServer(listenAddr, webSessions,
			web.WithLogger(logger),
			web.WithCommand(web.TUICommand(exe)),
		)
		return srv.ListenAndServe()
	},
}

func init() {
	webCmd.Flags().IntVar(&webPort, "port", 8833, "HTTP port for the web terminal")
	webCmd.Flags().StringVar(&webHost, "host", "localhost", "HTTP host for the web terminal")
	webCmd.Flags().StringVar(&webSessions, "sessions", filepath.Join(os.TempDir(), "confutil-web"), "Directory holding per-session databases")
	rootCmd.AddCommand(webCmd)
}
