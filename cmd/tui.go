package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/simonvc/confutil/internal/client"
	"github.com/simonvc/confutil/internal/server"
	"github.com/simonvc/confutil/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		serverAddr := cfg.ServerURL

		if !cmd.Flags().Changed("server") {
			// Start embedded server in background
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			ln, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			// the terminal belongs to the UI; keep server logs quiet
			srv := server.New(st, ln.Addr().String(), server.WithEnv(env()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Msg("embedded server stopped")
				}
			}()
			defer ln.Close()
			serverAddr = "http://" + ln.Addr().String()
		}

		// Wait for server to be ready
		c := client.New(serverAddr)
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		for {
			if err := c.Health(ctx); err == nil {
				break
			}
			if ctx.Err() != nil {
				return fmt.Errorf("server at %s is not answering", serverAddr)
			}
			time.Sleep(50 * time.Millisecond)
		}

		app := tui.NewApp(c)
		p := tea.NewProgram(app, tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
