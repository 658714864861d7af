package cmd

import (
	"github.com/spf13/cobra"

	"github.com/simonvc/confutil/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		addr := cfg.Addr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		srv := server.New(st, addr,
			server.WithLogger(logger),
			server.WithEnv(env()),
			server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
		)
		return srv.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8888", "Listen address (env CONFUTIL_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
