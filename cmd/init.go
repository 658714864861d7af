package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simonvc/confutil/internal/confutil"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or upgrade the database and seed base data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		l := confutil.NewLookup(st, env(), confutil.WithLogger(logger))
		company, err := l.XMLIDID(ctx, "base.main_company")
		if err != nil {
			return err
		}
		logger.Info().Str("db", cfg.DBPath).Msg("database ready")
		fmt.Fprintf(cmd.OutOrStdout(), "Database %s ready: %d models, main company %d\n", cfg.DBPath, len(st.Models()), company)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
