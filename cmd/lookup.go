package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simonvc/confutil/internal/confutil"
	"github.com/simonvc/confutil/internal/orm"
)

var lookupOptional bool

var lookupCmd = &cobra.Command{
	Use:   "lookup <model> [domain]",
	Short: "Find the single record matching a domain",
	Long: "Searches model with a JSON domain such as '[[\"code\",\"=\",\"ST1\"]]' and prints the id " +
		"of the only match. No match or several matches is an error; with --optional no match " +
		"prints \"none\".",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var domain orm.Domain
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &domain); err != nil {
				return fmt.Errorf("domain: %w", err)
			}
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		l := confutil.NewLookup(st, env(), confutil.WithLogger(logger))
		out := cmd.OutOrStdout()
		if lookupOptional {
			id, ok, err := l.MaybeID(ctx, args[0], domain)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "none")
				return nil
			}
			fmt.Fprintln(out, id)
			return nil
		}
		id, err := l.ExactlyOneID(ctx, args[0], domain)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, id)
		return nil
	},
}

var xmlidCmd = &cobra.Command{
	Use:   "xmlid <module.name>",
	Short: "Resolve an external identifier to model,id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ref, err := confutil.NewLookup(st, env()).XMLID(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ref)
		return nil
	},
}

func init() {
	lookupCmd.Flags().BoolVar(&lookupOptional, "optional", false, "Print none instead of failing when nothing matches")
	rootCmd.AddCommand(lookupCmd, xmlidCmd)
}
