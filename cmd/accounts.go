package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/simonvc/confutil/internal/accountsetup"
	"github.com/simonvc/confutil/internal/confutil"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Install charts of accounts",
}

var accountsUnconfiguredCmd = &cobra.Command{
	Use:   "unconfigured",
	Short: "List companies without a chart of accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ids, err := accountsetup.New(st, env(), accountsetup.WithLogger(logger)).UnconfiguredCompanyIDs(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "Every company has a chart of accounts.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	},
}

var (
	setupChart      string
	setupCodeDigits int
)

var accountsSetupCmd = &cobra.Command{
	Use:   "setup <company-id>",
	Short: "Install a chart template and open the current fiscal year",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		company, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid company id: %s", args[0])
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		chart, err := strconv.ParseInt(setupChart, 10, 64)
		if err != nil {
			if chart, err = confutil.NewLookup(st, env()).XMLIDID(ctx, setupChart); err != nil {
				return fmt.Errorf("chart template %s: %w", setupChart, err)
			}
		}

		installed, err := accountsetup.New(st, env(), accountsetup.WithLogger(logger)).
			SetupCompanyAccounts(ctx, company, chart, setupCodeDigits)
		if err != nil {
			return err
		}
		if installed {
			fmt.Fprintf(cmd.OutOrStdout(), "Chart of accounts installed for company %d\n", company)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Company %d already has a chart of accounts\n", company)
		}
		return nil
	},
}

func init() {
	accountsSetupCmd.Flags().StringVar(&setupChart, "chart", "l10n_ifrs.chart_template_ifrs", "Chart template XMLID or id")
	accountsSetupCmd.Flags().IntVar(&setupCodeDigits, "code-digits", 0, "Account code width (0 keeps the template's)")
	accountsCmd.AddCommand(accountsUnconfiguredCmd, accountsSetupCmd)
	rootCmd.AddCommand(accountsCmd)
}
