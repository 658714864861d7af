package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/simonvc/confutil/internal/plan"
)

var planJSON bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run YAML install plans",
}

var planApplyCmd = &cobra.Command{
	Use:   "apply <file>",
	Short: "Run a plan's steps in order, stopping at the first failure",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		report, runErr := plan.NewRunner(st, env(), plan.WithLogger(logger)).Run(ctx, p)
		if report != nil {
			if err := printReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}
		}
		return runErr
	},
}

var planCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a plan without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Plan OK: %d steps for company %s\n", len(p.Steps), p.Company)
		return nil
	},
}

func printReport(w io.Writer, r *plan.Report) error {
	if planJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintf(w, "Run %s on company %d\n", r.RunID, r.CompanyID)
	fmt.Fprintf(w, "%-4s %-22s %-8s %s\n", "#", "STEP", "STATUS", "DETAIL")
	for _, s := range r.Steps {
		status := "done"
		if s.Skipped {
			status = "skipped"
		}
		fmt.Fprintf(w, "%-4d %-22s %-8s %s\n", s.Index, s.Kind, status, s.Detail)
	}
	return nil
}

func init() {
	planApplyCmd.Flags().BoolVar(&planJSON, "json", false, "Print the report as JSON")
	planCmd.AddCommand(planApplyCmd, planCheckCmd)
	rootCmd.AddCommand(planCmd)
}
