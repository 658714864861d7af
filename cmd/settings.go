package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/simonvc/confutil/internal/confutil"
	"github.com/simonvc/confutil/internal/orm"
)

var settingsCompany int64

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and apply settings wizards",
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <model> field=value...",
	Short: "Upsert settings and execute the wizard",
	Long: "Values are read as YAML scalars, so true, 3 and 0.5 keep their types and [1,2] is a list. " +
		"account.config.settings needs --company; the other wizards are global unless one is given.",
	Example: "  confutil settings set account.config.settings --company 1 decimal_precision=3\n" +
		"  confutil settings set sale.config.settings group_sale_pricelist=true",
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := confutil.ParseSettingsModel(args[0])
		if err != nil {
			return err
		}
		changes, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		scope, err := settingsScope(cmd, model)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		s := confutil.NewSettings(confutil.NewLookup(st, env(), confutil.WithLogger(logger)))
		id, err := s.Apply(ctx, model, scope, changes)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s(%d) applied for %s\n", model, id, scope)
		return nil
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show <model>",
	Short: "Print the current settings record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := confutil.ParseSettingsModel(args[0])
		if err != nil {
			return err
		}
		scope, err := settingsScope(cmd, model)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		s := confutil.NewSettings(confutil.NewLookup(st, env()))
		rec, found, err := s.Current(ctx, model, scope)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !found {
			fmt.Fprintf(out, "No %s record for %s yet.\n", model, scope)
			return nil
		}
		for _, k := range rec.Keys() {
			fmt.Fprintf(out, "%-40s %v\n", k, rec[k])
		}
		return nil
	},
}

func settingsScope(cmd *cobra.Command, model confutil.SettingsModel) (confutil.Scope, error) {
	if cmd.Flags().Changed("company") {
		return confutil.ForCompany(settingsCompany), nil
	}
	if model == confutil.AccountSettings {
		return confutil.Scope{}, fmt.Errorf("%s needs --company", model)
	}
	return confutil.Global(), nil
}

// parseAssignments reads field=value pairs, decoding each value as YAML.
func parseAssignments(args []string) (orm.Values, error) {
	out := orm.Values{}
	for _, arg := range args {
		field, raw, ok := strings.Cut(arg, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("%q: want field=value", arg)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		if v == nil {
			v = false
		}
		out[field] = orm.Normalize(toIDs(v))
	}
	return out, nil
}

// toIDs turns YAML integers into int64 and integer lists into id lists.
func toIDs(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case []any:
		if ids, ok := orm.AsIDs(x); ok {
			return ids
		}
	}
	return v
}

func init() {
	settingsCmd.PersistentFlags().Int64Var(&settingsCompany, "company", 0, "Company the settings belong to")
	settingsCmd.AddCommand(settingsSetCmd, settingsShowCmd)
	rootCmd.AddCommand(settingsCmd)
}
