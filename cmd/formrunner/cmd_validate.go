package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/entrhq/formrunner/pkg/mapping"
	"github.com/entrhq/formrunner/pkg/runner"
	"github.com/entrhq/formrunner/pkg/table"
)

func newValidateCmd() *cobra.Command {
	var input, sheet string
	cmd := &cobra.Command{
		Use:   "validate <mapping.yaml>",
		Short: "Check a mapping file without submitting anything",
		Long: `Parses the mapping and reports configuration errors. With --input the
table header is also checked against the mapped fields.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateMapping(cmd, args[0], input, sheet)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Input table to check against the mapping")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Excel sheet name (default: first sheet)")
	return cmd
}

func validateMapping(cmd *cobra.Command, path, input, sheet string) error {
	console := runner.NewConsoleWriter(runner.ParseLevel(verbosity("normal")), cmd.OutOrStdout())

	cfg, err := mapping.Load(path)
	if err != nil {
		logger.Debug("mapping rejected", zap.String("path", path), zap.Error(err))
		return err
	}

	console.Successf("%s is valid", path)
	console.Infof("Target:  %s", cfg.Target)
	console.Infof("Submit:  %s", cfg.Submit.Locator)
	console.Infof("Success: %s", describeCheck(cfg.SuccessCheck))
	for i, f := range cfg.Fields {
		console.Infof("  %d. %s", i+1, describeField(f))
	}

	if input == "" {
		return nil
	}
	tbl, err := table.Read(input, sheet)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	missing := runner.MissingColumns(cfg, tbl)
	for _, name := range missing {
		console.Warningf("field %q has no column in %s", name, input)
	}
	if len(missing) == 0 {
		console.Successf("%s has a column for every field (%d records)", input, len(tbl.Records))
	}
	return nil
}

func describeCheck(c mapping.SuccessCheck) string {
	if c.TextContains == "" {
		return c.Locator
	}
	return fmt.Sprintf("%s contains %q", c.Locator, c.TextContains)
}

func describeField(f mapping.FieldSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) -> %s", f.Name, f.Type, f.Locator)
	if f.Required {
		b.WriteString(" required")
	}
	if f.Default != nil {
		fmt.Fprintf(&b, " default=%q", *f.Default)
	}
	if len(f.Validators) > 0 {
		kinds := make([]string, 0, len(f.Validators))
		for _, v := range f.Validators {
			kinds = append(kinds, v.Kind)
		}
		fmt.Fprintf(&b, " validators=[%s]", strings.Join(kinds, ","))
	}
	return b.String()
}
