package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/entrhq/formrunner/pkg/runlog"
)

func newLedgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ledger <results.csv|results.db>",
		Short: "List the rows a result log records as successful",
		Long: `Prints the rows a resumed run would skip. A row counts as successful when
its most recent entry in the log is a success.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printLedger(cmd, args[0])
		},
	}
}

func printLedger(cmd *cobra.Command, path string) error {
	// Load treats a missing log as empty; here it is a mistake.
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to open result log: %w", err)
	}

	results, err := runlog.Load(cmd.Context(), path)
	if err != nil {
		return err
	}
	ledger := runlog.NewLedger(results)
	logger.Debug("ledger loaded", zap.String("path", path), zap.Int("rows", ledger.Len()))

	rows := ledger.Rows()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d successful rows\n", len(rows))
	if len(rows) > 0 {
		parts := make([]string, 0, len(rows))
		for _, r := range rows {
			parts = append(parts, strconv.Itoa(r))
		}
		fmt.Fprintln(out, strings.Join(parts, ","))
	}
	return nil
}
