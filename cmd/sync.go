package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/judge-sync/internal/syncer"
)

// newSyncCmd creates the 'sync' subcommand, a one-shot run of one provider.
func newSyncCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sync <provider>",
		Short: "Syncs one provider and waits for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := appInstance.Service().SyncNow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return fmt.Errorf("encode report: %w", err)
				}
				return nil
			}
			return renderReport(cmd, report)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run report as JSON")
	return cmd
}

func renderReport(cmd *cobra.Command, report syncer.Report) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s of %s: %s (fetched %d, unique %d, committed %t)\n",
		report.RunID, report.Provider, report.Status, report.Fetched, report.Unique, report.Committed)
	if report.Status == syncer.StatusNotSupported {
		fmt.Fprintf(out, "%s cannot list changed problems; nothing was synced\n", report.Provider)
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("Phase", "OK", "Failed", "Skipped")
	rows := []struct {
		name  string
		phase syncer.PhaseReport
	}{
		{"folders", report.Folders},
		{"problems", report.Problems},
		{"links", report.Links},
	}
	for _, r := range rows {
		if err := table.Append([]string{
			r.name,
			strconv.Itoa(r.phase.OK),
			strconv.Itoa(r.phase.Failed),
			strconv.Itoa(r.phase.Skipped),
		}); err != nil {
			return fmt.Errorf("render report: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
