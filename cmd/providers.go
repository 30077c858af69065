package cmd

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// newProvidersCmd creates the 'providers' subcommand.
func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Lists the enabled providers and when they were last synced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Provider", "Last synced")
			for _, st := range appInstance.Service().ListProviders() {
				if err := table.Append([]string{st.Name, st.LastSynced()}); err != nil {
					return fmt.Errorf("render providers: %w", err)
				}
			}
			if err := table.Render(); err != nil {
				return fmt.Errorf("render providers: %w", err)
			}
			return nil
		},
	}
}
