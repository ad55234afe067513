package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/solatis/overseer/internal/core/db"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect recorded decisions and approval tickets",
}

var auditRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recent decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			return fmt.Errorf("--limit must be positive")
		}
		queries, closeDB, err := openQueries(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		events, err := db.NewAuditStore(queries).Recent(cmd.Context(), limit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "EVALUATED AT\tAGENT\tACTION\tSTATUS\tRISK")
		for _, e := range events {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f (%s)\n",
				e.EvaluatedAt.UTC().Format(time.RFC3339), e.AgentID, e.ActionType, e.Status, e.RiskScore, e.RiskLevel)
		}
		return tw.Flush()
	},
}

var auditPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List approval tickets awaiting a decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		queries, closeDB, err := openQueries(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		tickets, err := db.NewApprovalStore(queries).Pending(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TICKET\tAGENT\tRISK\tREASON")
		for _, p := range tickets {
			fmt.Fprintf(tw, "%s\t%s\t%.1f (%s)\t%s\n", p.TicketID, p.AgentID, p.RiskScore, p.RiskLevel, p.Reason)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditRecentCmd, auditPendingCmd)
	auditRecentCmd.Flags().Int("limit", 20, "number of decisions to show")
}

func openQueries(cmd *cobra.Command) (*db.Queries, func(), error) {
	database, err := openDatabase(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return queries, func() { database.Close() }, nil
}
