package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/api"
	"github.com/astropanel/sales-engine/engine"
)

var (
	auditMonth  string
	auditFormat string
)

// auditOutput is the JSON shape of the audit command.
type auditOutput struct {
	Anomalies api.AnomalyReportDTO  `json:"anomalies"`
	Schedule  api.ScheduleReportDTO `json:"schedule"`
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report payment anomalies and schedule problems",
	Long:  "Runs the anomaly detectors over every payment and audits the shift schedule of --month.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		month, err := parseMonthFlag("month", auditMonth)
		if err != nil {
			return err
		}
		options, err := engineOptions(month)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		state, err := engine.NewRecomputer(st, options, zap.L()).Trigger(ctx)
		if err != nil {
			return eris.Wrap(err, "audit")
		}

		anomalies := api.ToAnomalyReportDTO(state.Anomalies, state.Ranks)
		schedule := api.ToScheduleReportDTO(state.Schedule)
		if auditFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(auditOutput{Anomalies: anomalies, Schedule: schedule})
		}
		formatAudit(os.Stdout, anomalies, schedule)
		return nil
	},
}

func formatAudit(w io.Writer, a api.AnomalyReportDTO, s api.ScheduleReportDTO) {
	fmt.Fprintf(w, "Flagged payments: %d (suppressed %d)\n", len(a.FlaggedIDs), a.Suppressed)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tCOUNT")
	fmt.Fprintf(tw, "future-dated\t%d\n", len(a.FutureDated))
	fmt.Fprintf(tw, "duplicate clusters\t%d\n", len(a.Duplicates))
	fmt.Fprintf(tw, "anomalous amounts\t%d\n", len(a.AnomalousAmounts))
	fmt.Fprintf(tw, "link nicknames\t%d\n", len(a.LinkNicknames))
	tw.Flush() //nolint:errcheck

	fmt.Fprintf(w, "\nSchedule %s\n", s.Month)
	if len(s.Conflicts) == 0 && len(s.MissingCoverage) == 0 && len(s.GeosWithoutSchedule) == 0 {
		fmt.Fprintln(w, "No schedule problems.")
		return
	}
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tGEO\tPROBLEM")
	for _, c := range s.Conflicts {
		fmt.Fprintf(tw, "%s\t%s\tmultiple sales managers: %s\n", c.Date, c.Geo, strings.Join(c.Managers, ", "))
	}
	for _, g := range s.MissingCoverage {
		fmt.Fprintf(tw, "%s\t%s\tno coverage\n", g.Date, g.Geo)
	}
	for _, geo := range s.GeosWithoutSchedule {
		fmt.Fprintf(tw, "-\t%s\tno schedule this month\n", geo)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	auditCmd.Flags().StringVar(&auditMonth, "month", "", "schedule audit month YYYY-MM (default current month)")
	auditCmd.Flags().StringVar(&auditFormat, "format", "table", "output format: table or json")
	rootCmd.AddCommand(auditCmd)
}
