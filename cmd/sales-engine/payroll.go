package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/astropanel/sales-engine/api"
	"github.com/astropanel/sales-engine/engine"
	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/payroll"
)

var (
	payrollMonth  string
	payrollTo     string
	payrollFormat string
)

var payrollCmd = &cobra.Command{
	Use:   "payroll",
	Short: "Compute manager payroll",
	Long:  "Computes payroll for --month, or for every month from --month to --to, and prints it as a table or JSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		from, err := parseMonthFlag("month", payrollMonth)
		if err != nil {
			return err
		}
		to, err := parseMonthFlag("to", payrollTo)
		if err != nil {
			return err
		}
		options, err := engineOptions(from)
		if err != nil {
			return err
		}
		opts := options()
		if from == "" {
			from = generic.MonthKeyOf(time.Now(), opts.Location)
		}
		if to == "" {
			to = from
		}
		if to < from {
			return eris.Wrapf(generic.ErrInvalidPeriod, "--to %s before --month %s", to, from)
		}
		months := generic.MonthsBetween(from, to)
		if len(months) > api.MaxRangeMonths {
			return eris.Errorf("range too long: at most %d months", api.MaxRangeMonths)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		period := generic.Period{Start: from.Period().Start, End: to.Period().End}
		snap, err := engine.Load(ctx, st, period)
		if err != nil {
			return eris.Wrap(err, "payroll")
		}
		payrolls, err := engine.ComputePayrollMonths(ctx, snap, months, opts)
		if err != nil {
			return eris.Wrap(err, "payroll")
		}

		if payrollFormat == "json" {
			dtos := make([]api.PayrollDTO, 0, len(payrolls))
			for _, p := range payrolls {
				dtos = append(dtos, api.ToPayrollDTO(p))
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(dtos)
		}
		for _, p := range payrolls {
			formatPayroll(os.Stdout, p)
		}
		return nil
	},
}

func formatPayroll(w io.Writer, p payroll.Payroll) {
	fmt.Fprintf(w, "Payroll %s\n", p.Month)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MANAGER\tROLE\tGEO\tTEAM\tSALES\tREVENUE\tSHIFTS\tSHIFT PAY\tBONUS\tPENALTY\tTOTAL")
	for _, l := range p.Lines {
		bonus := l.ProductBonus.Add(l.DailyBonus).Add(l.MonthlyBonus).Add(l.TeamBonus).Add(l.Bonus)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%d+%d\t%s\t%s\t%s\t%s\n",
			l.Name,
			l.Role,
			l.PrimaryGeo,
			l.TeamGroup,
			l.SalesCount,
			l.Revenue.StringFixed(2),
			l.RegularShifts,
			l.MultiGeoShifts,
			l.ShiftPay.StringFixed(2),
			bonus.StringFixed(2),
			l.Penalty.StringFixed(2),
			l.TotalSalary.StringFixed(2),
		)
	}
	tw.Flush() //nolint:errcheck
	if p.Teams.Winner != "" {
		fmt.Fprintf(w, "Team winner: %s\n", p.Teams.Winner)
	}
	fmt.Fprintf(w, "Total: %s\n\n", p.Total.StringFixed(2))
}

func init() {
	payrollCmd.Flags().StringVar(&payrollMonth, "month", "", "payroll month YYYY-MM (default current month)")
	payrollCmd.Flags().StringVar(&payrollTo, "to", "", "last month of a range YYYY-MM")
	payrollCmd.Flags().StringVar(&payrollFormat, "format", "table", "output format: table or json")
	rootCmd.AddCommand(payrollCmd)
}
