package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Brottuetchen/Quartalsreport/generic"
)

var (
	blocksType     string
	blocksStart    string
	blocksEnd      string
	blocksGrouping string
)

var blocksCmd = &cobra.Command{
	Use:     "blocks",
	Short:   "Show the rounded report period and its time blocks",
	Example: `  reportctl blocks --type quarterly --start 2025-11-12 --end 2025-11-12 --grouping weekly`,
	RunE:    runBlocks,
}

func init() {
	f := blocksCmd.Flags()
	f.StringVar(&blocksType, "type", string(generic.ReportQuarterly), "Report type")
	f.StringVar(&blocksStart, "start", "", "Start date (YYYY-MM-DD)")
	f.StringVar(&blocksEnd, "end", "", "End date (YYYY-MM-DD)")
	f.StringVar(&blocksGrouping, "grouping", string(generic.GroupByMonth), "Time grouping")

	_ = blocksCmd.MarkFlagRequired("start")
	_ = blocksCmd.MarkFlagRequired("end")
}

func runBlocks(cmd *cobra.Command, _ []string) error {
	reportType, err := generic.ParseReportType(blocksType)
	if err != nil {
		return err
	}
	grouping, err := generic.ParseGrouping(blocksGrouping)
	if err != nil {
		return err
	}
	start, err := generic.ParseDate(blocksStart)
	if err != nil {
		return err
	}
	end, err := generic.ParseDate(blocksEnd)
	if err != nil {
		return err
	}

	period, err := generic.RoundScope(reportType, start, end)
	if err != nil {
		return err
	}
	blocks, err := generic.Partition(period, grouping)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Period: %s .. %s\n\n", period.Start, period.End)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tLabel\tStart\tEnd")
	for _, b := range blocks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", b.Ordinal, b.Label, b.Start, b.End)
	}
	return tw.Flush()
}
