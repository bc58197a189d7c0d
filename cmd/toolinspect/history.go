package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cuttingtool/toolinspect/pkg/types"
)

// reportName is how a history entry is referred to in messages.
func reportName(r types.ReportSummary) string {
	if r.FileName != "" {
		return r.FileName
	}
	return r.ID
}

func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Browse and manage saved reports",
		GroupID: gHistory,
	}

	cmd.AddCommand(
		newHistoryListCommand(),
		newHistoryShowCommand(),
		newHistoryLoadCommand(),
		newHistoryImageCommand(),
		newHistoryDeleteCommand(),
		newHistoryClearCommand(),
		newHistoryStatsCommand(),
		newHistoryRetentionCommand(),
		newHistoryPruneCommand(),
	)

	return cmd
}

func newHistoryListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved reports, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := apiClient.ListHistory()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				cmd.Println("History is empty.")
				return nil
			}
			for _, r := range list {
				cmd.Printf("%s  %s  %-8s %-24s %s\n",
					r.ID, r.Timestamp.Local().Format(time.DateTime), r.Material, reportName(r), bold("%s", r.Summary))
			}
			return nil
		},
	}
}

func newHistoryShowCommand() *cobra.Command {
	asJSON := false

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := apiClient.GetHistoryReport(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, r)
			}
			cmd.Printf("Saved: %s\n", r.Timestamp.Local().Format(time.DateTime))
			cmd.Printf("Tool material: %s\n\n", bold("%s", r.Material))
			printReport(cmd, 0, *r)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	return cmd
}

func newHistoryLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load <id>",
		Short: "Make a saved report the active result",
		Long: `Make a saved report the only active result, so it can be calibrated,
exported or used for recommendations.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := apiClient.LoadHistoryReport(args[0])
			if err != nil {
				return err
			}
			printResultSet(cmd, rs)
			return nil
		},
	}
}

func newHistoryImageCommand() *cobra.Command {
	var (
		output    string
		thumbnail bool
	)

	cmd := &cobra.Command{
		Use:   "image <id>",
		Short: "Save the image of a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var (
				b   []byte
				err error
				ext = ".jpg"
			)
			if thumbnail {
				b, err = apiClient.GetHistoryThumbnail(args[0])
				ext = ".webp"
			} else {
				b, err = apiClient.GetHistoryImage(args[0])
			}
			if err != nil {
				return err
			}

			if output == "" {
				output = args[0] + ext
			}
			if err := os.WriteFile(output, b, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			logrus.Infof("saved image to %s", output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "output file (defaults to <id>.jpg)")
	f.BoolVar(&thumbnail, "thumbnail", false, "save the WebP thumbnail instead of the full image")

	return cmd
}

func newHistoryDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved report",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ret, err := apiClient.DeleteHistoryReport(args[0])
			if err != nil {
				return err
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			logrus.Infof("successfully deleted report %s", args[0])
			return nil
		},
	}
}

func newHistoryClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved report",
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.ClearHistory()
			if err != nil {
				return err
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	}
}

func newHistoryStatsCommand() *cobra.Command {
	material := ""

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-angle statistics across saved reports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := apiClient.GetHistoryStats(material)
			if err != nil {
				return err
			}

			cmd.Printf("Reports: %s (%d failed)\n", bold("%d", st.Reports), st.Failed)
			if len(st.Angles) == 0 {
				return nil
			}
			cmd.Println()
			cmd.Printf("  %-22s %6s %8s %8s %8s %8s %10s\n", "Angle", "Count", "Mean", "StdDev", "Min", "Max", "Compliant")
			for _, a := range st.Angles {
				cmd.Printf("  %-22s %6d %7.1f° %7.2f° %7.1f° %7.1f° %9.0f%%\n",
					a.AngleName, a.Count, a.Mean, a.StdDev, a.Min, a.Max, a.ComplianceRate*100)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&material, "material", "m", "", "only include reports of this tool material")

	return cmd
}

func newHistoryRetentionCommand() *cobra.Command {
	var (
		cron string
		days int
		skip bool
	)

	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Show or change how long reports are kept",
		Long: `Show or change how long reports are kept.

Reports beyond the history limit are always removed, oldest first. With a
retention period of more than 0 days, older reports are removed as well. The
cleanup runs on a cron schedule.`,
		Example: `  toolinspect history retention
  toolinspect history retention --days 30
  toolinspect history retention --cron "0 3 * * *"
  toolinspect history retention --skip`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				cronArg *string
				daysArg *int
			)
			if cmd.Flags().Changed("cron") {
				cronArg = &cron
			}
			if cmd.Flags().Changed("days") {
				daysArg = &days
			}

			st, err := apiClient.GetRetention()
			if cronArg != nil || daysArg != nil {
				st, err = apiClient.SetRetention(cronArg, daysArg)
			}
			if err == nil && skip {
				st, err = apiClient.SkipPrune()
			}
			if err != nil {
				return err
			}

			cmd.Printf("Schedule: %s\n", bold("%s", st.Cron))
			if !st.NextRun.IsZero() {
				cmd.Printf("Next run: %s\n", st.NextRun.Local().Format(time.DateTime))
			}
			if st.Days > 0 {
				cmd.Printf("Keep reports for: %s\n", bold("%d days", st.Days))
			} else {
				cmd.Printf("Keep reports for: %s\n", bold("until the limit is reached"))
			}
			cmd.Printf("Limit: %s\n", bold("%d reports", st.Limit))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cron, "cron", "", "cleanup schedule (cron expression or descriptor such as @daily)")
	f.IntVar(&days, "days", 0, "remove reports older than this many days (0 disables)")
	f.BoolVar(&skip, "skip", false, "skip the next scheduled cleanup")

	return cmd
}

func newHistoryPruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Apply the retention rules now",
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.PruneHistory()
			if err != nil {
				return err
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	}
}
