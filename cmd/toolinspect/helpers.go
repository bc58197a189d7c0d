package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cuttingtool/toolinspect/pkg/calibration"
	"github.com/cuttingtool/toolinspect/pkg/types"
)

func parseIntArg(args []string, valueName string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("invalid number of arguments")
	}

	value, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", valueName, err)
	}

	return value, nil
}

func parseFloatArg(s, valueName string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", valueName, err)
	}
	return value, nil
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

func summaryText(r types.Report) string {
	s := r.Summary()
	switch {
	case r.Error != "":
		return color.RedString(s)
	case s == "Passed":
		return color.GreenString(s)
	case r.Results == nil:
		return s
	}
	return color.YellowString(s)
}

func printResultSet(cmd *cobra.Command, rs *types.ResultSet) {
	if len(rs.Reports) == 0 {
		cmd.Println("No active results. Run 'toolinspect analyze' or load a report from history.")
		return
	}

	cmd.Printf("Tool material: %s\n", bold("%s", rs.Material))
	if rs.Offset != 0 {
		cmd.Printf("Calibration offset: %s\n", bold("%+.1f°", rs.Offset))
	}

	for i, r := range rs.Reports {
		cmd.Println()
		printReport(cmd, i, r)
	}
}

func printReport(cmd *cobra.Command, index int, r types.Report) {
	name := r.FileName
	if name == "" {
		name = r.ID
	}
	cmd.Printf("%s %s\n", bold("[%d] %s", index, name), summaryText(r))
	if r.Error != "" {
		cmd.Printf("  %s\n", color.RedString(r.Error))
		return
	}

	for _, m := range r.Results {
		line := fmt.Sprintf("  %s %-22s %s  standard %s  confidence %s",
			bool2Text(m.IsCompliant), m.AngleName, bold("%6.1f°", m.MeasuredValue), m.Standard, m.Confidence)
		if m.OriginalValue != nil {
			line += fmt.Sprintf("  (was %.1f°)", *m.OriginalValue)
		}
		cmd.Println(line)
		if m.Recommendation != "" {
			cmd.Printf("      %s\n", m.Recommendation)
		}
	}
}

func printCalibrationStatus(cmd *cobra.Command, st calibration.Status) {
	phase := string(st.Phase)
	switch st.Phase {
	case calibration.PhaseReady, calibration.PhaseConfirmed:
		phase = color.GreenString(phase)
	case calibration.PhaseCancelled:
		phase = color.RedString(phase)
	}
	cmd.Printf("Phase: %s\n", bold("%s", phase))
	if st.Phase == calibration.PhaseIdle {
		return
	}

	if st.ReportID != "" {
		cmd.Printf("Report: %s\n", st.ReportID)
	}
	if !st.StartedAt.IsZero() {
		cmd.Printf("Started: %s\n", st.StartedAt.Local().Format(time.DateTime))
	}
	cmd.Printf("Points: %d/%d\n", len(st.Points), calibration.RequiredPoints)
	for i, p := range st.Points {
		cmd.Printf("  %d: (%.0f, %.0f)\n", i+1, p.X, p.Y)
	}
	if st.ComputedAngle != nil {
		cmd.Printf("Measured angle: %s\n", bold("%.1f°", *st.ComputedAngle))
	}
	if st.Offset != nil {
		cmd.Printf("Offset: %s\n", bold("%+.1f°", *st.Offset))
	}
	if st.CanConfirm {
		cmd.Printf("Confirm with 'toolinspect calibration confirm [angle]' (default %s°).\n", st.KnownAngleDefault)
	}
}
