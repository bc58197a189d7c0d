package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewCalibrationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "calibration",
		Aliases: []string{"calibrate", "cali"},
		Short:   "Calibrate measurements against an angle of known size",
		Long: `Calibrate measurements against an angle of known size.

Start a session on one of the active reports, mark three points on its image
(first arm, vertex, second arm) and confirm the true size of the angle they
span. The difference between the declared and the measured angle is added to
every active measurement, which is then re-checked against the standards.`,
		GroupID: gCalibration,
	}

	// start
	reportIndex := 0
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a calibration session on an active report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := apiClient.StartCalibration(reportIndex)
			if err != nil {
				return fmt.Errorf("failed to start calibration: %w", err)
			}
			cmd.Println("Calibration started.")
			printCalibrationStatus(cmd, *st)
			return nil
		},
	}
	startCmd.Flags().IntVarP(&reportIndex, "report", "r", 0, "index of the active report whose image is used")

	// point
	pointCmd := &cobra.Command{
		Use:   "point <x> <y>",
		Short: "Mark a point on the calibration image",
		Long: `Mark a point on the calibration image, in image pixels.

The first point lies on one arm of the angle, the second is the vertex and the
third lies on the other arm. Points beyond the third are ignored.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := parseFloatArg(args[0], "x")
			if err != nil {
				return err
			}
			y, err := parseFloatArg(args[1], "y")
			if err != nil {
				return err
			}

			res, err := apiClient.AddCalibrationPoint(x, y)
			if err != nil {
				return fmt.Errorf("failed to add point: %w", err)
			}
			if !res.Accepted {
				cmd.Println(color.YellowString("Point ignored: all points are already marked. Reset to start over."))
			}
			printCalibrationStatus(cmd, res.Status)
			return nil
		},
	}

	// reset
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the marked points",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := apiClient.ResetCalibration()
			if err != nil {
				return fmt.Errorf("failed to reset calibration: %w", err)
			}
			printCalibrationStatus(cmd, *st)
			return nil
		},
	}

	// confirm
	confirmCmd := &cobra.Command{
		Use:   "confirm [known angle]",
		Short: "Declare the true angle and apply the offset",
		Long: `Declare the true size of the marked angle, in degrees, and apply the
resulting offset to every active measurement. Without an argument the
suggested default is used. The angle must be a plain number: "93" is
accepted, "93deg" or "93°" is not.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var known *string
			if len(args) == 1 {
				known = &args[0]
			}

			res, err := apiClient.ConfirmCalibration(known)
			if err != nil {
				return fmt.Errorf("failed to confirm calibration: %w", err)
			}
			printCalibrationStatus(cmd, res.Status)
			cmd.Println()
			printResultSet(cmd, &res.Results)
			return nil
		},
	}

	// cancel
	cancelCmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the calibration session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := apiClient.CancelCalibration()
			if err != nil {
				return fmt.Errorf("failed to cancel calibration: %w", err)
			}
			cmd.Println("Calibration cancelled. Measurements are unchanged.")
			return nil
		},
	}

	// status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show current calibration status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := apiClient.GetCalibration()
			if err != nil {
				return fmt.Errorf("failed to fetch calibration status: %w", err)
			}
			printCalibrationStatus(cmd, *st)
			return nil
		},
	}

	cmd.AddCommand(startCmd, pointCmd, resetCmd, confirmCmd, cancelCmd, statusCmd)
	return cmd
}
