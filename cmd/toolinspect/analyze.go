package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cuttingtool/toolinspect/pkg/analyzer"
	"github.com/cuttingtool/toolinspect/pkg/export"
)

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(b))
	return nil
}

func NewAnalyzeCommand() *cobra.Command {
	var (
		material string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:     "analyze <image>...",
		Short:   "Analyze images of a cutting tool",
		GroupID: gBasic,
		Long: `Analyze images of a cutting tool.

Each image is measured by the analysis model and every angle is checked against
the standard range for the tool material. The images replace the active results
and are saved to history. Any previous calibration offset is discarded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logrus.Infof("analyzing %d image(s), this can take a while", len(args))

			rs, err := apiClient.Analyze(args, material)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd, rs)
			}
			printResultSet(cmd, rs)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&material, "material", "m", "", "tool material (defaults to the daemon's material)")
	f.BoolVar(&asJSON, "json", false, "print results as JSON")

	return cmd
}

func NewResultsCommand() *cobra.Command {
	asJSON := false

	cmd := &cobra.Command{
		Use:     "results",
		Short:   "Show the active results",
		GroupID: gBasic,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rs, err := apiClient.GetResults()
			if err != nil {
				return fmt.Errorf("failed to get results: %w", err)
			}
			if asJSON {
				return printJSON(cmd, rs)
			}
			printResultSet(cmd, rs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear the active results",
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.ClearResults()
			if err != nil {
				return fmt.Errorf("failed to clear results: %w", err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	})

	output := ""
	imageCmd := &cobra.Command{
		Use:   "image <index>",
		Short: "Save the image an active report was analyzed on",
		Long: `Save the image an active report was analyzed on.

Use it to find pixel coordinates for 'toolinspect calibration point'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			index, err := parseIntArg(args, "index")
			if err != nil {
				return err
			}

			b, err := apiClient.GetReportImage(index)
			if err != nil {
				return err
			}

			if output == "" {
				output = fmt.Sprintf("report-%d.jpg", index)
			}
			if err := os.WriteFile(output, b, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			logrus.Infof("saved image to %s", output)
			return nil
		},
	}
	imageCmd.Flags().StringVarP(&output, "output", "o", "", "output file (defaults to report-<index>.jpg)")
	cmd.AddCommand(imageCmd)

	return cmd
}

func NewRecommendCommand() *cobra.Command {
	var (
		profile analyzer.WorkpieceProfile
		raw     bool
	)

	cmd := &cobra.Command{
		Use:     "recommend",
		Short:   "Ask for engineering recommendations for the active results",
		GroupID: gBasic,
		Example: `  toolinspect recommend --workpiece "Aluminium 6061" --outcome "Mirror finish"
  toolinspect recommend --workpiece "Inconel 718" --outcome "Tool life" --hardness "40 HRC"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(profile.Material) == "" || strings.TrimSpace(profile.Outcome) == "" {
				return analyzer.ErrIncompleteProfile
			}

			text, err := apiClient.Recommend(profile)
			if err != nil {
				return err
			}

			if raw {
				cmd.Println(text)
				return nil
			}

			r, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(100),
			)
			if err != nil {
				cmd.Println(text)
				return nil
			}
			out, err := r.Render(text)
			if err != nil {
				cmd.Println(text)
				return nil
			}
			cmd.Print(out)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&profile.Material, "workpiece", "", "workpiece material (required)")
	f.StringVar(&profile.Outcome, "outcome", "", "target machining outcome (required)")
	f.StringVar(&profile.Hardness, "hardness", "", "workpiece hardness")
	f.StringVar(&profile.Ductility, "ductility", "", "workpiece ductility")
	f.StringVar(&profile.ThermalConductivity, "thermal-conductivity", "", "workpiece thermal conductivity")
	f.BoolVar(&raw, "raw", false, "print the markdown answer without rendering it")

	return cmd
}

func exportFormats() string {
	var names []string
	for _, f := range export.Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

func NewExportCommand() *cobra.Command {
	output := ""

	cmd := &cobra.Command{
		Use:     "export <format>",
		Short:   "Export the active results",
		GroupID: gBasic,
		Long: `Export the active results as a report document or chart.

Supported formats: ` + exportFormats() + `.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			format, err := export.ParseFormat(strings.TrimPrefix(args[0], "chart."))
			if err != nil {
				return fmt.Errorf("%w (supported: %s)", err, exportFormats())
			}

			b, err := apiClient.Export(string(format))
			if err != nil {
				return err
			}

			if output == "" {
				output = format.FileName()
			}
			if err := os.WriteFile(output, b, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			logrus.Infof("exported %s to %s", format, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (defaults to a name derived from the format)")

	return cmd
}
