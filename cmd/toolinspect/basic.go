package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cuttingtool/toolinspect/pkg/daemon"
	"github.com/cuttingtool/toolinspect/pkg/standards"
	"github.com/cuttingtool/toolinspect/pkg/version"
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "daemon",
		Hidden:  true,
		Short:   "Run toolinspect daemon in the foreground",
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("toolinspect daemon starting")
			return daemon.Run(configPath)
		},
	}
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "config",
		Short:   "Show the effective daemon configuration",
		GroupID: gAdvanced,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := apiClient.GetConfig()
			if err != nil {
				return fmt.Errorf("failed to get config: %w", err)
			}
			b, err := json.MarshalIndent(conf, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(b))
			return nil
		},
	}
}

func NewMaterialCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "material [name]",
		Short:   "Show or set the default tool material",
		GroupID: gBasic,
		Long: `Show or set the default tool material.

The material selects which standard ranges measurements are checked against.
Setting it re-evaluates the active results with the new ranges.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				conf, err := apiClient.GetConfig()
				if err != nil {
					return fmt.Errorf("failed to get config: %w", err)
				}
				cmd.Printf("Tool material: %s\n", bold("%s", conf.DefaultMaterial))
				return nil
			}

			ret, err := apiClient.SetMaterial(args[0])
			if err != nil {
				return fmt.Errorf("failed to set material: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set tool material to %s", args[0])

			return nil
		},
	}
}

func NewStandardsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "standards [material]",
		Short:   "List standard angle ranges",
		GroupID: gBasic,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				table standards.Table
				err   error
			)
			if len(args) == 1 {
				var angles map[string]standards.AngleRange
				angles, err = apiClient.GetMaterialStandards(args[0])
				table = standards.Table{args[0]: angles}
			} else {
				table, err = apiClient.GetStandards()
			}
			if err != nil {
				return fmt.Errorf("failed to get standards: %w", err)
			}

			printTable(cmd, table)
			return nil
		},
	}
}

func printTable(cmd *cobra.Command, table standards.Table) {
	materials := make([]string, 0, len(table))
	for m := range table {
		materials = append(materials, m)
	}
	sort.Strings(materials)

	for i, m := range materials {
		if i > 0 {
			cmd.Println()
		}
		cmd.Println(bold("%s:", m))

		angles := make([]string, 0, len(table[m]))
		for a := range table[m] {
			angles = append(angles, a)
		}
		sort.Strings(angles)
		for _, a := range angles {
			cmd.Printf("  %-22s %s\n", a, table[m][a])
		}
	}
}

func NewEvaluateCommand() *cobra.Command {
	material := ""

	cmd := &cobra.Command{
		Use:     "evaluate <angle name> <value>",
		Short:   "Check one angle value against the standards",
		GroupID: gBasic,
		Example: `  toolinspect evaluate "Rake Angle" 12
  toolinspect evaluate "Relief Angle" 11 --material Carbide`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseFloatArg(args[1], "value")
			if err != nil {
				return err
			}

			ev, err := apiClient.Evaluate(args[0], value, material)
			if err != nil {
				return err
			}

			cmd.Printf("%s %s %s\n", bool2Text(ev.Compliant), args[0], bold("%.1f°", value))
			cmd.Printf("  Standard: %s\n", ev.Standard)
			if ev.Recommendation != "" {
				cmd.Printf("  Recommendation: %s\n", ev.Recommendation)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&material, "material", "m", "", "tool material (defaults to the daemon's material)")

	return cmd
}
