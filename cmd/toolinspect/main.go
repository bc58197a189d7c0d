package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cuttingtool/toolinspect/pkg/client"
	"github.com/cuttingtool/toolinspect/pkg/config"
	"github.com/cuttingtool/toolinspect/pkg/version"
)

var (
	logLevel   = "info"
	configPath = config.DefaultPath()
	daemonAddr = config.DefaultListenAddr
)

var (
	gBasic        = "Inspection:"
	gCalibration  = "Calibration:"
	gHistory      = "History:"
	gAdvanced     = "Advanced:"
	gInstallation = "Installation:"
	commandGroups = []string{
		gBasic,
		gCalibration,
		gHistory,
		gAdvanced,
		gInstallation,
	}
)

var apiClient = client.NewClient(config.DefaultListenAddr)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: toolinspect daemon is not running")
		fmt.Fprintf(os.Stderr, "Is the daemon listening on %s? Start it with 'toolinspect daemon' or install it with 'toolinspect install'.\n", daemonAddr)
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Check that you are allowed to connect to the daemon address")
	} else if errors.Is(err, client.ErrModelUnavailable) {
		fmt.Fprintln(os.Stderr, "\nThe daemon has no analysis model. Set GEMINI_API_KEY in its environment or apiKey in the config and restart it.")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

// skipVersionCheck lists commands that work without a running daemon.
var skipVersionCheck = map[string]bool{
	"daemon":    true,
	"version":   true,
	"install":   true,
	"uninstall": true,
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toolinspect",
		Short: "toolinspect checks cutting tool geometry against ASME standards",
		Long: `toolinspect checks cutting tool geometry against ASME standards.

It sends photos of a cutting tool to an image analysis model, compares every
measured angle with the standard range for the tool material, and lets you
calibrate the measurements against an angle of known size.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			apiClient = client.NewClient(daemonAddr)

			if skipVersionCheck[cmd.Name()] {
				return nil
			}

			daemonVersion, err := apiClient.GetVersion()
			if err != nil {
				logrus.Debugf("failed to check daemon version: %v", err)
				return nil
			}
			if daemonVersion != version.Version {
				logrus.WithFields(logrus.Fields{
					"clientVersion": version.Version,
					"daemonVersion": daemonVersion,
				}).Warn("Version mismatch between client and daemon. Restart the daemon after upgrading so both run the same version.")
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&daemonAddr, "daemon-addr", daemonAddr, "toolinspect daemon address (host:port or URL)")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewConfigCommand(),
		NewMaterialCommand(),
		NewStandardsCommand(),
		NewEvaluateCommand(),
		NewAnalyzeCommand(),
		NewResultsCommand(),
		NewRecommendCommand(),
		NewExportCommand(),
		NewCalibrationCommand(),
		NewHistoryCommand(),
		NewEventsCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)

	return cmd
}
