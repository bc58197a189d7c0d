package main

import (
	"fmt"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cuttingtool/toolinspect/pkg/config"
	"github.com/cuttingtool/toolinspect/pkg/utils/service"
)

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "install",
		Short:   "Install toolinspect daemon (per user)",
		GroupID: gInstallation,
		Long: `Install toolinspect daemon as a systemd user service.

This makes the daemon run in the background and start automatically when you
log in. The config file is created with defaults if it does not exist yet.
Set GEMINI_API_KEY in the service environment to enable image analysis.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.NewFile(configPath)
			if err != nil {
				return err
			}

			err = service.Install(configPath)
			if err != nil {
				return fmt.Errorf("failed to install daemon: %v", err)
			}

			err = conf.Save()
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to save config")
			}

			logrus.Infof("installation succeeded")

			exePath, _ := os.Executable()

			cmd.Printf("`systemd' will use current binary (%s) at startup so please make sure you do not move this binary. Once this binary is moved or deleted, you will need to run ``toolinspect install'' again.\n", exePath)

			return nil
		},
	}
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall",
		Short:   "Uninstall toolinspect daemon",
		GroupID: gInstallation,
		Long: `Uninstall toolinspect daemon from systemd.

The config file and the report history are kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := service.Uninstall()
			if err != nil {
				return fmt.Errorf("failed to uninstall daemon: %v", err)
			}

			logrus.Infof("successfully uninstalled toolinspect daemon")

			cmd.Printf("Config and history are kept in %s. Remove the directory to delete them.\n", config.DefaultDir())

			return nil
		},
	}
}
