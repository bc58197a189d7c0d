// Package service installs the daemon as a systemd user service.
package service

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/sirupsen/logrus"
)

const UnitName = "toolinspect.service"

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=toolinspect cutting tool inspection daemon
After=network-online.target

[Service]
Type=simple
ExecStart={{ .Executable }} daemon --config={{ .ConfigPath }}
ExecReload=/bin/kill -HUP $MAINPID
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`))

// Seams for tests.
var (
	unitDir = func() (string, error) {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "systemd", "user"), nil
	}
	systemctl = func(args ...string) error {
		out, err := exec.Command("systemctl", append([]string{"--user"}, args...)...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("systemctl %v: %w: %s", args, err, bytes.TrimSpace(out))
		}
		return nil
	}
)

// UnitPath returns where the unit file is installed.
func UnitPath() (string, error) {
	dir, err := unitDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate the systemd user directory: %w", err)
	}
	return filepath.Join(dir, UnitName), nil
}

// Render returns the unit file that runs exe with the config at configPath.
func Render(exe, configPath string) (string, error) {
	var buf bytes.Buffer
	err := unitTemplate.Execute(&buf, struct {
		Executable string
		ConfigPath string
	}{exe, configPath})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func Install(configPath string) error {
	// Get the path to the current executable
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}
	configPath, err = filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the config: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	unit, err := Render(exePath, configPath)
	if err != nil {
		return fmt.Errorf("failed to render unit file: %w", err)
	}

	unitPath, err := UnitPath()
	if err != nil {
		return err
	}

	logrus.Infof("writing systemd unit to %s", unitPath)

	err = os.MkdirAll(filepath.Dir(unitPath), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(unitPath), err)
	}

	// warn if the file already exists
	if _, err := os.Stat(unitPath); err == nil {
		logrus.Warnf("%s already exists, overwriting", unitPath)
	}

	err = os.WriteFile(unitPath, []byte(unit), 0o644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", unitPath, err)
	}

	logrus.Infof("starting toolinspect")

	if err := systemctl("daemon-reload"); err != nil {
		return err
	}
	if err := systemctl("enable", "--now", UnitName); err != nil {
		return fmt.Errorf("failed to start %s: %w", UnitName, err)
	}

	return nil
}
