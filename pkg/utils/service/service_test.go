package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fakeSystemd(t *testing.T) (dir string, calls *[]string) {
	t.Helper()
	dir = t.TempDir()
	calls = &[]string{}

	origDir, origCtl := unitDir, systemctl
	unitDir = func() (string, error) { return dir, nil }
	systemctl = func(args ...string) error {
		*calls = append(*calls, strings.Join(args, " "))
		return nil
	}
	t.Cleanup(func() { unitDir, systemctl = origDir, origCtl })
	return dir, calls
}

func TestRender(t *testing.T) {
	unit, err := Render("/usr/local/bin/toolinspect", "/home/me/.config/toolinspect/config.json")
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	want := "ExecStart=/usr/local/bin/toolinspect daemon --config=/home/me/.config/toolinspect/config.json\n"
	if !strings.Contains(unit, want) {
		t.Fatalf("unit does not contain %q:\n%s", want, unit)
	}
	if !strings.Contains(unit, "WantedBy=default.target") {
		t.Fatalf("unit has no install section:\n%s", unit)
	}
}

func TestInstallUninstall(t *testing.T) {
	dir, calls := fakeSystemd(t)

	if err := Install("config.json"); err != nil {
		t.Fatalf("Install returned error: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, UnitName))
	if err != nil {
		t.Fatalf("unit not written: %v", err)
	}
	if !strings.Contains(string(b), "daemon --config=/") {
		t.Fatalf("config path should be absolute:\n%s", b)
	}

	if err := Uninstall(); err != nil {
		t.Fatalf("Uninstall returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, UnitName)); !os.IsNotExist(err) {
		t.Fatalf("unit should be removed, stat err %v", err)
	}

	want := []string{
		"daemon-reload",
		"enable --now " + UnitName,
		"disable --now " + UnitName,
		"daemon-reload",
	}
	if strings.Join(*calls, ",") != strings.Join(want, ",") {
		t.Fatalf("systemctl calls = %v, want %v", *calls, want)
	}

	// uninstalling twice is fine
	if err := Uninstall(); err != nil {
		t.Fatalf("second Uninstall returned error: %v", err)
	}
}
