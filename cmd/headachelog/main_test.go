package main

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/headachelog/internal/config"
	"github.com/headachelog/internal/journal"
	"github.com/headachelog/internal/service"
)

const testDevice = "3f0c2a8e-5d1b-4c7e-9a51-2b6f8d4e7c10"

func TestSampleEntriesAreValid(t *testing.T) {
	entries := sampleEntries("2024-06-30", 60, rand.New(rand.NewSource(42)))
	if len(entries) == 0 || len(entries) > 60 {
		t.Fatalf("unexpected number of entries %d", len(entries))
	}
	for date, e := range entries {
		if date > "2024-06-30" || date < journal.MustAddDays("2024-06-30", -59) {
			t.Fatalf("entry %s outside requested window", date)
		}
		if err := e.Validate(); err != nil {
			t.Fatalf("entry %s invalid: %v", date, err)
		}
		if e.PeakPain < e.PainLevel {
			t.Fatalf("entry %s has peak below pain: %+v", date, e)
		}
	}
}

func newTestRoot(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cfg := config.AppConfig{
		LocalStorePath: t.TempDir(),
		DatabasePath:   filepath.Join(t.TempDir(), "test.db"),
		LogLevel:       "error",
	}
	root := &cobra.Command{Use: "headachelog", SilenceUsage: true, SilenceErrors: true}
	addInitUser(root, &cfg)
	addExport(root, &cfg)
	addImport(root, &cfg)
	addSeed(root, &cfg)

	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	return root, out
}

func run(t *testing.T, root *cobra.Command, args ...string) error {
	t.Helper()
	root.SetArgs(args)
	return root.Execute()
}

func TestImportThenExportLocalDevice(t *testing.T) {
	root, out := newTestRoot(t)

	backup := filepath.Join(t.TempDir(), "backup.json")
	content := `{"exportDate":"2024-06-01T00:00:00Z","entries":{"2024-05-01":{"painLevel":2,"notes":"from file"},"2024-05-02":{"aspirin":"1"}}}`
	if err := os.WriteFile(backup, []byte(content), 0o644); err != nil {
		t.Fatalf("write backup: %v", err)
	}

	if err := run(t, root, "import", "--device", testDevice, "--file", backup); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if !strings.Contains(out.String(), "imported 2/2 entries") {
		t.Fatalf("unexpected output %q", out.String())
	}

	exported := filepath.Join(t.TempDir(), "out.json")
	if err := run(t, root, "export", "--device", testDevice, "--out", exported); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	raw, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var got service.Backup
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(got.Entries) != 2 || got.Entries["2024-05-01"].Notes != "from file" || got.Entries["2024-05-02"].Aspirin != 1 {
		t.Fatalf("unexpected export %+v", got.Entries)
	}
}

func TestRemoteExportNeedsExistingAccount(t *testing.T) {
	root, out := newTestRoot(t)

	if err := run(t, root, "export", "--email", "nobody@example.com"); err == nil {
		t.Fatalf("expected unknown account to fail")
	}

	if err := run(t, root, "init-user", "--email", "Me@Example.com", "--password", "secret1"); err != nil {
		t.Fatalf("init-user failed: %v", err)
	}
	if !strings.Contains(out.String(), "account me@example.com created") {
		t.Fatalf("unexpected output %q", out.String())
	}

	out.Reset()
	if err := run(t, root, "export", "--email", "me@example.com"); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out.String(), `"entries": {}`) {
		t.Fatalf("expected empty backup, got %q", out.String())
	}
}

func TestTargetFlagsAreExclusive(t *testing.T) {
	cases := [][]string{
		{"seed"},
		{"seed", "--email", "a@example.com", "--device", testDevice},
		{"seed", "--device", "not-a-uuid"},
		{"seed", "--device", testDevice, "--days", "0"},
	}
	for _, args := range cases {
		root, _ := newTestRoot(t)
		if err := run(t, root, args...); err == nil {
			t.Fatalf("expected %v to fail", args)
		}
	}
}
