package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"start", "prompt", "poll", "triggers", "usage", "config", "version"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil {
			t.Fatalf("find %s command: %v", name, err)
		}
		if sub == nil || sub.Name() != name {
			t.Fatalf("%s command not registered", name)
		}
	}
	for _, args := range [][]string{{"triggers", "list"}, {"triggers", "add"}, {"triggers", "delete"}} {
		sub, _, err := cmd.Find(args)
		if err != nil || sub.Name() != args[1] {
			t.Fatalf("expected %v registered, got %v (%v)", args, sub, err)
		}
	}
}

func TestFirstRunWritesConfigAndStops(t *testing.T) {
	homeDir := createTestHome(t)
	useFakeProvider(t, "unused")

	out, err := executeRoot(t, "triggers", "list")
	if !IsFirstRun(err) {
		t.Fatalf("expected first run signal, got %v", err)
	}
	if !strings.Contains(out, "First run setup complete.") {
		t.Fatalf("expected onboarding guidance, got %q", out)
	}
	if _, err := os.Stat(filepath.Join(homeDir, "config.toml")); err != nil {
		t.Fatalf("expected config written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(homeDir, "data", "conversations")); err != nil {
		t.Fatalf("expected conversations dir: %v", err)
	}
}

func TestVersionPrintsBuildInfo(t *testing.T) {
	createTestHome(t)

	out, err := executeRoot(t, "version")
	if err != nil {
		t.Fatalf("execute version: %v", err)
	}
	if !strings.HasPrefix(out, "remindclaw dev (unknown)") {
		t.Fatalf("unexpected version output %q", out)
	}
}
