package cli

import (
	"strings"
	"testing"
)

func TestUsageCountsOracleCalls(t *testing.T) {
	homeDir := createTestHome(t)
	writeConfig(t, homeDir, validConfigBody+"\n[costs]\ndaily_limit = 2.5\n")
	useFakeProvider(t, "hello from llm")

	if _, err := executeRoot(t, "prompt", "-p", "hello"); err != nil {
		t.Fatalf("execute prompt: %v", err)
	}

	out, err := executeRoot(t, "usage")
	if err != nil {
		t.Fatalf("execute usage: %v", err)
	}
	// One classification call and one answer call.
	if !strings.Contains(out, "today: $0.0000 (2 calls) of $2.50") {
		t.Fatalf("unexpected usage output %q", out)
	}
	if !strings.Contains(out, "month: $0.0000 (2 calls)\n") {
		t.Fatalf("unexpected usage output %q", out)
	}
}
