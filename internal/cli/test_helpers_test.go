package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/neoclaw-ai/remindclaw/internal/config"
	"github.com/neoclaw-ai/remindclaw/internal/provider"
)

func createTestHome(t *testing.T) string {
	t.Helper()
	homeDir := filepath.Join(t.TempDir(), ".remindclaw")
	t.Setenv("REMINDCLAW_HOME", homeDir)
	return homeDir
}

const validConfigBody = `
[llm.default]
api_key = "test-key"
provider = "anthropic"
model = "claude-sonnet-4-6"

[channels.telegram]
enabled = false

[scheduler]
timezone = "UTC"
window_minutes = 30
`

func writeValidConfig(t *testing.T, homeDir string) {
	t.Helper()
	writeConfig(t, homeDir, validConfigBody)
}

func writeConfig(t *testing.T, homeDir, body string) {
	t.Helper()
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(homeDir, "config.toml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// useFakeProvider makes every oracle call answer with content.
func useFakeProvider(t *testing.T, content string) {
	t.Helper()
	origFactory := providerFactory
	t.Cleanup(func() { providerFactory = origFactory })
	providerFactory = func(_ config.LLMProviderConfig) (provider.Provider, error) {
		return fakeProvider{resp: &provider.ChatResponse{Content: content}}, nil
	}
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type fakeProvider struct {
	resp *provider.ChatResponse
	err  error
}

func (p fakeProvider) Chat(_ context.Context, _ provider.ChatRequest) (*provider.ChatResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.resp, nil
}
