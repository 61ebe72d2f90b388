package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weibaohui/negotiator/config"
	"github.com/weibaohui/negotiator/internal/app"
	"github.com/weibaohui/negotiator/internal/pkg/llm"
	"github.com/weibaohui/negotiator/internal/pkg/metrics"
)

type fakeGenerator struct{}

func (fakeGenerator) Generate(ctx context.Context, req llm.Request) string {
	if strings.Contains(req.Prompt, "Buyer's message") && strings.Contains(req.Prompt, "$720") {
		return "Deal! $720 works for me."
	}
	if req.Role == "buyer" {
		return "Would you take $720?"
	}
	return "I could go to $850."
}

// executeCommand runs a command and returns its output
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func useFakeApp(t *testing.T) {
	t.Helper()
	original := newApp
	newApp = func(cfg *config.Config) (*app.App, error) {
		cfg.Negotiation.TurnPause = 0
		cfg.Voice.Enabled = false
		return app.NewWithGenerator(cfg, fakeGenerator{}, metrics.New())
	}
	t.Cleanup(func() {
		newApp = original
		autoRounds = 0
		configPath = ""
	})
}

func TestAutoCommandReachesDeal(t *testing.T) {
	useFakeApp(t)

	output, err := executeCommand(rootCmd, "auto", "--config", "missing.yaml", "--item", "Bike", "--rounds", "3")
	require.NoError(t, err)

	assert.Contains(t, output, `Negotiating "Bike" (up to 3 rounds)`)
	assert.Contains(t, output, "[seller · round 0]")
	assert.Contains(t, output, "[buyer · round 1] Would you take $720?")
	assert.Contains(t, output, "Deal! $720 works for me.")
	assert.Contains(t, output, "Status: concluded")
	assert.Contains(t, output, "Final price: $720")
}

func TestAutoCommandFallsBackToConfigRounds(t *testing.T) {
	useFakeApp(t)
	original := newApp
	newApp = func(cfg *config.Config) (*app.App, error) {
		cfg.Negotiation.AutoRounds = 2
		return original(cfg)
	}

	output, err := executeCommand(rootCmd, "auto", "--config", "missing.yaml", "--rounds", "0")
	require.NoError(t, err)
	assert.Contains(t, output, "(up to 2 rounds)")
}

func TestLoadConfigFallsBackToEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "from-env.yaml")
	configPath = ""
	cfg := loadConfig()
	assert.NotNil(t, cfg)
	assert.Equal(t, config.Default().Server.Port, cfg.Server.Port)
}
