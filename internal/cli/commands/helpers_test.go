package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/colresolve/internal/cli/config"
)

// testConfig returns the defaults with the given render mode.
func testConfig(mode string) *config.Config {
	cfg := getConfig()
	cp := *cfg
	cp.Mode = mode
	cp.LogFile = config.DisabledLogFile
	return &cp
}

// execute runs cmd with cfg as the current configuration.
func execute(t *testing.T, cmd *cobra.Command, cfg *config.Config, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	config.SetCurrentConfig(cfg)
	t.Cleanup(config.ResetConfig)

	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}
