package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"lww-crdt/backend/sim"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// ----- Helper functions -----

const testConfig = `
Seed = 7
Nodes = 4
LogLevel = "error"
PReject = 0.3
NewObjectProbability = 0.5

[Budgets]
Create = 5
Read = 5
Update = 30
Delete = 2

[Latency]
Min = 1
Max = 4
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sim.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// runApp runs the CLI and returns what it printed. Exit codes are returned as
// errors instead of terminating the test binary.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"lwwsim"}, args...))
	return out.String(), err
}

// ----- Tests -----

func Test_CLI_Run(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := runApp(t, "run", "--config", path, "--seed", "1", "--nodes", "2")
	require.NoError(t, err)

	// flags win over the file
	require.Contains(t, out, "nodes:       2\n")
	require.Contains(t, out, "converged\n")
	require.Contains(t, out, "quarantined: ")
}

func Test_CLI_Run_Deterministic(t *testing.T) {
	path := writeConfig(t, testConfig)

	first, err := runApp(t, "run", "-c", path, "--seed", "1", "--nodes", "2")
	require.NoError(t, err)
	second, err := runApp(t, "run", "-c", path, "--seed", "1", "--nodes", "2")
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func Test_CLI_Run_Defaults(t *testing.T) {
	out, err := runApp(t, "run", "--seed", "3", "--preject", "1", "--log-level", "error")
	require.NoError(t, err)
	require.Contains(t, out, "nodes:       3\n")
	require.Contains(t, out, "converged\n")
}

func Test_CLI_Run_InvalidConfig(t *testing.T) {
	_, err := runApp(t, "run", "--nodes", "0")
	require.Error(t, err)

	_, err = runApp(t, "run", "--preject", "1.5")
	require.Error(t, err)

	_, err = runApp(t, "run", "--config", filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	_, err = runApp(t, "run", "--log-level", "loud")
	require.Error(t, err)
}

func Test_CLI_Verdict(t *testing.T) {
	require.NoError(t, verdict(sim.Report{Nodes: 2}))

	err := verdict(sim.Report{Nodes: 2, Violations: []error{sim.ErrDiverged}})
	require.Error(t, err)

	var exit cli.ExitCoder
	require.ErrorAs(t, err, &exit)
	require.Equal(t, exitDiverged, exit.ExitCode())
	require.Contains(t, err.Error(), sim.ErrDiverged.Error())
}
