//go:build blackbox

package blackbox

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var simtraderBin string

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "simtrader-blackbox-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmp)

	simtraderBin = filepath.Join(tmp, "simtrader")

	// Build the binary once for all tests.
	cmd := exec.Command("go", "build", "-o", simtraderBin, "../../cmd/simtrader")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

// command runs simtrader in dir against a database in that directory. API
// keys from the caller's environment are dropped.
func command(dir, stdin string, args ...string) *exec.Cmd {
	cmd := exec.Command(simtraderBin, append([]string{"--env-file", filepath.Join(dir, "none.env")}, args...)...)
	cmd.Dir = dir
	for _, kv := range os.Environ() {
		if strings.HasSuffix(strings.SplitN(kv, "=", 2)[0], "_API_KEY") {
			continue
		}
		cmd.Env = append(cmd.Env, kv)
	}
	cmd.Env = append(cmd.Env,
		"SIMTRADER_DB_DRIVER=sqlite",
		"SIMTRADER_DB="+filepath.Join(dir, "simtrader.db"),
		"LOG_LEVEL=warn",
	)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	return cmd
}

func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := command(dir, "", args...).CombinedOutput()
	if err != nil {
		t.Fatalf("command failed: %v\nargs: %v\noutput:\n%s", err, args, string(out))
	}
	return string(out)
}

func runWithInput(t *testing.T, dir, stdin string, args ...string) string {
	t.Helper()
	out, err := command(dir, stdin, args...).CombinedOutput()
	if err != nil {
		t.Fatalf("command failed: %v\nargs: %v\noutput:\n%s", err, args, string(out))
	}
	return string(out)
}

func runFail(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := command(dir, "", args...).CombinedOutput()
	if err == nil {
		t.Fatalf("expected failure\nargs: %v\noutput:\n%s", args, string(out))
	}
	return string(out)
}

func contains(s, sub string) bool { return strings.Contains(s, sub) }
