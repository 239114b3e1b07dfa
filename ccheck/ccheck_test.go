package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/assert"
)

func runMain(args ...string) (mainer.ExitCode, string, string) {
	var stdout, stderr bytes.Buffer
	var c cmd
	code := c.Main(append([]string{binName}, args...), mainer.Stdio{
		Stdin:  strings.NewReader(""),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	return code, stdout.String(), stderr.String()
}

func TestMainHelp(t *testing.T) {
	code, stdout, _ := runMain("--help")
	assert.Equal(t, mainer.Success, code)
	assert.Contains(t, stdout, "usage: ccheck")
}

func TestMainInvalidArgs(t *testing.T) {
	cases := [][]string{
		0: {"extra"},
		1: {"--max-retries", "-1"},
		2: {"--no-such-flag"},
		3: {"--config", "/no/such/file.toml"},
	}
	for i, args := range cases {
		code, _, stderr := runMain(args...)
		assert.Equal(t, mainer.InvalidArgs, code, "%d", i)
		assert.Contains(t, stderr, "usage: ccheck", "%d", i)
	}
}

func TestMainCheck(t *testing.T) {
	_, s := startMemStore(t)

	code, stdout, stderr := runMain("--addr", s.Addr, "-n", "20")
	assert.Equal(t, mainer.Success, code, stderr)
	assert.Contains(t, stdout, "20 W (0 err, 0 aborted)")
}

func TestMainBench(t *testing.T) {
	_, s := startMemStore(t)

	code, stdout, stderr := runMain("--addr", s.Addr, "--bench", "10")
	assert.Equal(t, mainer.Success, code, stderr)
	assert.Contains(t, stdout, "SET: 10 ops")
	assert.Contains(t, stdout, "DEL: 10 ops")
}

func TestMainConnectionFailure(t *testing.T) {
	code, _, stderr := runMain("--addr", "127.0.0.1:1", "-n", "1")
	assert.Equal(t, mainer.ExitCode(1), code)
	assert.Contains(t, stderr, "ccheck failed")
}
