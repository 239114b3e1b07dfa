package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mna/mainer"
	"github.com/mna/redish/redistest"
	"github.com/mna/redish/redistest/resp"
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

func startServer(t *testing.T) *redistest.MockServer {
	return redistest.StartMockServer(t, func(cmd string, args ...string) interface{} {
		switch cmd {
		case "ECHO":
			return args[0]
		case "MGET":
			return []interface{}{"1", nil, "3"}
		case "HGETALL":
			return []string{"b", "2", "a", "1"}
		case "INCR":
			return 42
		}
		return resp.Error("ERR unknown command '" + cmd + "'")
	})
}

func TestMainHelp(t *testing.T) {
	code, stdout, _ := runMain("-h")
	assert.Equal(t, mainer.Success, code)
	assert.Contains(t, stdout, "usage: redish-cli")
}

func TestMainParseShape(t *testing.T) {
	code, stdout, _ := runMain("--parse-shape", " map< text , list<int> >")
	assert.Equal(t, mainer.Success, code)
	assert.Equal(t, "map<text,list<int>>\n", stdout)

	code, _, stderr := runMain("--parse-shape", "list<")
	assert.Equal(t, mainer.InvalidArgs, code)
	assert.Contains(t, stderr, "redish:")
}

func TestMainInvalidArgs(t *testing.T) {
	cases := [][]string{
		0: {},
		1: {"--shape", "nope", "GET", "k"},
		2: {"--timeout", "-1s", "GET", "k"},
		3: {"--no-such-flag", "GET"},
	}
	for i, args := range cases {
		code, _, stderr := runMain(args...)
		assert.Equal(t, mainer.InvalidArgs, code, "%d", i)
		assert.Contains(t, stderr, "usage: redish-cli", "%d", i)
	}
}

func TestMainExecute(t *testing.T) {
	s := startServer(t)

	cases := []struct {
		args []string
		out  string
	}{
		0: {[]string{"ECHO", "hi"}, "\"hi\"\n"},
		1: {[]string{"INCR", "k"}, "(integer) 42\n"},
		2: {[]string{"-s", "list<int64>", "MGET", "a", "b", "c"}, "1) (integer) 1\n2) (nil)\n3) (integer) 3\n"},
		3: {[]string{"--legacy", "-s", "list<int64>", "MGET", "a", "b", "c"}, "1) (integer) 1\n2) (integer) -9223372036854775808\n3) (integer) 3\n"},
		4: {[]string{"-s", "map<text,int64>", "HGETALL", "h"}, "1) \"a\" => (integer) 1\n2) \"b\" => (integer) 2\n"},
		5: {[]string{"-s", "list<text>", "HGETALL", "h"}, "1) \"b\"\n2) \"2\"\n3) \"a\"\n4) \"1\"\n"},
		6: {[]string{"-s", "float64", "INCR", "k"}, "(double) 42\n"},
	}
	for i, c := range cases {
		code, stdout, stderr := runMain(append([]string{"-a", s.Addr}, c.args...)...)
		assert.Equal(t, mainer.Success, code, "%d: %s", i, stderr)
		assert.Equal(t, c.out, stdout, "%d", i)
	}
}

func TestMainServerError(t *testing.T) {
	s := startServer(t)

	code, stdout, stderr := runMain("-a", s.Addr, "NOPE")
	assert.Equal(t, mainer.ExitCode(1), code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "(error) ")
	assert.Contains(t, stderr, "unknown command 'NOPE'")
}

func TestMainConnectionFailure(t *testing.T) {
	code, _, stderr := runMain("-a", "127.0.0.1:1", "-t", "100ms", "PING")
	assert.Equal(t, mainer.ExitCode(1), code)
	assert.Contains(t, stderr, "(error) ")
}

func TestMainVerbose(t *testing.T) {
	s := startServer(t)

	code, _, stderr := runMain("-v", "-a", s.Addr, "ECHO", "x")
	assert.Equal(t, mainer.Success, code)
	assert.Contains(t, stderr, "executing")
}

func TestPrintValue(t *testing.T) {
	cases := []struct {
		in  interface{}
		out string
	}{
		0: {nil, "(nil)\n"},
		1: {[]byte("a\x00"), "\"a\\x00\"\n"},
		2: {true, "(true)\n"},
		3: {[]string{}, "(empty list)\n"},
		4: {map[string]string{}, "(empty map)\n"},
		5: {[]interface{}{"a", []interface{}{int64(1), nil}}, "1) \"a\"\n2) 1) (integer) 1\n   2) (nil)\n"},
		6: {map[string][]string{"k": {"x", "y"}}, "1) \"k\" => 1) \"x\"\n          2) \"y\"\n"},
		7: {([]string)(nil), "(nil)\n"},
	}
	for i, c := range cases {
		var buf bytes.Buffer
		printValue(&buf, c.in, "")
		assert.Equal(t, c.out, buf.String(), "%d", i)
	}
}
