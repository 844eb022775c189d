package main

import (
	"bytes"
	"io/ioutil"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notebookgrader/grader-client/nav"
	"github.com/notebookgrader/grader-client/sandbox"
)

const testToken = "session"

type cliTest struct {
	name       string
	args       []string // without program name
	stdin      string
	wantErr    error
	wantErrStr string
	wantOut    string
}

type cliRun struct {
	cli    *commandLine
	out    *bytes.Buffer
	errOut *bytes.Buffer
	err    error
}

func setup(t *testing.T) string {
	t.Helper()
	sb := sandbox.New(sandbox.Options{Token: testToken, DisableReqLogs: true})
	srv := httptest.NewServer(sb)
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, server, stdin string, args ...string) cliRun {
	t.Helper()
	r := cliRun{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	r.cli = newCommandLine(strings.NewReader(stdin), r.out, r.errOut)
	r.cli.dir = t.TempDir()

	base := []string{"--server-url", server, "--poll-initial-delay", "10ms", "--poll-max-delay", "50ms"}
	root := newRootCmd(r.cli)
	root.SetArgs(append(base, args...))
	r.err = root.Execute()
	return r
}

func runTests(t *testing.T, server string, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := run(t, server, tt.stdin, tt.args...)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, r.err)
			case tt.wantErrStr != "":
				require.Error(t, r.err)
				assert.Contains(t, r.err.Error(), tt.wantErrStr)
			default:
				require.NoError(t, r.err, r.errOut.String())
			}
			if tt.wantOut != "" {
				assert.Contains(t, r.out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_homework(t *testing.T) {
	server := setup(t)
	tok := []string{"--token", testToken}

	tests := []cliTest{
		{name: "no subcommand", args: nil, wantErr: errHelp},
		{name: "show: no args", args: append(tok, "homework", "show"), wantErrStr: "accepts 1 arg(s), received 0"},
		{name: "show", args: append(tok, "homework", "show", "1"), wantOut: "Notebook:"},
		{name: "grade before obtaining", args: append(tok, "homework", "grade", "1"), wantOut: "You have not submitted anything yet."},
		{name: "wait: nothing pending", args: append(tok, "homework", "wait", "1"), wantOut: "No grading request is pending."},
		{name: "obtain", args: append(tok, "homework", "obtain", "1"), wantOut: "notebook-1"},
		{name: "grade and wait", args: append(tok, "homework", "grade", "1", "--wait"), wantOut: "GRADE"},
		{name: "show grades", args: append(tok, "homework", "show", "1"), wantOut: "Gradings left (24h):  2 of 3"},
	}
	runTests(t, server, tests)
}

func Test_commandLine_feedback(t *testing.T) {
	server := setup(t)
	tok := []string{"--token", testToken}

	tests := []cliTest{
		{name: "status", args: append(tok, "feedback", "status", "1"), wantOut: "No feedback requested."},
		{name: "rate: nothing received", args: append(tok, "feedback", "rate", "1", "4"), wantErrStr: "no received feedback"},
		{name: "rate: not a number", args: append(tok, "feedback", "rate", "1", "lol"), wantErrStr: "stars must be a number (got 'lol')"},
		{name: "request and wait", args: append(tok, "feedback", "request", "1", "--wait"), wantOut: "Feedback received:"},
		{name: "rate: out of range", args: append(tok, "feedback", "rate", "1", "9"), wantErrStr: "stars"},
		{name: "rate", args: append(tok, "feedback", "rate", "1", "5"), wantOut: "Rated 5 stars."},
	}
	runTests(t, server, tests)
}

func Test_commandLine_file(t *testing.T) {
	server := setup(t)
	tok := []string{"--token", testToken}

	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	require.NoError(t, ioutil.WriteFile(src, []byte("hello world"), 0o644))
	dst := filepath.Join(dir, "copy.txt")

	tests := []cliTest{
		{name: "show: no file", args: append(tok, "file", "show", "1"), wantOut: "No file."},
		{name: "delete: no file", args: append(tok, "file", "delete", "1"), wantErrStr: "there is no file"},
		{name: "upload: missing file", args: append(tok, "file", "upload", "1", filepath.Join(dir, "nope")), wantErrStr: "opening file"},
		{name: "upload", args: append(tok, "file", "upload", "1", src), wantOut: "notes.txt (11 B "},
		{name: "download", args: append(tok, "file", "download", "1", dst), wantOut: "Saved " + dst + " (11 B)."},
		{name: "delete: declined", args: append(tok, "file", "delete", "1"), stdin: "n\n", wantOut: "Kept the file."},
		{name: "delete: confirmed", args: append(tok, "file", "delete", "1"), stdin: "y\n", wantOut: "Deleted."},
		{name: "show: deleted", args: append(tok, "file", "show", "1"), wantOut: "No file."},
	}
	runTests(t, server, tests)

	data, err := ioutil.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func Test_commandLine_teacher(t *testing.T) {
	server := setup(t)
	tok := []string{"--token", testToken}
	dir := t.TempDir()

	tests := []cliTest{
		{name: "access-url show", args: append(tok, "access-url", "show", "1"), wantOut: "/invite/"},
		{name: "access-url regenerate", args: append(tok, "access-url", "regenerate", "1"), wantOut: server + "/invite/"},
		{name: "participants download", args: append(tok, "participants", "download", "1", "--dir", dir), wantOut: "Intro_to_Python.csv"},
	}
	runTests(t, server, tests)

	_, err := os.Stat(filepath.Join(dir, "Intro_to_Python.csv"))
	assert.NoError(t, err)
}

func Test_commandLine_redirects(t *testing.T) {
	server := setup(t)

	r := run(t, server, "", "--token", "wrong", "homework", "show", "1")
	require.Error(t, r.err)
	assert.Equal(t, []nav.Destination{nav.AccessDenied}, r.cli.redirected)
	assert.Contains(t, r.errOut.String(), "redirected to "+server+"/credentials_error")

	r = run(t, server, "", "--token", testToken, "homework", "show", "404")
	require.Error(t, r.err)
	assert.Equal(t, []nav.Destination{nav.InternalError}, r.cli.redirected)
	assert.Contains(t, r.errOut.String(), "redirected to "+server+"/internal_error")
}

func Test_commandLine_tokenPrompt(t *testing.T) {
	server := setup(t)

	defer func(isTerminal func(int) bool, readPassword func(int) ([]byte, error)) {
		isTerminalFunc, readPasswordFunc = isTerminal, readPassword
	}(isTerminalFunc, readPasswordFunc)

	isTerminalFunc = func(int) bool { return true }
	readPasswordFunc = func(int) ([]byte, error) { return []byte(testToken + "\n"), nil }

	r := run(t, server, "", "access-url", "show", "1")
	require.NoError(t, r.err, r.errOut.String())
	assert.Contains(t, r.errOut.String(), "Session token:")
	assert.Equal(t, testToken, r.cli.cfg.Token)

	isTerminalFunc = func(int) bool { return false }
	r = run(t, server, "", "access-url", "show", "1")
	require.Error(t, r.err)
	assert.Equal(t, []nav.Destination{nav.AccessDenied}, r.cli.redirected)
}
