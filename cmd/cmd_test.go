package cmd

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/coach0/coach/internal/log"
)

// captureStdout runs fn with os.Stdout redirected to a buffer.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestExecuteUnknownCommand(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"coach", "bogus"}

	err := Execute()
	if err == nil {
		t.Fatal("Execute() with unknown command returned nil")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("error = %q, want mention of unknown command", err)
	}
}

func TestExecuteVersion(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	for _, arg := range []string{"version", "--version", "-v"} {
		t.Run(arg, func(t *testing.T) {
			os.Args = []string{"coach", arg}
			var err error
			output := captureStdout(t, func() { err = Execute() })
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if !strings.Contains(output, "coach v") {
				t.Errorf("output = %q, want version line", output)
			}
		})
	}
}

func TestExecuteHelp(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"coach", "help"}

	var err error
	output := captureStdout(t, func() { err = Execute() })
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"coach ingest", "coach digest", "MCP server"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestRunDigestRequiresUserID(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no args", nil},
		{"empty user id", []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runDigest(log.NewNop(), tt.args)
			if err == nil {
				t.Fatal("runDigest() without user id returned nil")
			}
			if !strings.Contains(err.Error(), "usage") {
				t.Errorf("error = %q, want usage message", err)
			}
		})
	}
}
