package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFingerprintCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	defer server.Close()

	out, err := execute(t, "fingerprint", server.URL)
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824:" + server.URL + "\n"
	if out != want {
		t.Fatalf("unexpected output: %q", out)
	}

	// 幂等：同一资源的重复调用输出完全一致
	again, err := execute(t, "fingerprint", server.URL)
	if err != nil {
		t.Fatalf("second fingerprint failed: %v", err)
	}
	if again != out {
		t.Fatalf("repeated invocation differs: %q vs %q", again, out)
	}
}

func TestFingerprintCommandFailureProducesNoOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(http.NotFound))
	url := server.URL
	server.Close()

	out, err := execute(t, "fingerprint", url)
	if err == nil {
		t.Fatalf("expected error for unreachable url")
	}
	if out != "" {
		t.Fatalf("failure must not produce output, got %q", out)
	}
}

func TestFingerprintCommandRequiresExactlyOneArg(t *testing.T) {
	if _, err := execute(t, "fingerprint"); err == nil {
		t.Fatalf("expected error without url argument")
	}
	if _, err := execute(t, "fingerprint", "a", "b"); err == nil {
		t.Fatalf("expected error with extra arguments")
	}
}

func TestScanKeysCommand(t *testing.T) {
	root := t.TempDir()
	hash := strings.Repeat("ab", 32)
	object := filepath.Join(t.TempDir(), "SHA256E-s5--"+hash+".txt")
	if err := os.WriteFile(object, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := os.Symlink(object, filepath.Join(root, "a.txt")); err != nil {
		t.Fatalf("symlink failed: %v", err)
	}

	out, err := execute(t, "scankeys", root, "/5/data")
	if err != nil {
		t.Fatalf("scankeys failed: %v", err)
	}
	if out != hash+":/5/data/a.txt\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, version) {
		t.Fatalf("version missing from output: %q", out)
	}
}
