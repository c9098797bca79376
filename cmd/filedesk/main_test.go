package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fruitsalade/filedesk/internal/servicetest"
)

// run executes the CLI against url and returns stdout.
func run(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	// Flag values survive between Execute calls; reset them.
	downloadStdout, downloadDir = false, ""
	configPath, serverURL, logLevel, metricsFile = "", "", "", ""
	historyLimit = 20

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--server", url, "--log-level", "error"}, args...))
	err := execute(context.Background())
	return out.String(), err
}

func TestListCommand(t *testing.T) {
	svc := servicetest.New(t, "b.txt", "a.txt")

	out, err := run(t, svc.URL, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out != "a.txt\nb.txt\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestListCommand_ServerTrailingSlash(t *testing.T) {
	svc := servicetest.New(t, "a.txt")

	out, err := run(t, svc.URL+"/", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out != "a.txt\n" {
		t.Errorf("unexpected output %q", out)
	}
	if reqs := svc.Requests(); len(reqs) != 1 || reqs[0] != "GET /api/files" {
		t.Errorf("unexpected requests %v", reqs)
	}
}

func TestCreateCommand(t *testing.T) {
	svc := servicetest.New(t)
	if _, err := run(t, svc.URL, "create"); err != nil {
		t.Fatalf("create: %v", err)
	}
	files := svc.Files()
	if len(files) != 1 || !strings.HasSuffix(files[0], ".txt") {
		t.Errorf("expected one created file, got %v", files)
	}
	reqs := svc.Requests()
	if len(reqs) != 2 || reqs[0] != "POST /api/files" || reqs[1] != "GET /api/files" {
		t.Errorf("expected create then list, got %v", reqs)
	}
}

func TestCreateCommand_Rejected(t *testing.T) {
	svc := servicetest.New(t)
	svc.SetCreateStatus(http.StatusForbidden)

	_, err := run(t, svc.URL, "create")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
	if reqs := svc.Requests(); len(reqs) != 2 {
		t.Errorf("a rejected create must still refresh, got %v", reqs)
	}
}

func TestDownloadCommand_Stdout(t *testing.T) {
	svc := servicetest.New(t)
	svc.Put("note.txt", []byte("hello"))

	out, err := run(t, svc.URL, "download", "note.txt", "--stdout")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if out != "hello" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestDownloadCommand_Dir(t *testing.T) {
	svc := servicetest.New(t)
	svc.Put("note.txt", []byte("hello"))
	dest := t.TempDir()

	for i := 0; i < 2; i++ {
		if _, err := run(t, svc.URL, "download", "note.txt", "--dir", dest); err != nil {
			t.Fatalf("download: %v", err)
		}
	}
	for _, name := range []string{"note.txt", "note (1).txt"} {
		data, err := os.ReadFile(filepath.Join(dest, name))
		if err != nil || string(data) != "hello" {
			t.Errorf("%s: got %q, %v", name, data, err)
		}
	}
}

func TestDownloadCommand_BackendTarget(t *testing.T) {
	svc := servicetest.New(t)
	svc.Put("note.txt", []byte("hello"))
	dest := t.TempDir()

	cfg := writeConfig(t, "download:\n  target: local\n  backend:\n    root_path: "+filepath.ToSlash(dest)+"\n")

	if _, err := run(t, svc.URL, "--config", cfg, "download", "note.txt"); err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "note.txt"))
	if err != nil || string(data) != "hello" {
		t.Errorf("got %q, %v", data, err)
	}
}

func TestDownloadCommand_BadBackendTarget(t *testing.T) {
	svc := servicetest.New(t, "note.txt")

	cfg := writeConfig(t, "download:\n  target: ftp\n")

	_, err := run(t, svc.URL, "--config", cfg, "download", "note.txt")
	if err == nil || !strings.Contains(err.Error(), "host is required") {
		t.Fatalf("expected ftp config error, got %v", err)
	}
	if reqs := svc.Requests(); len(reqs) != 0 {
		t.Errorf("nothing should be fetched without a target, got %v", reqs)
	}
}

func TestDownloadCommand_Missing(t *testing.T) {
	svc := servicetest.New(t)
	_, err := run(t, svc.URL, "download", "nope.txt", "--stdout")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected 404 error, got %v", err)
	}
}

func TestMetricsFile(t *testing.T) {
	svc := servicetest.New(t, "a.txt")
	path := filepath.Join(t.TempDir(), "filedesk.prom")

	if _, err := run(t, svc.URL, "--metrics-file", path, "list"); err != nil {
		t.Fatalf("list: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	for _, want := range []string{"filedesk_requests_total", "filedesk_file_list_size 1"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics file missing %q", want)
		}
	}
}

func TestMetricsFile_WrittenOnFailure(t *testing.T) {
	svc := servicetest.New(t)
	path := filepath.Join(t.TempDir(), "filedesk.prom")

	if _, err := run(t, svc.URL, "--metrics-file", path, "download", "nope.txt", "--stdout"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("metrics file not written: %v", err)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filedesk.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigCommand_MasksSecrets(t *testing.T) {
	cfg := writeConfig(t, "download:\n  target: s3\n  backend:\n    bucket: inbox\n    secret_key: hunter2\n")

	out, err := run(t, "http://files.local:9000", "--config", cfg, "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	for _, want := range []string{"url: http://files.local:9000", "target: s3", "bucket: inbox", "********", "timeout: 30s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hunter2") {
		t.Error("secret leaked into output")
	}
}

func TestHistoryCommand_Disabled(t *testing.T) {
	_, err := run(t, "http://unused", "history")
	if err == nil || !strings.Contains(err.Error(), "history is disabled") {
		t.Fatalf("expected disabled error, got %v", err)
	}
}

func TestHistoryCommand_RecordsDownloads(t *testing.T) {
	svc := servicetest.New(t)
	svc.Put("note.txt", []byte("hello"))
	dest := t.TempDir()
	db := filepath.Join(t.TempDir(), "history.db")
	cfg := writeConfig(t, "history:\n  path: "+filepath.ToSlash(db)+"\n")

	if _, err := run(t, svc.URL, "--config", cfg, "download", "note.txt", "--dir", dest); err != nil {
		t.Fatalf("download: %v", err)
	}
	if _, err := run(t, svc.URL, "--config", cfg, "download", "note.txt", "--stdout"); err != nil {
		t.Fatalf("download: %v", err)
	}

	out, err := run(t, svc.URL, "--config", cfg, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two entries, got:\n%s", out)
	}
	if !strings.Contains(lines[1], "stdout") || !strings.Contains(lines[2], filepath.Join(dest, "note.txt")) {
		t.Errorf("unexpected history:\n%s", out)
	}

	out, err = run(t, svc.URL, "--config", cfg, "history", "-n", "1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(out), "\n")); n != 2 {
		t.Errorf("limit ignored:\n%s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "http://unused", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "filedesk version ") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestUnreachableServer(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	if _, err := run(t, url, "list"); err == nil {
		t.Error("expected error for unreachable server")
	}
}
