package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fruitsalade/filedesk/internal/logging"
	"github.com/fruitsalade/filedesk/pkg/protocol"
	"github.com/fruitsalade/filedesk/pkg/retry"
)

func testClient(handler http.Handler) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	c := New(Config{
		BaseURL: ts.URL,
		RetryConfig: retry.Config{
			MaxAttempts: 3,
			InitialWait: time.Millisecond,
			MaxWait:     time.Millisecond,
		},
	})
	return c, ts
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestListFiles(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/files" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusOK, protocol.FileListResponse{Files: []string{"a", "b"}})
	}))
	defer ts.Close()

	files, err := c.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 || files[0] != "a" || files[1] != "b" {
		t.Errorf("expected [a b], got %v", files)
	}
}

func TestListFiles_NullIsEmpty(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"files":null}`))
	}))
	defer ts.Close()

	files, err := c.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if files == nil || len(files) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", files)
	}
}

func TestListFiles_Malformed(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer ts.Close()

	if _, err := c.ListFiles(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestListFiles_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			writeJSON(w, http.StatusBadGateway, protocol.ErrorResponse{Error: "upstream", Code: 502})
			return
		}
		writeJSON(w, http.StatusOK, protocol.FileListResponse{Files: []string{"x"}})
	}))
	defer ts.Close()

	files, err := c.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("expected 1 file, got %v", files)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestCreateFile(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/files" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.ContentLength > 0 {
			t.Errorf("expected empty body, got %d bytes", r.ContentLength)
		}
		writeJSON(w, http.StatusCreated, protocol.CreateFileResponse{Filename: "abc.txt"})
	}))
	defer ts.Close()

	name, err := c.CreateFile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "abc.txt" {
		t.Errorf("expected abc.txt, got %s", name)
	}
}

func TestCreateFile_NotRetried(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		writeJSON(w, http.StatusInternalServerError, protocol.ErrorResponse{Error: "disk full", Code: 500})
	}))
	defer ts.Close()

	_, err := c.CreateFile(context.Background())
	se, ok := AsStatusError(err)
	if !ok {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if se.StatusCode != 500 || se.Message != "disk full" {
		t.Errorf("unexpected status error %+v", se)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", got)
	}
}

func TestCreateFile_BodyIsOptional(t *testing.T) {
	for _, tc := range []struct {
		name   string
		status int
		body   string
	}{
		{"empty 201", http.StatusCreated, ""},
		{"plain text", http.StatusOK, "created"},
		{"no content", http.StatusNoContent, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer ts.Close()

			name, err := c.CreateFile(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if name != "" {
				t.Errorf("expected no name, got %q", name)
			}
		})
	}
}

func TestTimeout_DoesNotCutOffSlowBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(150 * time.Millisecond)
		io.WriteString(w, "late content")
	}))
	defer ts.Close()
	c := New(Config{BaseURL: ts.URL, Timeout: 50 * time.Millisecond, RetryConfig: retry.Once()})

	body, _, err := c.FetchFile(context.Background(), "slow.txt")
	if err != nil {
		t.Fatalf("FetchFile: %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "late content" {
		t.Errorf("got %q", data)
	}
}

func TestTimeout_BoundsSlowHeaders(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)
	c := New(Config{BaseURL: ts.URL, Timeout: 50 * time.Millisecond, RetryConfig: retry.Once()})

	if _, err := c.ListFiles(context.Background()); err == nil {
		t.Fatal("expected header timeout")
	}
}

func TestFetchFile(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files/report.csv" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("a,b\n1,2\n"))
	}))
	defer ts.Close()

	rc, size, err := c.FetchFile(context.Background(), "report.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "a,b\n1,2\n" {
		t.Errorf("unexpected content %q", data)
	}
	if size != 8 {
		t.Errorf("expected size 8, got %d", size)
	}
}

func TestFetchFile_PathIsVerbatim(t *testing.T) {
	var got []string
	var mu sync.Mutex
	// A bare handler, not a ServeMux, so the path is seen uncleaned.
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.URL.Path)
		mu.Unlock()
		w.Write([]byte("x"))
	}))
	defer ts.Close()

	for _, name := range []string{"dir/file.txt", "../secret"} {
		rc, _, err := c.FetchFile(context.Background(), name)
		if err != nil {
			t.Fatalf("fetch %q: %v", name, err)
		}
		rc.Close()
	}

	want := []string{"/api/files/dir/file.txt", "/api/files/../secret"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d: expected path %q, got %q", i, want[i], got[i])
		}
	}
}

func TestFetchFile_NotFound(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		writeJSON(w, http.StatusNotFound, protocol.ErrorResponse{Error: "file not found", Code: 404})
	}))
	defer ts.Close()

	_, _, err := c.FetchFile(context.Background(), "nope.txt")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", got)
	}
}

func TestFetchFile_DetailMessage(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "File not found"})
	}))
	defer ts.Close()

	_, _, err := c.FetchFile(context.Background(), "nope.txt")
	se, ok := AsStatusError(err)
	if !ok {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Message != "File not found" {
		t.Errorf("message = %q", se.Message)
	}
}

func TestPing_OnlineTracking(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, protocol.HealthResponse{Status: "ok"})
	}))

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsOnline() {
		t.Error("expected online after successful ping")
	}

	ts.Close()
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected error after server shutdown")
	}
	if c.IsOnline() {
		t.Error("expected offline after failed ping")
	}
	if c.LastContact().IsZero() {
		t.Error("expected last contact to be recorded")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	var got string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(logging.RequestIDHeader)
		writeJSON(w, http.StatusOK, protocol.FileListResponse{Files: []string{}})
	}))
	defer ts.Close()

	ctx := logging.WithRequestID(context.Background(), "req-123")
	if _, err := c.ListFiles(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "req-123" {
		t.Errorf("expected request id req-123, got %q", got)
	}
}

func TestRateLimit_HonoursContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, protocol.FileListResponse{Files: []string{}})
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL, RequestsPerSecond: 0.001, RetryConfig: retry.Once()})
	if _, err := c.ListFiles(context.Background()); err != nil {
		t.Fatalf("first request should pass the limiter: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.ListFiles(ctx); err == nil {
		t.Fatal("expected limiter wait to fail")
	} else if errors.Is(err, context.Canceled) {
		t.Errorf("unexpected cancellation error: %v", err)
	}
}
