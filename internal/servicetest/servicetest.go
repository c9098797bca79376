// Package servicetest runs an in-memory File Service for tests.
package servicetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/fruitsalade/filedesk/pkg/protocol"
)

// DefaultContent is written into files created through POST /api/files.
const DefaultContent = "Hello from filedesk\n"

// Server is an httptest.Server speaking the File Service protocol. Files live
// in memory; every request is recorded as "METHOD path".
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	files        map[string][]byte
	requests     []string
	createStatus int
	listBody     string
}

// New starts a server holding the named files, each with DefaultContent. It
// is closed when the test ends.
func New(t testing.TB, names ...string) *Server {
	t.Helper()
	s := &Server{
		files:        make(map[string][]byte, len(names)),
		createStatus: http.StatusCreated,
	}
	for _, name := range names {
		s.files[name] = []byte(DefaultContent)
	}
	s.Server = httptest.NewServer(s)
	t.Cleanup(s.Close)
	return s
}

// Put adds or replaces a file.
func (s *Server) Put(name string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = content
}

// SetCreateStatus makes POST /api/files answer with code. Non-2xx codes send
// an error body and create nothing.
func (s *Server) SetCreateStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createStatus = code
}

// SetListBody replaces the GET /api/files response with a raw body. An empty
// body restores the real listing.
func (s *Server) SetListBody(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listBody = raw
}

// Files returns the stored names in sorted order.
func (s *Server) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namesLocked()
}

func (s *Server) namesLocked() []string {
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Requests returns the requests seen so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// ResetRequests clears the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// EscapedPath keeps "%2F" and ".." visible in the log.
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.EscapedPath())
	s.mu.Unlock()

	switch {
	case r.URL.Path == protocol.HealthPath && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, protocol.HealthResponse{Status: "ok"})
	case r.URL.Path == protocol.FilesPath && r.Method == http.MethodPost:
		s.create(w)
	case r.URL.Path == protocol.FilesPath && r.Method == http.MethodGet:
		s.list(w)
	case strings.HasPrefix(r.URL.Path, protocol.FilesPath+"/") && r.Method == http.MethodGet:
		s.fetch(w, strings.TrimPrefix(r.URL.Path, protocol.FilesPath+"/"))
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) create(w http.ResponseWriter) {
	s.mu.Lock()
	status := s.createStatus
	if status < 200 || status > 299 {
		s.mu.Unlock()
		writeError(w, status, "create failed")
		return
	}
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ".txt"
	s.files[name] = []byte(DefaultContent)
	s.mu.Unlock()

	writeJSON(w, status, protocol.CreateFileResponse{Filename: name})
}

func (s *Server) list(w http.ResponseWriter) {
	s.mu.Lock()
	raw := s.listBody
	names := s.namesLocked()
	s.mu.Unlock()

	if raw != "" {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(raw))
		return
	}
	writeJSON(w, http.StatusOK, protocol.FileListResponse{Files: names})
}

func (s *Server) fetch(w http.ResponseWriter, name string) {
	s.mu.Lock()
	content, ok := s.files[name]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(content)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, protocol.ErrorResponse{Error: msg, Code: status})
}
