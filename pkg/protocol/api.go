// Package protocol defines the File Service request/response types.
package protocol

// Endpoint paths served by the File Service.
const (
	HealthPath = "/health"
	FilesPath  = "/api/files"
)

// FileListResponse is returned by GET /api/files.
type FileListResponse struct {
	Files []string `json:"files"`
}

// CreateFileResponse is returned by POST /api/files.
type CreateFileResponse struct {
	Filename string `json:"filename"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned on API errors. Services built on FastAPI send
// only {"detail": "..."}; Detail carries that form.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Message returns the most specific human-readable text in the response.
func (e ErrorResponse) Message() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Detail
}

// FilePath returns the retrieval path for filename. The name is appended
// verbatim; callers that need escaping must do it themselves.
func FilePath(filename string) string {
	return FilesPath + "/" + filename
}
