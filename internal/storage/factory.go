package storage

import (
	"context"
	"encoding/json"
	"fmt"

	ftpbackend "github.com/fruitsalade/filedesk/internal/storage/ftp"
	"github.com/fruitsalade/filedesk/internal/storage/local"
	s3backend "github.com/fruitsalade/filedesk/internal/storage/s3"
	"github.com/fruitsalade/filedesk/internal/storage/smb"
)

// NewBackendFromConfig creates a Backend from a backend type string and JSON config.
func NewBackendFromConfig(ctx context.Context, backendType string, config json.RawMessage) (Backend, error) {
	switch backendType {
	case "local":
		return local.NewFromJSON(config)
	case "s3":
		return s3backend.NewBackendFromJSON(ctx, config)
	case "ftp":
		return ftpbackend.NewFromJSON(ctx, config)
	case "smb":
		return smb.NewFromJSON(config)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", backendType)
	}
}
