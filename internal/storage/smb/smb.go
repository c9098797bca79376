// Package smb saves downloads onto an SMB/CIFS share that is already mounted
// on the host (mount.cifs, fstab). I/O goes through the local backend at the
// mount point.
package smb

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fruitsalade/filedesk/internal/logging"
	"github.com/fruitsalade/filedesk/internal/storage/local"
)

// Config holds SMB backend settings. Server, Username and Domain are kept
// for operators; only MountPath is used for I/O.
type Config struct {
	Server    string `json:"server"` // e.g. //nas/files
	Username  string `json:"username"`
	Domain    string `json:"domain"`
	MountPath string `json:"mount_path"`
}

// SMBBackend is a LocalBackend rooted at the share's mount point.
type SMBBackend struct {
	*local.LocalBackend
	server string
}

// New creates a backend on a mounted share. Unlike the local backend it
// never creates the mount point: a missing directory means the share is
// not mounted.
func New(cfg Config) (*SMBBackend, error) {
	if cfg.MountPath == "" {
		return nil, fmt.Errorf("mount_path is required")
	}
	if _, err := os.Stat(cfg.MountPath); err != nil {
		return nil, fmt.Errorf("smb share %s not mounted at %s: %w", cfg.Server, cfg.MountPath, err)
	}

	lb, err := local.New(local.Config{RootPath: cfg.MountPath})
	if err != nil {
		return nil, fmt.Errorf("smb backend at %s: %w", cfg.MountPath, err)
	}

	logging.Info("using SMB share",
		logging.String("server", cfg.Server),
		logging.String("mount_path", cfg.MountPath))
	return &SMBBackend{LocalBackend: lb, server: cfg.Server}, nil
}

// NewFromJSON creates an SMBBackend from raw JSON config.
func NewFromJSON(raw json.RawMessage) (*SMBBackend, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse smb config: %w", err)
	}
	return New(cfg)
}

// Server returns the configured share name.
func (b *SMBBackend) Server() string { return b.server }

// Type returns "smb".
func (b *SMBBackend) Type() string { return "smb" }
