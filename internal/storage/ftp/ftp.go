// Package ftp saves downloads to an FTP server.
package ftp

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	"github.com/fruitsalade/filedesk/internal/logging"
	"github.com/fruitsalade/filedesk/internal/metrics"
	"github.com/fruitsalade/filedesk/internal/storage/object"
)

// Config holds FTP backend settings.
type Config struct {
	Host     string        `json:"host"`
	Port     int           `json:"port"`
	Username string        `json:"username"`
	Password string        `json:"password"`
	BasePath string        `json:"base_path"`
	UseTLS   bool          `json:"use_tls"`
	PoolSize int           `json:"pool_size"`
	Timeout  time.Duration `json:"timeout"`
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 21
	}
	if c.Username == "" {
		c.Username = "anonymous"
	}
	if c.BasePath == "" {
		c.BasePath = "/"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 4
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Conn is the subset of *ftp.ServerConn used by the backend.
type Conn interface {
	Login(user, password string) error
	NoOp() error
	Quit() error
	Stor(path string, r io.Reader) error
	FileSize(path string) (int64, error)
	GetTime(path string) (time.Time, error)
	Rename(from, to string) error
	Delete(path string) error
}

var _ Conn = (*ftp.ServerConn)(nil)

// Dialer opens a new logged-in connection.
type Dialer func(ctx context.Context) (Conn, error)

// FTPBackend implements storage.Backend on an FTP server. The protocol allows
// one transfer per control connection, so connections are pooled.
type FTPBackend struct {
	basePath string
	dial     Dialer
	pool     chan Conn

	mu     sync.Mutex
	closed bool
}

// New creates a new FTP backend and verifies connectivity.
func New(ctx context.Context, cfg Config) (*FTPBackend, error) {
	cfg.applyDefaults()
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dial := func(ctx context.Context) (Conn, error) {
		opts := []ftp.DialOption{
			ftp.DialWithTimeout(cfg.Timeout),
			ftp.DialWithContext(ctx),
		}
		if cfg.UseTLS {
			opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: cfg.Host}))
		}
		conn, err := ftp.Dial(addr, opts...)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		if err := conn.Login(cfg.Username, cfg.Password); err != nil {
			conn.Quit()
			return nil, fmt.Errorf("login to %s: %w", addr, err)
		}
		return conn, nil
	}

	b := NewWithDialer(dial, cfg.BasePath, cfg.PoolSize)

	conn, err := b.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to FTP server: %w", err)
	}
	b.release(conn)

	return b, nil
}

// NewWithDialer creates a backend using a custom dialer.
func NewWithDialer(dial Dialer, basePath string, poolSize int) *FTPBackend {
	if poolSize <= 0 {
		poolSize = 1
	}
	if basePath == "" {
		basePath = "/"
	}
	return &FTPBackend{
		basePath: basePath,
		dial:     dial,
		pool:     make(chan Conn, poolSize),
	}
}

// NewFromJSON creates an FTPBackend from raw JSON config.
func NewFromJSON(ctx context.Context, raw json.RawMessage) (*FTPBackend, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse ftp config: %w", err)
	}
	return New(ctx, cfg)
}

func record(op string, start time.Time, err error) {
	metrics.RecordStorageOperation("ftp", op, time.Since(start), err == nil)
}

func (b *FTPBackend) fullPath(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, "/\\") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return path.Join(b.basePath, key), nil
}

// acquire takes a live connection from the pool or dials a new one.
func (b *FTPBackend) acquire(ctx context.Context) (Conn, error) {
	for {
		select {
		case conn := <-b.pool:
			if err := conn.NoOp(); err != nil {
				conn.Quit()
				continue
			}
			return conn, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			return b.dial(ctx)
		}
	}
}

// release returns conn to the pool, closing it when the pool is full or closed.
func (b *FTPBackend) release(conn Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		conn.Quit()
		return
	}
	select {
	case b.pool <- conn:
	default:
		conn.Quit()
	}
}

// discard closes a connection whose state is unknown.
func (b *FTPBackend) discard(conn Conn) {
	conn.Quit()
}

func isNotFound(err error) bool {
	var te *textproto.Error
	return errors.As(err, &te) && te.Code == ftp.StatusFileUnavailable
}

func wrapNotFound(key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s: %w", key, object.ErrNotFound)
	}
	return err
}

// PutObject uploads to a temporary name and renames it into place.
func (b *FTPBackend) PutObject(ctx context.Context, key string, body io.Reader, size int64) (err error) {
	start := time.Now()
	defer func() { record("put_object", start, err) }()

	p, err := b.fullPath(key)
	if err != nil {
		return err
	}
	tmp := path.Join(b.basePath, object.TempPrefix+fmt.Sprintf("%d.tmp", time.Now().UnixNano()))

	conn, err := b.acquire(ctx)
	if err != nil {
		return err
	}

	if err := conn.Stor(tmp, body); err != nil {
		conn.Delete(tmp)
		b.discard(conn)
		return fmt.Errorf("stor %s: %w", key, err)
	}
	if err := conn.Rename(tmp, p); err != nil {
		conn.Delete(tmp)
		b.release(conn)
		return fmt.Errorf("rename temp to %s: %w", key, err)
	}
	b.release(conn)

	logging.Debug("FTP put object", zap.String("key", key), zap.Int64("size", size))
	return nil
}

// StatObject returns size and modification time of a file.
func (b *FTPBackend) StatObject(ctx context.Context, key string) (_ object.Info, err error) {
	start := time.Now()
	defer func() { record("stat_object", start, err) }()

	p, err := b.fullPath(key)
	if err != nil {
		return object.Info{}, err
	}
	conn, err := b.acquire(ctx)
	if err != nil {
		return object.Info{}, err
	}
	defer b.release(conn)

	size, err := conn.FileSize(p)
	if err != nil {
		return object.Info{}, wrapNotFound(key, fmt.Errorf("size %s: %w", key, err))
	}
	info := object.Info{Key: key, Size: size}
	// MDTM is optional on many servers.
	if mt, err := conn.GetTime(p); err == nil {
		info.ModTime = mt
	}
	return info, nil
}

// Type returns "ftp".
func (b *FTPBackend) Type() string { return "ftp" }

// Close quits all pooled connections.
func (b *FTPBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for {
		select {
		case conn := <-b.pool:
			conn.Quit()
		default:
			return nil
		}
	}
}
