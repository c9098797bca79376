// Package config loads the filedesk client configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Download targets. TargetDir saves into a plain directory; the others hand
// the download to a storage backend of the same type.
const (
	TargetDir   = "dir"
	TargetLocal = "local"
	TargetS3    = "s3"
	TargetFTP   = "ftp"
	TargetSMB   = "smb"
)

// ClientConfig holds settings for the filedesk CLI.
type ClientConfig struct {
	Server   ServerEndpoint `mapstructure:"server" yaml:"server"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// ServerEndpoint describes how to reach the File Service.
type ServerEndpoint struct {
	URL               string        `mapstructure:"url" yaml:"url"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`                         // response header wait, not the whole transfer
	Retries           int           `mapstructure:"retries" yaml:"retries"`                         // attempts per list/fetch, 1 = no retry
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"` // 0 = unlimited
}

// DownloadConfig controls where downloads are saved.
type DownloadConfig struct {
	Target    string                 `mapstructure:"target" yaml:"target"`
	Dir       string                 `mapstructure:"dir" yaml:"dir"`
	Overwrite bool                   `mapstructure:"overwrite" yaml:"overwrite"`
	TempDir   string                 `mapstructure:"temp_dir" yaml:"temp_dir"`         // staging area, default os.TempDir()
	Backend   map[string]interface{} `mapstructure:"backend" yaml:"backend,omitempty"` // settings for non-dir targets
}

// BackendJSON returns the backend settings in the JSON form the storage
// factory expects.
func (d DownloadConfig) BackendJSON() (json.RawMessage, error) {
	if d.Backend == nil {
		return json.RawMessage(`{}`), nil
	}
	raw, err := json.Marshal(d.Backend)
	if err != nil {
		return nil, fmt.Errorf("encode download.backend: %w", err)
	}
	return raw, nil
}

// HistoryConfig controls the local download log. An empty Path disables it.
type HistoryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls client logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// secretKeys are backend settings that Redacted masks.
var secretKeys = map[string]bool{
	"password":   true,
	"secret_key": true,
	"access_key": true,
}

// Redacted returns a copy of cfg that is safe to print.
func (cfg ClientConfig) Redacted() ClientConfig {
	if cfg.Download.Backend == nil {
		return cfg
	}
	backend := make(map[string]interface{}, len(cfg.Download.Backend))
	for k, v := range cfg.Download.Backend {
		if secretKeys[strings.ToLower(k)] && v != "" {
			v = "********"
		}
		backend[k] = v
	}
	cfg.Download.Backend = backend
	return cfg
}

// SetServerURL replaces the service URL, normalized the same way as a
// configured one.
func (cfg *ClientConfig) SetServerURL(raw string) error {
	url := strings.TrimRight(strings.TrimSpace(raw), "/")
	if url == "" {
		return fmt.Errorf("server.url is required")
	}
	cfg.Server.URL = url
	return nil
}

// LoadClient reads the client config. An explicit path must exist; without
// one, filedesk.yaml is looked up in the working directory and
// $HOME/.config/filedesk, and its absence is not an error. FILEDESK_*
// environment variables override file values (e.g. FILEDESK_SERVER_URL).
func LoadClient(path string) (*ClientConfig, error) {
	v := viper.New()

	v.SetDefault("server.url", "http://127.0.0.1:8000")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.retries", 1)
	v.SetDefault("server.requests_per_second", 0)
	v.SetDefault("download.target", TargetDir)
	v.SetDefault("download.dir", ".")
	v.SetDefault("download.overwrite", false)
	v.SetDefault("download.temp_dir", "")
	v.SetDefault("history.path", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")

	v.SetEnvPrefix("FILEDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("filedesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/filedesk")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.SetServerURL(cfg.Server.URL); err != nil {
		return nil, err
	}
	if cfg.Server.Retries < 1 {
		cfg.Server.Retries = 1
	}

	cfg.Download.Target = strings.ToLower(cfg.Download.Target)
	switch cfg.Download.Target {
	case TargetDir:
		if cfg.Download.Dir == "" {
			return nil, fmt.Errorf("download.dir is required for the dir target")
		}
	case TargetLocal, TargetS3, TargetFTP, TargetSMB:
	default:
		return nil, fmt.Errorf("unknown download.target %q", cfg.Download.Target)
	}

	return &cfg, nil
}
