package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/filedesk/internal/cli"
	"github.com/fruitsalade/filedesk/internal/config"
	"github.com/fruitsalade/filedesk/internal/history"
	"github.com/fruitsalade/filedesk/internal/logging"
	"github.com/fruitsalade/filedesk/internal/saver"
	"github.com/fruitsalade/filedesk/internal/storage"
	"github.com/fruitsalade/filedesk/internal/view"
	"github.com/fruitsalade/filedesk/pkg/client"
	"github.com/fruitsalade/filedesk/pkg/retry"
)

// app bundles what every command needs.
type app struct {
	cfg    *config.ClientConfig
	ui     *cli.UI
	client *client.Client
}

// newApp loads configuration, applies flag overrides and sets up logging.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		if err := cfg.SetServerURL(serverURL); err != nil {
			return nil, fmt.Errorf("--server: %w", err)
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := logging.Init(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: "stderr",
	}); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.Server.Retries

	return &app{
		cfg: cfg,
		ui:  cli.NewWithWriter(cmd.ErrOrStderr()),
		client: client.New(client.Config{
			BaseURL:           cfg.Server.URL,
			Timeout:           cfg.Server.Timeout,
			RetryConfig:       rc,
			RequestsPerSecond: cfg.Server.RequestsPerSecond,
		}),
	}, nil
}

// newView builds a view that saves through sv.
func (a *app) newView(sv saver.Saver) *view.View {
	return view.New(a.client, saver.TempFileStager{Dir: a.cfg.Download.TempDir}, sv)
}

func noop() error { return nil }

// newSaver returns the saver for download.target. An explicit dir always
// saves into that directory. The returned close func releases the backend.
func (a *app) newSaver(ctx context.Context, dir string) (saver.Saver, func() error, error) {
	if dir != "" || a.cfg.Download.Target == config.TargetDir {
		if dir == "" {
			dir = a.cfg.Download.Dir
		}
		return a.recorded(&saver.DirSaver{Dir: dir, Overwrite: a.cfg.Download.Overwrite}, config.TargetDir, noop)
	}

	raw, err := a.cfg.Download.BackendJSON()
	if err != nil {
		return nil, nil, err
	}
	backend, err := storage.NewBackendFromConfig(ctx, a.cfg.Download.Target, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s download target: %w", a.cfg.Download.Target, err)
	}
	logging.Debug("Saving downloads to backend", logging.String("type", backend.Type()))
	return a.recorded(&saver.BackendSaver{Backend: backend, Overwrite: a.cfg.Download.Overwrite}, backend.Type(), backend.Close)
}

// recorded wraps sv so saves are logged to the download history, when one is
// configured. The returned close func runs closeSaver and closes the history.
func (a *app) recorded(sv saver.Saver, target string, closeSaver func() error) (saver.Saver, func() error, error) {
	if a.cfg.History.Path == "" {
		return sv, closeSaver, nil
	}
	store, err := history.Open(a.cfg.History.Path)
	if err != nil {
		closeSaver()
		return nil, nil, err
	}
	closeAll := func() error {
		err := closeSaver()
		if herr := store.Close(); err == nil {
			err = herr
		}
		return err
	}
	return &history.Recorder{Saver: sv, Store: store, Target: target}, closeAll, nil
}
