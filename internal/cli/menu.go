package cli

import (
	"context"
	"errors"

	"github.com/fruitsalade/filedesk/internal/view"
	"github.com/fruitsalade/filedesk/pkg/models"
)

// Menu actions.
const (
	ActionCreate   = "Create file"
	ActionRefresh  = "Refresh list"
	ActionDownload = "Download file"
	ActionQuit     = "Quit"
)

const backOption = "< Back"

// Menu drives a view interactively.
type Menu struct {
	ui     *UI
	view   *view.View
	prompt Prompter
	title  string
}

// NewMenu creates a menu over v.
func NewMenu(ui *UI, v *view.View, p Prompter, title string) *Menu {
	return &Menu{ui: ui, view: v, prompt: p, title: title}
}

// Run loads the file list and loops until the user quits or interrupts.
// Operation failures are reported and the loop continues.
func (m *Menu) Run(ctx context.Context) error {
	m.ui.Header(m.title)
	if err := m.view.FetchFiles(ctx); err != nil {
		m.ui.Errorf("Could not load files: %v", err)
	}

	for {
		m.ui.FileList(m.view.Files())

		action, err := m.prompt.Select("What would you like to do?", []string{
			ActionCreate, ActionRefresh, ActionDownload, ActionQuit,
		})
		if errors.Is(err, ErrInterrupted) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		switch action {
		case ActionCreate:
			if err := m.view.CreateFile(ctx); err != nil {
				m.ui.Errorf("Create failed: %v", err)
				continue
			}
			m.ui.Success("File created")
		case ActionRefresh:
			if err := m.view.FetchFiles(ctx); err != nil {
				m.ui.Errorf("Refresh failed: %v", err)
			}
		case ActionDownload:
			if err := m.download(ctx); err != nil {
				if errors.Is(err, ErrInterrupted) {
					return nil
				}
				m.ui.Errorf("Download failed: %v", err)
			}
		case ActionQuit:
			return nil
		}
	}
}

func (m *Menu) download(ctx context.Context) error {
	files := m.view.Files()
	if len(files) == 0 {
		m.ui.Warning("Nothing to download")
		return nil
	}

	options := append(models.Names(files), backOption)
	name, err := m.prompt.Select("Which file?", options)
	if err != nil {
		return err
	}
	if name == backOption {
		return nil
	}

	if err := m.view.DownloadFile(ctx, name); err != nil {
		return err
	}
	m.ui.Successf("Downloaded %s", name)
	return nil
}
