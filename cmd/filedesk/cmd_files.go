package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/filedesk/internal/cli"
	"github.com/fruitsalade/filedesk/internal/saver"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List files on the server",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new file on the server",
	Args:  cobra.NoArgs,
	RunE:  runCreate,
}

var downloadCmd = &cobra.Command{
	Use:   "download <filename>",
	Short: "Download a file",
	Long: `Download a file from the server into the configured download target.

The name is sent to the server exactly as given. The saved name is reduced
to its base name, and an existing file is kept by saving as "name (1).ext"
unless download.overwrite is set. download.target selects a plain directory
(dir) or a storage backend (local, s3, ftp, smb) configured under
download.backend; --dir always saves into a directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Launch interactive menu",
	Args:  cobra.NoArgs,
	RunE:  runMenu,
}

var (
	downloadStdout bool
	downloadDir    string
)

func init() {
	downloadCmd.Flags().BoolVar(&downloadStdout, "stdout", false, "write content to stdout instead of a file")
	downloadCmd.Flags().StringVar(&downloadDir, "dir", "", "directory to save into, bypassing download.target")

	rootCmd.AddCommand(listCmd, createCmd, downloadCmd, menuCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	v := a.newView(nil)
	defer v.Close()

	if err := v.FetchFiles(cmd.Context()); err != nil {
		return err
	}
	for _, f := range v.Files() {
		fmt.Fprintln(cmd.OutOrStdout(), f.Name)
	}
	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	v := a.newView(nil)
	defer v.Close()

	if err := v.CreateFile(cmd.Context()); err != nil {
		return err
	}
	a.ui.Success("File created")
	a.ui.FileList(v.Files())
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	var (
		sv          saver.Saver
		closeTarget func() error
	)
	if downloadStdout {
		sv, closeTarget, err = a.recorded(saver.WriterSaver{W: cmd.OutOrStdout()}, "stdout", noop)
	} else {
		sv, closeTarget, err = a.newSaver(cmd.Context(), downloadDir)
	}
	if err != nil {
		return err
	}
	defer closeTarget()

	v := a.newView(sv)
	defer v.Close()

	name := args[0]
	if err := v.DownloadFile(cmd.Context(), name); err != nil {
		return err
	}
	if !downloadStdout {
		a.ui.Successf("Downloaded %s", name)
	}
	return nil
}

func runMenu(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	sv, closeTarget, err := a.newSaver(cmd.Context(), "")
	if err != nil {
		return err
	}
	defer closeTarget()
	v := a.newView(sv)
	defer v.Close()

	if err := a.client.Ping(cmd.Context()); err != nil {
		a.ui.Warning(fmt.Sprintf("Server %s is not responding: %v", a.client.BaseURL(), err))
	}

	title := "filedesk  " + a.client.BaseURL()
	return cli.NewMenu(a.ui, v, cli.SurveyPrompter{}, title).Run(cmd.Context())
}
