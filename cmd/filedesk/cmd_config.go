package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fruitsalade/filedesk/internal/history"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, config file, FILEDESK_* variables
and flags have been applied. Backend passwords and keys are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent downloads",
	Long: `Show downloads recorded in the local history database.

Recording is enabled by setting history.path in the config file.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show, 0 for all")

	rootCmd.AddCommand(configCmd, historyCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(a.cfg.Redacted()); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if a.cfg.History.Path == "" {
		return fmt.Errorf("download history is disabled; set history.path")
	}

	store, err := history.Open(a.cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.ui.Info("No downloads recorded")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SAVED\tTARGET\tSIZE\tNAME\tLOCATION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			e.SavedAt.Local().Format(time.DateTime), e.Target, e.Size, e.Name, e.Location)
	}
	return tw.Flush()
}
