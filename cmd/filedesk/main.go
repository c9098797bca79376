package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/filedesk/internal/logging"
	"github.com/fruitsalade/filedesk/internal/metrics"
	"github.com/fruitsalade/filedesk/pkg/version"
)

var (
	configPath  string
	serverURL   string
	logLevel    string
	metricsFile string
)

var rootCmd = &cobra.Command{
	Use:   "filedesk",
	Short: "File manager for a filedesk File Service",
	Long: `filedesk lists, creates and downloads files held by a filedesk File Service.

Run without arguments to launch the interactive menu.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMenu,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Info("filedesk"))
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default: ./filedesk.yaml or ~/.config/filedesk/filedesk.yaml)")
	flags.StringVar(&serverURL, "server", "", "File Service URL, overrides server.url")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit (node_exporter textfile format)")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := execute(ctx)
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// execute runs the root command and then dumps metrics, whether or not the
// command succeeded.
func execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if metricsFile != "" {
		if werr := metrics.WriteTextfile(metricsFile); werr != nil && err == nil {
			err = fmt.Errorf("write metrics: %w", werr)
		}
	}
	return err
}
