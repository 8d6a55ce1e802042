// syncly virtualizes several quota-limited storage accounts into one
// logical storage pool. Large files are split into chunks placed across
// backends by free space; a persisted metadata directory records where
// each chunk went so files can be reassembled on demand.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

var (
	cfgFile       string
	logLevel      string
	metricsListen string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "syncly",
		Short: "Syncly - pool several storage accounts into one logical drive",
		Long: `Syncly combines quota-limited storage accounts ("backends") into a
single pool with larger effective capacity than any one account.

Files that fit on a single backend are stored whole; larger files are
split into chunks placed by free space and reassembled on download.

Examples:

  # Show pool capacity
  syncly status

  # Upload and download
  syncly upload ./movie.mkv
  syncly download movie.mkv --out ./downloads

  # Browse the pool
  syncly ls --limit 50
  syncly search report`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
			startMetrics()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level")
	rootCmd.PersistentFlags().StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address during the command")
	_ = rootCmd.PersistentFlags().MarkHidden("metrics-listen")

	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newBackendsCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// startMetrics serves the Prometheus registry for the duration of the
// command when --metrics-listen is set. Useful when syncly runs from a
// scheduler and transfers take long enough to be worth scraping.
func startMetrics() {
	if metricsListen == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(metricsListen, mux); err != nil {
			log.Warn().Err(err).Str("addr", metricsListen).Msg("metrics listener failed")
		}
	}()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("syncly %s (%s)\n", Version, Commit)
		},
	}
}
