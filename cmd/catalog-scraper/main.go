package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// A missing .env is fine; CATALOG_SCRAPER_* may come from the real environment
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "catalog-scraper",
		Short: "catalog-scraper crawls a paginated online book catalog into a JSON record file.",
		Long: `catalog-scraper walks the listing pages of a book catalog category,
extracts title, author, genres and comments from every book page,
downloads the plain-text edition and the cover, and writes one JSON file.`,
		SilenceUsage: true,
	}
	root.AddCommand(newCategoryCmd(&crawlFlags{}), newRangeCmd(&crawlFlags{}), newValidateCmd(), newVersionCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file and print the effective warnings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if code := doValidate(configFile, cmd.OutOrStdout(), cmd.ErrOrStderr()); code != 0 {
				return fmt.Errorf("configuration '%s' is invalid", configFile)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "config.yaml", "Path to YAML config file")
	return cmd
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "OK: category %s, pages from %d, output %s\n", appCfg.CategoryURL, appCfg.StartPage, appCfg.OutputPath())
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "catalog-scraper %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}

	return log
}

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: Category:%s, Pages:[%d, %d), IDs:[%d, %d], MaxRecords:%d",
		appCfg.CategoryURL, appCfg.StartPage, appCfg.EndPage, appCfg.StartID, appCfg.EndID, appCfg.MaxRecords)
	log.Infof("Config Output: Dest:%s, Books:%s, Images:%s, JSON:%s, Mode:%s",
		appCfg.DestFolder, appCfg.BooksPath(), appCfg.ImagesPath(), appCfg.OutputPath(), appCfg.OutputMode)
	log.Infof("Config Toggles: SkipText:%t, SkipImages:%t, RespectRobots:%t, MetadataYAML:%t, VisitedLog:%t",
		appCfg.SkipText, appCfg.SkipImages, appCfg.RespectRobots, appCfg.EnableMetadataYAML, appCfg.WriteVisitedLog)
	log.Infof("Config Retry: Backoff:%v, Retries:%d, GlobalTimeout:%v",
		appCfg.TransientBackoff, appCfg.EffectiveTransientRetries(), appCfg.GlobalCrawlTimeout)
	log.Infof("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v, TLSTimeout:%v, DialerTimeout:%v, Insecure:%t",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns, appCfg.HTTPClientSettings.MaxIdleConnsPerHost,
		appCfg.HTTPClientSettings.IdleConnTimeout, appCfg.HTTPClientSettings.TLSHandshakeTimeout, appCfg.HTTPClientSettings.DialerTimeout,
		appCfg.HTTPClientSettings.InsecureSkipVerify)
}
