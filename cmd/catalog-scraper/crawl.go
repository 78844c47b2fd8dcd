package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/crawler"
	"github.com/Sriram-PR/catalog-scraper/pkg/fetch"
	"github.com/Sriram-PR/catalog-scraper/pkg/storage"
)

// crawlFlags holds the command-line values shared by the category and range commands.
// A flag only overrides the config file when it was set explicitly.
type crawlFlags struct {
	configFile      string
	logLevel        string
	startPage       int
	lastPage        int
	startID         int
	endID           int
	destFolder      string
	jsonFilepath    string
	outputMode      string
	maxRecords      int
	skipImgs        bool
	skipTxt         bool
	respectRobots   bool
	insecure        bool
	writeVisitedLog bool
	metadataYAML    bool
}

func (f *crawlFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.configFile, "config", "", "Path to YAML config file (optional)")
	fs.StringVar(&f.logLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.destFolder, "dest_folder", "", "Folder for books/, images/ and the JSON file")
	fs.StringVar(&f.jsonFilepath, "json_filepath", "", "JSON output path, relative to dest_folder unless absolute")
	fs.StringVar(&f.outputMode, "output_mode", "", "JSON write mode: truncate or append")
	fs.IntVar(&f.maxRecords, "max_records", 0, "Stop after this many records (0 = no limit)")
	fs.BoolVar(&f.skipImgs, "skip_imgs", false, "Do not download covers")
	fs.BoolVar(&f.skipTxt, "skip_txt", false, "Do not download texts")
	fs.BoolVar(&f.respectRobots, "respect_robots", false, "Skip URLs disallowed by robots.txt")
	fs.BoolVar(&f.insecure, "insecure", false, "Disable TLS certificate verification")
	fs.BoolVar(&f.writeVisitedLog, "write-visited-log", false, "Write a log of every visited URL and its outcome")
	fs.BoolVar(&f.metadataYAML, "metadata-yaml", false, "Write metadata.yaml next to the JSON file")
}

func newCategoryCmd(f *crawlFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category [--start_page N] [--last_page M]",
		Short: "Crawl the category listing pages [start_page, last_page).",
		Long: `Crawl the category listing pages from start_page up to, but not including,
last_page. Without --last_page the last page number is read from the
category's pagination block.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeCrawl(cmd, f, crawler.ModeCategory)
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&f.startPage, "start_page", 1, "First listing page")
	cmd.Flags().IntVar(&f.lastPage, "last_page", 0, "Listing page to stop before (0 = discover)")
	return cmd
}

func newRangeCmd(f *crawlFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "range --start_id N --end_id M",
		Short: "Crawl book pages by numeric id, both ends inclusive.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeCrawl(cmd, f, crawler.ModeRange)
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&f.startID, "start_id", 1, "First book id")
	cmd.Flags().IntVar(&f.endID, "end_id", 10, "Last book id")
	return cmd
}

// buildConfig loads the config file, applies explicitly set flags and validates the result.
func buildConfig(cmd *cobra.Command, f *crawlFlags) (*config.AppConfig, []string, error) {
	appCfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, nil, err
	}

	changed := cmd.Flags().Changed
	if changed("start_page") {
		appCfg.StartPage = f.startPage
	}
	if changed("last_page") {
		appCfg.EndPage = f.lastPage
	}
	if changed("start_id") || appCfg.StartID == 0 {
		appCfg.StartID = f.startID
	}
	if changed("end_id") || appCfg.EndID == 0 {
		appCfg.EndID = f.endID
	}
	if changed("dest_folder") {
		appCfg.DestFolder = f.destFolder
	}
	if changed("json_filepath") {
		appCfg.JSONFilepath = f.jsonFilepath
	}
	if changed("output_mode") {
		appCfg.OutputMode = f.outputMode
	}
	if changed("max_records") {
		appCfg.MaxRecords = f.maxRecords
	}
	if changed("skip_imgs") {
		appCfg.SkipImages = f.skipImgs
	}
	if changed("skip_txt") {
		appCfg.SkipText = f.skipTxt
	}
	if changed("respect_robots") {
		appCfg.RespectRobots = f.respectRobots
	}
	if changed("insecure") {
		appCfg.HTTPClientSettings.InsecureSkipVerify = f.insecure
	}
	if changed("write-visited-log") {
		appCfg.WriteVisitedLog = f.writeVisitedLog
	}
	if changed("metadata-yaml") {
		appCfg.EnableMetadataYAML = f.metadataYAML
	}

	warnings, err := appCfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return appCfg, warnings, nil
}

// executeCrawl runs one crawl in the given mode and renders the run report.
func executeCrawl(cmd *cobra.Command, f *crawlFlags, mode string) error {
	log := setupLogger(f.logLevel, cmd.ErrOrStderr())

	appCfg, warnings, err := buildConfig(cmd, f)
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logAppConfig(appCfg, log)

	crawlCtx := cmd.Context()
	if crawlCtx == nil {
		crawlCtx = context.Background()
	}
	if appCfg.GlobalCrawlTimeout > 0 {
		log.Infof("Setting global crawl timeout: %v", appCfg.GlobalCrawlTimeout)
		var cancel context.CancelFunc
		crawlCtx, cancel = context.WithTimeout(crawlCtx, appCfg.GlobalCrawlTimeout)
		defer cancel()
	}

	log.Info("Initializing components...")
	store, err := storage.NewBadgerStore(log.WithField("component", "ledger"))
	if err != nil {
		return fmt.Errorf("initializing run ledger: %w", err)
	}
	defer store.Close()

	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, log)
	fetcher := fetch.NewPageFetcher(httpClient, appCfg.UserAgent, log.WithField("component", "fetcher"))

	crawlerInstance, err := crawler.NewCrawler(appCfg, fetcher, store, log)
	if err != nil {
		return fmt.Errorf("initializing crawler: %w", err)
	}
	log.WithFields(logrus.Fields{"run_id": crawlerInstance.RunID(), "mode": mode}).Info("Starting crawl")

	var report *crawler.RunReport
	if mode == crawler.ModeRange {
		report, err = crawlerInstance.RunByID(crawlCtx)
	} else {
		report, err = crawlerInstance.Run(crawlCtx)
	}
	if report != nil {
		report.Render(cmd.OutOrStdout())
	}

	switch {
	case err == nil:
		log.WithFields(logrus.Fields{"records": report.Records, "output": report.OutputPath}).Info("Crawl completed successfully.")
		return nil
	case errors.Is(err, crawler.ErrOutputNotWritten):
		log.Errorf("Crawl lost its output: %v", err)
		return err
	case errors.Is(err, context.Canceled):
		log.Warn("Crawl cancelled gracefully, gathered records were written.")
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		log.Error("Crawl timed out (global timeout).")
		return err
	default:
		log.Errorf("Crawl finished with error: %v", err)
		return err
	}
}
