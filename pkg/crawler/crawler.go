package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/catalog"
	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/fetch"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/parse"
	"github.com/Sriram-PR/catalog-scraper/pkg/process"
	"github.com/Sriram-PR/catalog-scraper/pkg/storage"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

var (
	ErrAlreadyRan = errors.New("crawler already ran")
	// ErrOutputNotWritten marks a run whose record file could not be written.
	ErrOutputNotWritten = errors.New("book records were not written")
)

// Crawler runs the catalog pipeline: listing pages, book pages, assets, one output write.
// Everything happens sequentially on the calling goroutine.
type Crawler struct {
	log      *logrus.Entry
	cfg      *config.AppConfig
	siteRoot *url.URL
	runID    string

	fetcher   fetch.Fetcher // Retry policy applied, robots check when enabled
	paginator *catalog.Paginator
	assets    *process.AssetDownloader
	store     storage.RunLedger
	output    *OutputManager

	report  *RunReport
	records []models.BookRecord
	outputs []models.OutputRecord
	ran     bool
}

// NewCrawler wires a Crawler around a single-attempt fetcher. cfg must already be validated.
// The retry policy and, when RespectRobots is set, the robots.txt check are layered on top of fetcher.
func NewCrawler(cfg *config.AppConfig, fetcher fetch.Fetcher, store storage.RunLedger, baseLogger *logrus.Logger) (*Crawler, error) {
	siteRoot, err := parse.SiteRoot(cfg.CategoryURL)
	if err != nil {
		return nil, fmt.Errorf("category url: %w", err)
	}

	runID := uuid.NewString()
	logger := baseLogger.WithField("run_id", runID)

	var f fetch.Fetcher = fetch.NewRetryFetcher(fetcher, cfg.TransientBackoff, cfg.EffectiveTransientRetries(), logger)
	if cfg.RespectRobots {
		logger.Info("robots.txt checks enabled")
		f = &fetch.RobotsFetcher{
			Next:   f,
			Robots: fetch.NewRobotsHandler(fetcher, cfg.UserAgent, logger),
		}
	}

	return &Crawler{
		log:       logger,
		cfg:       cfg,
		siteRoot:  siteRoot,
		runID:     runID,
		fetcher:   f,
		paginator: catalog.NewPaginator(f, logger),
		assets:    process.NewAssetDownloader(f, siteRoot, logger),
		store:     store,
		output:    NewOutputManager(logger, cfg),
		report:    &RunReport{RunID: runID},
	}, nil
}

// RunID identifies this run in logs, metadata and the report.
func (c *Crawler) RunID() string { return c.runID }

// Run walks the configured category pages and processes every detail link found.
// Records gathered before a hard failure or cancellation are still written.
func (c *Crawler) Run(ctx context.Context) (*RunReport, error) {
	if err := c.begin(ModeCategory); err != nil {
		return nil, err
	}
	runLog := c.log.WithFields(logrus.Fields{"mode": ModeCategory, "category_url": c.cfg.CategoryURL})
	runLog.Info("Catalog crawl starting...")

	endPage := c.cfg.EndPage
	if endPage == 0 {
		last, err := c.paginator.LastPage(ctx, c.cfg.CategoryURL)
		if err != nil {
			return c.finish(ctx, err)
		}
		endPage = last
	}
	runLog.Infof("Walking category pages [%d, %d)", c.cfg.StartPage, endPage)

	listing, err := c.paginator.CollectBookLinks(ctx, c.cfg.CategoryURL, c.cfg.StartPage, endPage)
	if listing != nil {
		c.report.LinksFound = len(listing.Links)
		c.report.PagesSkipped = len(listing.SkippedPages)
	}
	if err != nil {
		return c.finish(ctx, err)
	}

	for _, link := range listing.Links {
		stop, err := c.processBook(ctx, link, 0, process.DownloadOptions{}, process.DownloadOptions{})
		if err != nil {
			return c.finish(ctx, err)
		}
		if stop {
			break
		}
	}
	return c.finish(ctx, nil)
}

// RunByID visits <site>/b<id>/ for every id in [StartID, EndID].
// Text files are named "<id>.<title>.txt" and covers "<id>_<title><ext>".
func (c *Crawler) RunByID(ctx context.Context) (*RunReport, error) {
	if err := c.begin(ModeRange); err != nil {
		return nil, err
	}
	if c.cfg.StartID <= 0 || c.cfg.EndID < c.cfg.StartID {
		return c.finish(ctx, fmt.Errorf("%w: id range [%d, %d] is empty", utils.ErrConfigValidation, c.cfg.StartID, c.cfg.EndID))
	}
	c.log.WithFields(logrus.Fields{"mode": ModeRange, "start_id": c.cfg.StartID, "end_id": c.cfg.EndID}).
		Info("Range crawl starting...")

	for id := c.cfg.StartID; id <= c.cfg.EndID; id++ {
		c.report.LinksFound++
		textOpts := process.DownloadOptions{FilePrefix: fmt.Sprintf("%d.", id)}
		coverOpts := process.DownloadOptions{FilePrefix: fmt.Sprintf("%d_", id)}
		stop, err := c.processBook(ctx, parse.BookURL(c.siteRoot, id), id, textOpts, coverOpts)
		if err != nil {
			return c.finish(ctx, err)
		}
		if stop {
			break
		}
	}
	return c.finish(ctx, nil)
}

func (c *Crawler) begin(mode string) error {
	if c.ran {
		return ErrAlreadyRan
	}
	c.ran = true
	c.report.Mode = mode
	c.report.StartTime = time.Now()
	return nil
}

// processBook handles one detail link. stop reports that the record limit was reached;
// a non-nil error is a hard failure that ends the run.
func (c *Crawler) processBook(ctx context.Context, bookURL string, id int, textOpts, coverOpts process.DownloadOptions) (stop bool, err error) {
	if err := ctx.Err(); err != nil {
		return true, err
	}
	bookLog := c.log.WithField("book", bookURL)

	normURL, _, err := parse.ParseAndNormalize(bookURL)
	if err != nil {
		return true, fmt.Errorf("%w: book link '%s': %w", utils.ErrParse, bookURL, err)
	}
	isNew, err := c.store.MarkBookSeen(normURL)
	if err != nil {
		return true, err
	}
	if !isNew {
		c.report.Duplicates++
		c.logDuplicate(normURL, bookLog)
		return false, nil
	}

	page, err := c.fetcher.Fetch(ctx, bookURL)
	if err != nil {
		return false, c.skipBook(ctx, normURL, err, bookLog)
	}
	html, err := page.Text()
	if err != nil {
		return true, c.parseFailure(normURL, bookURL, err, bookLog)
	}
	parsed, err := parse.ParseBookPage([]byte(html))
	if err != nil {
		return true, c.parseFailure(normURL, bookURL, err, bookLog)
	}
	if parsed == nil {
		c.report.BooksAbsent++
		c.recordBook(normURL, models.BookStatusAbsent, "", nil, bookLog)
		bookLog.Info("No text download link, skipping")
		return false, nil
	}

	rec := *parsed
	rec.ID = id
	bookLog = bookLog.WithField("title", rec.Title)

	rec, out, err := c.enrich(ctx, normURL, rec, textOpts, coverOpts, bookLog)
	if err != nil {
		return true, err
	}
	c.records = append(c.records, rec)
	c.outputs = append(c.outputs, out)
	c.recordBook(normURL, models.BookStatusSuccess, rec.Title, nil, bookLog)
	bookLog.WithFields(logrus.Fields{"text": rec.TextLocalPath, "cover": rec.CoverLocalPath}).Info("Book recorded")

	if c.cfg.MaxRecords > 0 && len(c.records) >= c.cfg.MaxRecords {
		c.report.StoppedAtLimit = true
		c.log.Infof("Reached max_records=%d, stopping", c.cfg.MaxRecords)
		return true, nil
	}
	return false, nil
}

// parseFailure counts and records a book page that could not be decoded or parsed.
// The returned error ends the run.
func (c *Crawler) parseFailure(normURL, bookURL string, cause error, bookLog *logrus.Entry) error {
	c.report.ParseFailures++
	c.recordBook(normURL, models.BookStatusParseError, "", cause, bookLog)
	bookLog.Errorf("Book page broke the expected structure, stopping: %v", cause)
	return fmt.Errorf("book '%s': %w", bookURL, cause)
}

// logDuplicate reports what the ledger already holds for a repeated book link.
func (c *Crawler) logDuplicate(normURL string, bookLog *logrus.Entry) {
	fields := logrus.Fields{}
	if status, _, err := c.store.CheckBookStatus(normURL); err == nil {
		fields["earlier_status"] = status
	}
	for _, kind := range []models.AssetKind{models.AssetKindText, models.AssetKindCover} {
		if status, _, err := c.store.CheckAssetStatus(normURL, kind); err == nil {
			fields[string(kind)] = status
		}
	}
	bookLog.WithFields(fields).Debug("Duplicate book link, skipping")
}

// skipBook records a book that could not be fetched. Returns nil when the run can continue.
func (c *Crawler) skipBook(ctx context.Context, normURL string, fetchErr error, bookLog *logrus.Entry) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	switch {
	case utils.IsUnavailable(fetchErr):
		c.report.BooksUnavailable++
		c.recordBook(normURL, models.BookStatusUnavailable, "", fetchErr, bookLog)
		bookLog.Warnf("Book page does not exist, skipping: %v", fetchErr)
	case utils.IsTransient(fetchErr):
		c.report.BooksTransient++
		c.recordBook(normURL, models.BookStatusTransient, "", fetchErr, bookLog)
		bookLog.Warnf("Book page unreachable, check your internet connection. Skipping: %v", fetchErr)
	case errors.Is(fetchErr, utils.ErrRobotsDisallowed):
		c.report.BooksDisallowed++
		c.recordBook(normURL, models.BookStatusDisallowed, "", fetchErr, bookLog)
		bookLog.Info("Book page disallowed by robots.txt, skipping")
	default:
		return fmt.Errorf("fetching book '%s': %w", normURL, fetchErr)
	}
	return nil
}

// enrich downloads the assets of rec per the skip toggles and builds its output form.
func (c *Crawler) enrich(ctx context.Context, normURL string, rec models.BookRecord, textOpts, coverOpts process.DownloadOptions, bookLog *logrus.Entry) (models.BookRecord, models.OutputRecord, error) {
	var bookRef, imgRef string

	if c.cfg.SkipText {
		bookRef = c.skipAsset(normURL, models.AssetKindText, rec.TextRemoteLink, bookLog)
	} else {
		localPath, err := c.assets.DownloadText(ctx, rec.TextRemoteLink, rec.Title, c.cfg.BooksPath(), textOpts)
		ok, err := c.recordAsset(ctx, normURL, models.AssetKindText, rec.TextRemoteLink, localPath, err, bookLog)
		if err != nil {
			return rec, models.OutputRecord{}, err
		}
		if ok {
			if rec, err = rec.WithTextPath(localPath); err != nil {
				return rec, models.OutputRecord{}, err
			}
			bookRef = localPath
		}
	}

	if c.cfg.SkipImages {
		imgRef = c.skipAsset(normURL, models.AssetKindCover, rec.CoverRemoteLink, bookLog)
	} else {
		localPath, err := c.assets.DownloadCover(ctx, rec.CoverRemoteLink, rec.Title, c.cfg.ImagesPath(), coverOpts)
		ok, err := c.recordAsset(ctx, normURL, models.AssetKindCover, rec.CoverRemoteLink, localPath, err, bookLog)
		if err != nil {
			return rec, models.OutputRecord{}, err
		}
		if ok {
			if rec, err = rec.WithCoverPath(localPath); err != nil {
				return rec, models.OutputRecord{}, err
			}
			imgRef = localPath
		}
	}

	return rec, rec.Output(imgRef, bookRef), nil
}

// skipAsset records a disabled download phase and returns the resolved remote link.
func (c *Crawler) skipAsset(normURL string, kind models.AssetKind, remoteLink string, bookLog *logrus.Entry) string {
	absURL, err := c.assets.Resolve(remoteLink)
	if err != nil {
		bookLog.WithField("asset", kind).Debugf("No usable remote link: %v", err)
		absURL = ""
	}
	entry := &models.AssetDBEntry{Status: models.AssetStatusSkipped, Kind: kind, URL: absURL, LastAttempt: time.Now()}
	if err := c.store.UpdateAssetStatus(normURL, entry); err != nil {
		bookLog.Warnf("Failed to record skipped %s asset: %v", kind, err)
	}
	return absURL
}

// recordAsset classifies a download result. downloaded is true when localPath holds the asset;
// a non-nil error ends the run.
func (c *Crawler) recordAsset(ctx context.Context, normURL string, kind models.AssetKind, remoteLink, localPath string, dlErr error, bookLog *logrus.Entry) (downloaded bool, err error) {
	assetLog := bookLog.WithField("asset", kind)
	absURL, _ := c.assets.Resolve(remoteLink)
	entry := &models.AssetDBEntry{Kind: kind, URL: absURL, LastAttempt: time.Now()}

	switch {
	case dlErr == nil:
		entry.Status = models.AssetStatusSuccess
		entry.LocalPath = localPath
		downloaded = true
	case ctx.Err() != nil:
		return false, ctx.Err()
	case utils.IsUnavailable(dlErr):
		c.report.AssetsUnavailable++
		entry.Status = models.AssetStatusUnavailable
		entry.ErrorType = utils.CategorizeError(dlErr)
		assetLog.Warnf("Asset missing on the site: %v", dlErr)
	case utils.IsTransient(dlErr):
		c.report.AssetsTransient++
		entry.Status = models.AssetStatusTransient
		entry.ErrorType = utils.CategorizeError(dlErr)
		assetLog.Warnf("Asset unreachable, check your internet connection. Skipping: %v", dlErr)
	case errors.Is(dlErr, utils.ErrRobotsDisallowed):
		entry.Status = models.AssetStatusSkipped
		entry.ErrorType = utils.CategorizeError(dlErr)
		assetLog.Info("Asset disallowed by robots.txt, skipping")
	default:
		entry.Status = models.AssetStatusFailure
		entry.ErrorType = utils.CategorizeError(dlErr)
		if err := c.store.UpdateAssetStatus(normURL, entry); err != nil {
			assetLog.Warnf("Failed to record %s asset failure: %v", kind, err)
		}
		return false, fmt.Errorf("saving %s asset of '%s': %w", kind, normURL, dlErr)
	}

	if err := c.store.UpdateAssetStatus(normURL, entry); err != nil {
		return false, err
	}
	return downloaded, nil
}

// recordBook stores the final status of a book link. Ledger errors are logged only.
func (c *Crawler) recordBook(normURL string, status models.BookStatus, title string, cause error, bookLog *logrus.Entry) {
	entry := &models.BookDBEntry{Status: status, Title: title, LastAttempt: time.Now()}
	if cause != nil {
		entry.ErrorType = utils.CategorizeError(cause)
	}
	if err := c.store.UpdateBookStatus(normURL, entry); err != nil {
		bookLog.Warnf("Failed to record book status '%s': %v", status, err)
	}
}

// finish writes the gathered records once, then the optional side outputs, and closes the report.
func (c *Crawler) finish(ctx context.Context, runErr error) (*RunReport, error) {
	r := c.report
	runLog := c.log.WithField("mode", r.Mode)

	if runErr != nil {
		r.FailureReason = fmt.Sprintf("%s: %v", utils.CategorizeError(runErr), runErr)
		runLog.Errorf("Run stopped early: %v", runErr)
	}

	outPath, writeErr := c.output.WriteRecords(c.outputs)
	r.OutputPath = outPath
	if writeErr == nil {
		r.Records = len(c.outputs)
	} else {
		runLog.Errorf("Failed to write book records: %v", writeErr)
		writeErr = fmt.Errorf("%w: %w", ErrOutputNotWritten, writeErr)
	}
	r.EndTime = time.Now()

	// Side outputs run even when the run context is already cancelled
	sideCtx := context.WithoutCancel(ctx)
	if c.cfg.WriteVisitedLog {
		if err := c.store.WriteVisitedLog(sideCtx, c.cfg.VisitedLogPath()); err != nil {
			runLog.Errorf("Failed to write visited log: %v", err)
		} else {
			runLog.Infof("Wrote visited log to %s", c.cfg.VisitedLogPath())
		}
	}
	if err := c.output.WriteMetadataYAML(r.metadata(c.cfg.CategoryURL, c.records)); err != nil {
		runLog.Errorf("Failed to write final metadata YAML: %v", err)
	}

	if books, assets, err := c.store.CountStatuses(); err != nil {
		runLog.Warnf("Failed to count ledger statuses: %v", err)
	} else {
		runLog.WithFields(logrus.Fields{"books": books, "assets": assets}).Debug("Ledger totals")
	}

	fields := logrus.Fields{"duration": r.Duration().Round(time.Millisecond)}
	for name, v := range r.Counters() {
		fields[name] = v
	}
	runLog.WithFields(fields).Info("Catalog run finished")

	return r, errors.Join(runErr, writeErr)
}
