package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// Defaults for the tululu.org science-fiction category
const (
	DefaultCategoryURL      = "https://tululu.org/l55/"
	DefaultUserAgent        = "catalog-scraper/1.0"
	DefaultTransientBackoff = 4 * time.Second
	DefaultTransientRetries = 1
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// CategoryURL
	if c.CategoryURL == "" {
		c.CategoryURL = DefaultCategoryURL
	}
	u, parseErr := url.Parse(c.CategoryURL)
	if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return warnings, fmt.Errorf("%w: category_url '%s' must be an absolute http(s) URL", utils.ErrConfigValidation, c.CategoryURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		warnings = append(warnings, fmt.Sprintf("category_url '%s' has no trailing slash, appending one", c.CategoryURL))
		u.Path += "/"
		c.CategoryURL = u.String()
	}

	// Page range
	if c.StartPage <= 0 {
		if c.StartPage < 0 {
			warnings = append(warnings, "start_page cannot be negative, defaulting to 1")
		}
		c.StartPage = 1
	}
	if c.EndPage < 0 {
		return warnings, fmt.Errorf("%w: end_page cannot be negative", utils.ErrConfigValidation)
	}
	if c.EndPage > 0 && c.EndPage <= c.StartPage {
		return warnings, fmt.Errorf("%w: end_page (%d) must be greater than start_page (%d), the end is exclusive",
			utils.ErrConfigValidation, c.EndPage, c.StartPage)
	}

	// Id range
	if c.StartID < 0 || c.EndID < 0 {
		return warnings, fmt.Errorf("%w: start_id and end_id cannot be negative", utils.ErrConfigValidation)
	}
	if c.StartID > 0 && c.EndID > 0 && c.EndID < c.StartID {
		return warnings, fmt.Errorf("%w: end_id (%d) is before start_id (%d)", utils.ErrConfigValidation, c.EndID, c.StartID)
	}

	// MaxRecords
	if c.MaxRecords < 0 {
		return warnings, fmt.Errorf("%w: max_records cannot be negative", utils.ErrConfigValidation)
	}

	// Output locations
	if c.DestFolder == "" {
		c.DestFolder = "."
	}
	if c.BooksDir == "" {
		c.BooksDir = "books"
	}
	if c.ImagesDir == "" {
		c.ImagesDir = "images"
	}
	if c.JSONFilepath == "" {
		c.JSONFilepath = "json/book_desc.json"
	}

	// OutputMode
	switch c.OutputMode {
	case "":
		c.OutputMode = OutputModeTruncate
	case OutputModeTruncate:
	case OutputModeAppend:
		warnings = append(warnings,
			"output_mode 'append' concatenates JSON arrays across runs; the file will not be a single valid JSON document")
	default:
		return warnings, fmt.Errorf("%w: unknown output_mode '%s' (want '%s' or '%s')",
			utils.ErrConfigValidation, c.OutputMode, OutputModeTruncate, OutputModeAppend)
	}

	if c.SkipText && c.SkipImages {
		warnings = append(warnings, "both skip_text and skip_images are set, only metadata will be collected")
	}

	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// Transient failure policy
	if c.TransientBackoff < 0 {
		warnings = append(warnings, "transient_backoff cannot be negative, defaulting to 4s")
		c.TransientBackoff = DefaultTransientBackoff
	}
	if c.TransientBackoff == 0 {
		c.TransientBackoff = DefaultTransientBackoff
	}
	if c.TransientRetries != nil && *c.TransientRetries < 0 {
		warnings = append(warnings, "transient_retries cannot be negative, setting to 0")
		zero := 0
		c.TransientRetries = &zero
	}

	// GlobalCrawlTimeout
	if c.GlobalCrawlTimeout < 0 {
		warnings = append(warnings, "global_crawl_timeout cannot be negative, disabling timeout")
		c.GlobalCrawlTimeout = 0
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()
	if c.HTTPClientSettings.InsecureSkipVerify {
		warnings = append(warnings, "insecure_skip_verify is enabled, TLS certificates will not be verified")
	}

	// Optional output filenames, set regardless of their toggles
	if c.MetadataYAMLFilename == "" {
		c.MetadataYAMLFilename = "metadata.yaml"
	}
	if c.VisitedLogFilename == "" {
		c.VisitedLogFilename = "visited.txt"
	}

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
