package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// Output write modes for the JSON record file
const (
	OutputModeTruncate = "truncate"
	OutputModeAppend   = "append"
)

// EnvPrefix is the prefix of environment variables that override YAML values
const EnvPrefix = "CATALOG_SCRAPER_"

// AppConfig holds the application configuration for one catalog run
type AppConfig struct {
	CategoryURL          string           `yaml:"category_url"`
	StartPage            int              `yaml:"start_page"`
	EndPage              int              `yaml:"end_page,omitempty"` // Exclusive; 0 = discover from the category page
	StartID              int              `yaml:"start_id,omitempty"` // Range mode, inclusive
	EndID                int              `yaml:"end_id,omitempty"`   // Range mode, inclusive
	DestFolder           string           `yaml:"dest_folder"`
	BooksDir             string           `yaml:"books_dir,omitempty"`
	ImagesDir            string           `yaml:"images_dir,omitempty"`
	JSONFilepath         string           `yaml:"json_filepath"`
	OutputMode           string           `yaml:"output_mode,omitempty"`
	MaxRecords           int              `yaml:"max_records,omitempty"` // 0 = unbounded
	SkipImages           bool             `yaml:"skip_images,omitempty"`
	SkipText             bool             `yaml:"skip_text,omitempty"`
	RespectRobots        bool             `yaml:"respect_robots,omitempty"`
	UserAgent            string           `yaml:"user_agent,omitempty"`
	TransientBackoff     time.Duration    `yaml:"transient_backoff,omitempty"`
	TransientRetries     *int             `yaml:"transient_retries,omitempty"` // nil = default (1), 0 = no retry
	GlobalCrawlTimeout   time.Duration    `yaml:"global_crawl_timeout,omitempty"`
	EnableMetadataYAML   bool             `yaml:"enable_metadata_yaml,omitempty"`
	MetadataYAMLFilename string           `yaml:"metadata_yaml_filename,omitempty"`
	WriteVisitedLog      bool             `yaml:"write_visited_log,omitempty"`
	VisitedLogFilename   string           `yaml:"visited_log_filename,omitempty"`
	HTTPClientSettings   HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
	InsecureSkipVerify    bool          `yaml:"insecure_skip_verify,omitempty"`    // Disable certificate verification for this client
}

// Load reads a YAML config file and applies CATALOG_SCRAPER_* environment overrides.
// An empty path yields a zero config (defaults come from Validate).
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config '%s': %w", utils.ErrConfigValidation, path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from environment variables resolved by lookup.
func (c *AppConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q is not an integer", utils.ErrConfigValidation, EnvPrefix, key, v)
		}
		*dst = n
		return nil
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q is not a boolean", utils.ErrConfigValidation, EnvPrefix, key, v)
		}
		*dst = b
		return nil
	}

	str("CATEGORY_URL", &c.CategoryURL)
	str("DEST_FOLDER", &c.DestFolder)
	str("JSON_FILEPATH", &c.JSONFilepath)
	str("OUTPUT_MODE", &c.OutputMode)
	str("USER_AGENT", &c.UserAgent)

	for key, dst := range map[string]*int{
		"START_PAGE":  &c.StartPage,
		"END_PAGE":    &c.EndPage,
		"MAX_RECORDS": &c.MaxRecords,
	} {
		if err := integer(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*bool{
		"SKIP_IMAGES":          &c.SkipImages,
		"SKIP_TEXT":            &c.SkipText,
		"RESPECT_ROBOTS":       &c.RespectRobots,
		"INSECURE_SKIP_VERIFY": &c.HTTPClientSettings.InsecureSkipVerify,
	} {
		if err := boolean(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// EffectiveTransientRetries returns the retry count after a connectivity failure.
func (c *AppConfig) EffectiveTransientRetries() int {
	if c.TransientRetries != nil {
		return *c.TransientRetries
	}
	return DefaultTransientRetries
}

// BooksPath is the directory text files are written to.
func (c *AppConfig) BooksPath() string {
	return filepath.Join(c.DestFolder, c.BooksDir)
}

// ImagesPath is the directory cover images are written to.
func (c *AppConfig) ImagesPath() string {
	return filepath.Join(c.DestFolder, c.ImagesDir)
}

// OutputPath is the JSON record file. Relative paths resolve under DestFolder.
func (c *AppConfig) OutputPath() string {
	return c.underDest(c.JSONFilepath)
}

// MetadataPath is the YAML metadata file, written next to the JSON output.
func (c *AppConfig) MetadataPath() string {
	return filepath.Join(filepath.Dir(c.OutputPath()), c.MetadataYAMLFilename)
}

// VisitedLogPath is the ledger dump written when WriteVisitedLog is set.
func (c *AppConfig) VisitedLogPath() string {
	return c.underDest(c.VisitedLogFilename)
}

func (c *AppConfig) underDest(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DestFolder, p)
}
