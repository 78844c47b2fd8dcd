package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingTextLink = errors.New("book record requires a text download link")
	ErrAlreadySet      = errors.New("local path already set")
)

// BookRecord is the metadata extracted from one book detail page.
// It is a value type: WithTextPath and WithCoverPath return enriched copies.
type BookRecord struct {
	ID              int      // Numeric book id, only known when crawling by id
	Title           string   // Left side of the heading, trimmed
	Author          string   // Right side of the heading, trimmed
	Genres          []string // Source order, duplicates kept
	Comments        []string // Source order
	CoverRemoteLink string   // Page-relative or absolute, may be empty
	TextRemoteLink  string   // Page-relative or absolute, never empty
	CoverLocalPath  string   // Set once after a successful download
	TextLocalPath   string   // Set once after a successful download
}

// NewBookRecord validates and builds a record. A record without a text link cannot exist.
func NewBookRecord(title, author, textLink, coverLink string, genres, comments []string) (BookRecord, error) {
	textLink = strings.TrimSpace(textLink)
	if textLink == "" {
		return BookRecord{}, fmt.Errorf("%w: title '%s'", ErrMissingTextLink, title)
	}
	if genres == nil {
		genres = []string{}
	}
	if comments == nil {
		comments = []string{}
	}
	return BookRecord{
		Title:           title,
		Author:          author,
		Genres:          genres,
		Comments:        comments,
		CoverRemoteLink: strings.TrimSpace(coverLink),
		TextRemoteLink:  textLink,
	}, nil
}

// WithTextPath returns a copy carrying the local text path.
func (b BookRecord) WithTextPath(p string) (BookRecord, error) {
	if b.TextLocalPath != "" {
		return b, fmt.Errorf("%w: text path for '%s' is '%s'", ErrAlreadySet, b.Title, b.TextLocalPath)
	}
	b.TextLocalPath = p
	return b, nil
}

// WithCoverPath returns a copy carrying the local cover path.
func (b BookRecord) WithCoverPath(p string) (BookRecord, error) {
	if b.CoverLocalPath != "" {
		return b, fmt.Errorf("%w: cover path for '%s' is '%s'", ErrAlreadySet, b.Title, b.CoverLocalPath)
	}
	b.CoverLocalPath = p
	return b, nil
}

// OutputRecord is the serialized form of a BookRecord.
// ImgSrc and BookPath are omitted when the asset is unavailable.
type OutputRecord struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	ImgSrc   string   `json:"img_src,omitempty"`
	BookPath string   `json:"book_path,omitempty"`
	Genres   []string `json:"genres"`
	Comments []string `json:"comments"`
}

// Output converts the record using the given asset references.
func (b BookRecord) Output(imgSrc, bookPath string) OutputRecord {
	out := OutputRecord{
		Title:    b.Title,
		Author:   b.Author,
		ImgSrc:   imgSrc,
		BookPath: bookPath,
		Genres:   b.Genres,
		Comments: b.Comments,
	}
	if out.Genres == nil {
		out.Genres = []string{}
	}
	if out.Comments == nil {
		out.Comments = []string{}
	}
	return out
}

// BookDBEntry stores the outcome of processing a book link in the run ledger
type BookDBEntry struct {
	Status      BookStatus `json:"status"`
	Title       string     `json:"title,omitempty"`
	ErrorType   string     `json:"error_type,omitempty"` // Error category (on failure)
	LastAttempt time.Time  `json:"last_attempt"`
}

// AssetDBEntry stores the outcome of downloading one asset in the run ledger
type AssetDBEntry struct {
	Status      AssetStatus `json:"status"`
	Kind        AssetKind   `json:"kind"`
	URL         string      `json:"url"`                  // Absolute asset URL
	LocalPath   string      `json:"local_path,omitempty"` // On success
	ErrorType   string      `json:"error_type,omitempty"` // On failure
	LastAttempt time.Time   `json:"last_attempt"`
}

// RunMetadata is written to metadata.yaml at the end of a run when enabled.
type RunMetadata struct {
	RunID         string         `yaml:"run_id"`
	Mode          string         `yaml:"mode"` // "category" or "range"
	CategoryURL   string         `yaml:"category_url,omitempty"`
	StartTime     time.Time      `yaml:"start_time"`
	EndTime       time.Time      `yaml:"end_time"`
	OutputPath    string         `yaml:"output_path"`
	RecordCount   int            `yaml:"record_count"`
	Counters      map[string]int `yaml:"counters,omitempty"`
	FailureReason string         `yaml:"failure_reason,omitempty"`
	Books         []BookMetadata `yaml:"books"`
}

// BookMetadata holds per-book metadata for metadata.yaml.
type BookMetadata struct {
	ID        int    `yaml:"id,omitempty"`
	Title     string `yaml:"title"`
	Author    string `yaml:"author"`
	TextPath  string `yaml:"text_path,omitempty"`
	CoverPath string `yaml:"cover_path,omitempty"`
}
