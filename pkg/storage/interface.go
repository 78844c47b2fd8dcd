package storage

import (
	"context"

	"github.com/Sriram-PR/catalog-scraper/pkg/models"
)

// BookLedger tracks book links seen during the current run
type BookLedger interface {
	// MarkBookSeen records a book link as pending.
	// Returns true if the link was newly added, false if it was already seen in this run
	MarkBookSeen(normalizedBookURL string) (bool, error)

	// CheckBookStatus retrieves the status and details of a book link
	// Returns BookStatusNotFound for unknown links and BookStatusDBError on failure
	CheckBookStatus(normalizedBookURL string) (status models.BookStatus, entry *models.BookDBEntry, err error)

	// UpdateBookStatus records the outcome of processing a book link
	UpdateBookStatus(normalizedBookURL string, entry *models.BookDBEntry) error
}

// AssetLedger tracks asset downloads, keyed by the owning book and the asset kind
type AssetLedger interface {
	CheckAssetStatus(normalizedBookURL string, kind models.AssetKind) (status models.AssetStatus, entry *models.AssetDBEntry, err error)
	UpdateAssetStatus(normalizedBookURL string, entry *models.AssetDBEntry) error
}

// LedgerAdmin handles reporting and lifecycle operations
type LedgerAdmin interface {
	// CountStatuses tallies every book and asset entry by status
	CountStatuses() (books map[models.BookStatus]int, assets map[models.AssetStatus]int, err error)

	// WriteVisitedLog writes one "<kind>\t<status>\t<url>" line per ledger entry to filePath
	WriteVisitedLog(ctx context.Context, filePath string) error

	// Close releases the underlying database
	Close() error
}

// RunLedger combines all ledger interfaces for components that need full access
type RunLedger interface {
	BookLedger
	AssetLedger
	LedgerAdmin
}
