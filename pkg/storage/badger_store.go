package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/log"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

const (
	bookKeyPrefix  = "book:"  // Prefix for book link keys in DB
	assetKeyPrefix = "asset:" // Prefix for asset keys in DB: asset:<kind>:<book url>
)

// BadgerStore implements the RunLedger interface using an in-memory BadgerDB.
// Nothing is written to disk: the ledger lives exactly as long as one run.
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Entry
}

// NewBadgerStore opens an empty in-memory ledger
func NewBadgerStore(logger *logrus.Entry) (*BadgerStore, error) {
	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening in-memory ledger: %w", utils.ErrDatabase, err)
	}
	logger.Debug("Run ledger initialized.")
	return &BadgerStore{db: db, log: logger}, nil
}

func assetKey(normalizedBookURL string, kind models.AssetKind) []byte {
	return []byte(assetKeyPrefix + string(kind) + ":" + normalizedBookURL)
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// getJSON decodes the value at key into dst. found is false when the key is absent.
func (s *BadgerStore) getJSON(key []byte, dst any) (found bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		found = true
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return nil
			}
			return json.Unmarshal(val, dst)
		})
	})
	if err != nil {
		return found, fmt.Errorf("%w: reading key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	return found, nil
}

// setJSON stores value at key
func (s *BadgerStore) setJSON(key []byte, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encoding value for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if err := s.dbUpdate(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, b))
	}); err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error: %v", err)
		return fmt.Errorf("%w: writing key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	return nil
}

// MarkBookSeen implements the BookLedger interface
func (s *BadgerStore) MarkBookSeen(normalizedBookURL string) (bool, error) {
	added := false
	key := []byte(bookKeyPrefix + normalizedBookURL)
	pending, err := json.Marshal(models.BookDBEntry{Status: models.BookStatusPending, LastAttempt: time.Now()})
	if err != nil {
		return false, fmt.Errorf("%w: encoding pending entry: %w", utils.ErrDatabase, err)
	}

	err = s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			if errSet := txn.SetEntry(badger.NewEntry(key, pending)); errSet != nil {
				return errSet
			}
			added = true
			return nil
		}
		return errGet // nil when the key already exists
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in MarkBookSeen: %v", err)
		return false, fmt.Errorf("%w: marking book key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	return added, nil
}

// CheckBookStatus implements the BookLedger interface
func (s *BadgerStore) CheckBookStatus(normalizedBookURL string) (models.BookStatus, *models.BookDBEntry, error) {
	var entry models.BookDBEntry
	found, err := s.getJSON([]byte(bookKeyPrefix+normalizedBookURL), &entry)
	if err != nil {
		s.log.Errorf("DB View error in CheckBookStatus: %v", err)
		return models.BookStatusDBError, nil, err
	}
	if !found {
		return models.BookStatusNotFound, nil, nil
	}
	return entry.Status, &entry, nil
}

// UpdateBookStatus implements the BookLedger interface
func (s *BadgerStore) UpdateBookStatus(normalizedBookURL string, entry *models.BookDBEntry) error {
	if err := s.setJSON([]byte(bookKeyPrefix+normalizedBookURL), entry); err != nil {
		return err
	}
	s.log.Debugf("Book '%s' -> %s", normalizedBookURL, entry.Status)
	return nil
}

// CheckAssetStatus implements the AssetLedger interface
func (s *BadgerStore) CheckAssetStatus(normalizedBookURL string, kind models.AssetKind) (models.AssetStatus, *models.AssetDBEntry, error) {
	var entry models.AssetDBEntry
	found, err := s.getJSON(assetKey(normalizedBookURL, kind), &entry)
	if err != nil {
		s.log.Errorf("DB View error in CheckAssetStatus: %v", err)
		return models.AssetStatusDBError, nil, err
	}
	if !found {
		return models.AssetStatusNotFound, nil, nil
	}
	return entry.Status, &entry, nil
}

// UpdateAssetStatus implements the AssetLedger interface
func (s *BadgerStore) UpdateAssetStatus(normalizedBookURL string, entry *models.AssetDBEntry) error {
	if err := s.setJSON(assetKey(normalizedBookURL, entry.Kind), entry); err != nil {
		return err
	}
	s.log.Debugf("Asset %s of '%s' -> %s", entry.Kind, normalizedBookURL, entry.Status)
	return nil
}

// ledgerLine is one decoded ledger entry, in key order
type ledgerLine struct {
	kind   string
	status string
	url    string
}

// scan iterates all entries in key order and calls fn for each decoded entry
func (s *BadgerStore) scan(ctx context.Context, fn func(ledgerLine) error) error {
	bookPrefix := []byte(bookKeyPrefix)
	assetPrefix := []byte(assetKeyPrefix)

	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			switch {
			case bytes.HasPrefix(key, bookPrefix):
				var e models.BookDBEntry
				if err := json.Unmarshal(val, &e); err != nil {
					s.log.Warnf("Skipping undecodable book entry '%s': %v", string(key), err)
					continue
				}
				if err := fn(ledgerLine{kind: "book", status: string(e.Status), url: string(key[len(bookPrefix):])}); err != nil {
					return err
				}
			case bytes.HasPrefix(key, assetPrefix):
				var e models.AssetDBEntry
				if err := json.Unmarshal(val, &e); err != nil {
					s.log.Warnf("Skipping undecodable asset entry '%s': %v", string(key), err)
					continue
				}
				if err := fn(ledgerLine{kind: string(e.Kind), status: string(e.Status), url: e.URL}); err != nil {
					return err
				}
			default:
				s.log.Warnf("Skipping unexpected key in DB (no book/asset prefix): %s", string(key))
			}
		}
		return nil
	})
}

// CountStatuses implements the LedgerAdmin interface
func (s *BadgerStore) CountStatuses() (map[models.BookStatus]int, map[models.AssetStatus]int, error) {
	books := make(map[models.BookStatus]int)
	assets := make(map[models.AssetStatus]int)
	err := s.scan(context.Background(), func(l ledgerLine) error {
		if l.kind == "book" {
			books[models.BookStatus(l.status)]++
		} else {
			assets[models.AssetStatus(l.status)]++
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: counting statuses: %w", utils.ErrDatabase, err)
	}
	return books, assets, nil
}

// WriteVisitedLog implements the LedgerAdmin interface.
func (s *BadgerStore) WriteVisitedLog(ctx context.Context, filePath string) error {
	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)
	writtenCount := 0

	err := s.scan(ctx, func(l ledgerLine) error {
		if _, err := fmt.Fprintf(writer, "%s\t%s\t%s\n", l.kind, l.status, l.url); err != nil {
			return err
		}
		writtenCount++
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.log.Warnf("WriteVisitedLog scan interrupted: %v", err)
			return err
		}
		return fmt.Errorf("%w: scanning ledger: %w", utils.ErrDatabase, err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("%w: buffering visited log: %w", utils.ErrFilesystem, err)
	}

	if err := utils.WriteFileAtomic(filepath.Dir(filePath), filepath.Base(filePath), buf.Bytes()); err != nil {
		s.log.Errorf("Failed to write visited log '%s': %v", filePath, err)
		return err
	}
	s.log.Infof("Wrote %d ledger entries to visited log: %s", writtenCount, filePath)
	return nil
}

// Close implements the LedgerAdmin interface
func (s *BadgerStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing run ledger: %v", err)
			return err
		}
		s.log.Debug("Run ledger closed.")
	}
	return nil
}
