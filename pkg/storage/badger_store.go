package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"policy-scraper/pkg/log"
	"policy-scraper/pkg/utils"
)

const pageKeyPrefix = "page:" // key prefix for cached page bodies

// BadgerStore implements PageCache on BadgerDB. Entries carry badger-level
// TTLs, so expiry is enforced by the store itself; Get additionally checks
// FetchedAt against the configured window for clock safety.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
	log *logrus.Entry
}

// NewBadgerStore opens (or creates) the page cache at cacheDir.
func NewBadgerStore(cacheDir string, ttl time.Duration, logger *logrus.Entry) (*BadgerStore, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create cache directory %s: %w", cacheDir, err)
	}

	logger.Infof("Opening page cache at %s (ttl %v)", cacheDir, ttl)
	opts := badger.DefaultOptions(cacheDir).
		WithLogger(log.NewBadgerAdapter(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrCache, "open badger at %s: %v", cacheDir, err)
	}
	return &BadgerStore{db: db, ttl: ttl, log: logger}, nil
}

// Get returns the cached page for url, or (nil, nil) if absent or expired.
func (s *BadgerStore) Get(url string) (*CachedPage, error) {
	var page *CachedPage
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(pageKeyPrefix + url))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var p CachedPage
			if err := json.Unmarshal(val, &p); err != nil {
				return err
			}
			page = &p
			return nil
		})
	})
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrCache, "get %s: %v", url, err)
	}
	if page != nil && s.ttl > 0 && time.Since(page.FetchedAt) > s.ttl {
		return nil, nil
	}
	return page, nil
}

// Put stores a fetched page under url with the store's TTL.
func (s *BadgerStore) Put(url string, body []byte, finalURL string, statusCode int) error {
	page := CachedPage{
		Body:       body,
		FinalURL:   finalURL,
		StatusCode: statusCode,
		FetchedAt:  time.Now().UTC(),
	}
	val, err := json.Marshal(page)
	if err != nil {
		return utils.WrapErrorf(utils.ErrCache, "marshal %s: %v", url, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(pageKeyPrefix+url), val)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return utils.WrapErrorf(utils.ErrCache, "put %s: %v", url, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	s.log.Debug("Closing page cache")
	return s.db.Close()
}
