// Package database provides persistence for fetched catalog pages using BoltDB.
package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/amaumene/moviematch/internal/models"
)

const (
	dbFileMode = 0600
	dbDirMode  = 0755

	defaultDBFile = "data.db"
)

var pagesBucket = []byte("catalog_pages")

// CachedPage is a catalog page together with the time it was fetched.
type CachedPage struct {
	Catalog   string                   `json:"catalog"`
	Page      int                      `json:"page"`
	FetchedAt time.Time                `json:"fetched_at"`
	Response  models.TMDBMovieResponse `json:"response"`
}

// Database defines the persistence operations used by the catalog client.
type Database interface {
	// GetPage returns a stored page younger than maxAge, or nil when absent or stale
	GetPage(catalog string, page int, maxAge time.Duration) (*models.TMDBMovieResponse, error)
	// StorePage upserts a fetched page
	StorePage(catalog string, page int, resp *models.TMDBMovieResponse) error
	// PurgeOlderThan removes pages fetched before now-age
	PurgeOlderThan(age time.Duration) (int, error)
	// Close closes the database
	Close() error
}

// BoltDB implements Database on top of bbolt.
type BoltDB struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBolt opens (or creates) the database file.
// If dbPath is empty, uses the default database file in current directory.
func NewBolt(dbPath string) (*BoltDB, error) {
	if dbPath == "" {
		dbPath = filepath.Join(".", defaultDBFile)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), dbDirMode); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, dbFileMode, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(pagesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltDB{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func pageKey(catalog string, page int) []byte {
	return []byte(fmt.Sprintf("%s:%03d", catalog, page))
}

// GetPage retrieves a page if it is fresh enough.
func (b *BoltDB) GetPage(catalog string, page int, maxAge time.Duration) (*models.TMDBMovieResponse, error) {
	var cached *CachedPage
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(pagesBucket).Get(pageKey(catalog, page))
		if data == nil {
			return nil
		}
		cached = &CachedPage{}
		return json.Unmarshal(data, cached)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read page %s:%d: %w", catalog, page, err)
	}
	if cached == nil {
		return nil, nil
	}
	if maxAge > 0 && b.now().Sub(cached.FetchedAt) > maxAge {
		return nil, nil
	}
	return &cached.Response, nil
}

// StorePage stores a fetched page, replacing any older copy.
func (b *BoltDB) StorePage(catalog string, page int, resp *models.TMDBMovieResponse) error {
	data, err := json.Marshal(&CachedPage{
		Catalog:   catalog,
		Page:      page,
		FetchedAt: b.now(),
		Response:  *resp,
	})
	if err != nil {
		return fmt.Errorf("failed to encode page: %w", err)
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(pagesBucket).Put(pageKey(catalog, page), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store page %s:%d: %w", catalog, page, err)
	}
	return nil
}

// PurgeOlderThan deletes pages fetched more than age ago.
func (b *BoltDB) PurgeOlderThan(age time.Duration) (int, error) {
	cutoff := b.now().Add(-age)
	removed := 0

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(pagesBucket)
		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var cached CachedPage
			if err := json.Unmarshal(v, &cached); err != nil || cached.FetchedAt.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge pages: %w", err)
	}
	return removed, nil
}
