// Package history keeps a persistent record of completed downloads, keyed by
// canonical track URL, so repeated requests for the same track can be answered
// without hitting any external service.
package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"

	"github.com/amalgan/trackman/dedupe"
	"github.com/amalgan/trackman/must"
)

var downloadsBucketName = []byte("downloads")

// Entry is one completed download.
type Entry struct {
	URL          string    `json:"url"`
	ISRC         string    `json:"isrc,omitempty"`
	Path         string    `json:"path"`
	Source       string    `json:"source"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

type Store struct {
	db *bbolt.DB
}

func NewStore(path string) (*Store, error) {
	opts := &bbolt.Options{ //nolint:exhaustruct
		NoFreelistSync: true,
		ReadOnly:       false,
		Timeout:        1 * time.Second,
		NoGrowSync:     false,
		FreelistType:   bbolt.FreelistArrayType,
	}
	db, err := bbolt.Open(path, 0o600, opts)
	if nil != err {
		return nil, fmt.Errorf("failed to open history database: %v", err)
	}

	if err := createBuckets(db); nil != err {
		return nil, fmt.Errorf("failed to create history buckets: %v", err)
	}

	return &Store{db: db}, nil
}

func createBuckets(db *bbolt.DB) error {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(downloadsBucketName)
		if nil != err {
			return fmt.Errorf("failed to create downloads bucket: %v", err)
		}

		return nil
	})
	if nil != err {
		return fmt.Errorf("failed to create buckets: %v", err)
	}

	return nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); nil != err {
		return fmt.Errorf("failed to close history database: %v", err)
	}

	return nil
}

// Record stores the entry, replacing any previous download of the same track.
func (s *Store) Record(_ context.Context, entry Entry) error {
	value, err := json.Marshal(entry)
	must.NilErr(err)

	key := []byte(dedupe.CanonicalTrackURL(entry.URL))
	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(downloadsBucketName).Put(key, value); nil != err {
			return fmt.Errorf("failed to store history entry: %v", err)
		}

		return nil
	})
	if nil != err {
		return fmt.Errorf("failed to store history entry: %v", err)
	}

	return nil
}

// Find returns the recorded download of the track, matching the URL in
// canonical form, and whether one exists.
func (s *Store) Find(_ context.Context, url string) (Entry, bool, error) {
	var (
		entry Entry
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(downloadsBucketName).Get([]byte(dedupe.CanonicalTrackURL(url)))
		if nil == value {
			return nil
		}

		if err := json.Unmarshal(value, &entry); nil != err {
			return fmt.Errorf("failed to decode history entry: %v", err)
		}
		found = true

		return nil
	})
	if nil != err {
		return Entry{}, false, fmt.Errorf("failed to load history entry: %v", err)
	}

	return entry, found, nil
}

// All returns every recorded download, most recent first.
func (s *Store) All(_ context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(downloadsBucketName).ForEach(func(_, value []byte) error {
			var entry Entry
			if err := json.Unmarshal(value, &entry); nil != err {
				return fmt.Errorf("failed to decode history entry: %v", err)
			}
			entries = append(entries, entry)

			return nil
		})
	})
	if nil != err {
		return nil, fmt.Errorf("failed to list history entries: %v", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].DownloadedAt.After(entries[j].DownloadedAt)
	})

	return entries, nil
}
