// Package prefs persists user preferences that outlive a run, such as the
// order in which accounts were last used.
package prefs

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	FileName = "prefs.bbolt"

	// KeyRecentlyUsedSessions holds the database directory base names of the
	// accounts, least recently used first.
	KeyRecentlyUsedSessions = "recently-used-sessions"

	dbFileMode    = 0o600
	dbOpenTimeout = time.Second
)

// Store keeps preferences in a bbolt database, one bucket per application id.
type Store struct {
	db     *bbolt.DB
	bucket []byte
}

// Open opens or creates the preferences database at path.
func Open(path, appID string) (*Store, error) {
	db, err := bbolt.Open(path, dbFileMode, &bbolt.Options{Timeout: dbOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open prefs: %w", err)
	}
	return &Store{db: db, bucket: []byte(appID)}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Strings returns the string array stored under key, or nil if it is unset.
func (s *Store) Strings(key string) ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return out, nil
}

// SetStrings overwrites the string array stored under key.
func (s *Store) SetStrings(key string, values []string) error {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), raw)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
