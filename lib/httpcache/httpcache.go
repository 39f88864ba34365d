package httpcache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"

	"github.com/dgraph-io/badger/v4"
)

var errNotFound = badger.ErrKeyNotFound

// Store is a content-addressed cache of raw upstream responses. It knows
// nothing about the protocol: keys are opaque hashes, values are raw bytes.
// Entries never expire on their own; a run either trusts the cache or skips
// it entirely. A nil *Store is a valid disabled cache.
type Store struct {
	db *badger.DB
}

func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// Key derives the cache key from the request identity: the endpoint plus its
// parameters in canonical order. Equivalent requests with reordered
// parameters collapse to the same key.
func Key(endpoint string, params url.Values) string {
	sum := sha256.Sum256([]byte(endpoint + "?" + params.Encode()))
	return hex.EncodeToString(sum[:])
}

func (s *Store) Get(key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, nil
	}

	tx := s.db.NewTransaction(false)
	defer tx.Discard()

	item, err := tx.Get([]byte(key))
	if err == errNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *Store) Put(key string, value []byte) error {
	if s == nil {
		return nil
	}

	tx := s.db.NewTransaction(true)
	err := tx.Set([]byte(key), value)
	if err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}
