package location

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"Flort/internal/model"

	"github.com/cockroachdb/pebble"
)

var keyPrefix = []byte("loc/")

// PebbleStore persists locations as loc/{conversationID} -> location
type PebbleStore struct {
	db *pebble.DB
}

func OpenPebbleStore(path string) (*PebbleStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open location store: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PebbleStore) Save(conversationID string, loc model.Location) error {
	return s.db.Set(locationKey(conversationID), []byte(loc), pebble.Sync)
}

// Load reads every stored location. Unknown values are skipped.
func (s *PebbleStore) Load() (map[string]model.Location, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: keyPrefix,
		UpperBound: prefixEnd(keyPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	out := map[string]model.Location{}
	for ok := it.First(); ok; ok = it.Next() {
		k := it.Key()
		if !bytes.HasPrefix(k, keyPrefix) {
			continue
		}
		loc, err := model.ParseLocation(string(it.Value()))
		if err != nil {
			continue
		}
		out[string(k[len(keyPrefix):])] = loc
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

func locationKey(id string) []byte {
	k := make([]byte, 0, len(keyPrefix)+len(id))
	k = append(k, keyPrefix...)
	return append(k, id...)
}

// prefixEnd returns the smallest key greater than every key starting with prefix
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
