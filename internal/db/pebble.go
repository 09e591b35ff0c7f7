package db

import (
	"errors"
	"fmt"
	"os"

	pebble "github.com/cockroachdb/pebble"
)

// PebbleDB stores collections in a Pebble LSM directory
type PebbleDB struct {
	db   *pebble.DB
	Path string
}

// OpenPebble opens (or creates) a Pebble store in dir
func OpenPebble(dir string) (*PebbleDB, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating pebble directory: %w", err)
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble: %w", err)
	}
	return &PebbleDB{db: db, Path: dir}, nil
}

func (p *PebbleDB) Get(key string) ([]byte, bool, error) {
	v, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	defer closer.Close()
	// copy value, it is only valid until closer.Close
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (p *PebbleDB) Put(key string, value []byte) error {
	if err := p.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (p *PebbleDB) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
