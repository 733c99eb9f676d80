package kvstore

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
)

// LevelStore is a LevelDB-backed Store.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens (or creates) a LevelDB database at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelStore{db: db}, nil
}

// Get returns the value stored under key.
func (l *LevelStore) Get(key []byte) ([]byte, error) {
	v, err := l.db.Get(key, nil)
	if errors.Is(err, ldberrors.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

// Put stores value under key.
func (l *LevelStore) Put(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

// Delete removes key.
func (l *LevelStore) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

// Has reports whether key is present.
func (l *LevelStore) Has(key []byte) (bool, error) {
	return l.db.Has(key, nil)
}

// Close closes the underlying database.
func (l *LevelStore) Close() error {
	return l.db.Close()
}
