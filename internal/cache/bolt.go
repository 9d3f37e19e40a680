package cache

import (
	"encoding/binary"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var sessionBucket = []byte("sessions")

// BoltStore persists session entries in a bbolt file so linkage survives
// process restarts. Errors are logged at debug level and otherwise swallowed,
// matching the cache's best-effort contract.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenBoltStore opens (or creates) the bbolt file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, errBucket := tx.CreateBucketIfNotExists(sessionBucket)
		return errBucket
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db, now: time.Now}, nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Get returns the stored value when present and unexpired. Expired entries
// are deleted lazily on read.
func (s *BoltStore) Get(key string) ([]byte, bool) {
	var value []byte
	var expired bool

	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(sessionBucket).Get([]byte(key))
		if raw == nil || len(raw) < 8 {
			return nil
		}
		deadline := int64(binary.BigEndian.Uint64(raw[:8]))
		if deadline != 0 && s.now().Unix() > deadline {
			expired = true
			return nil
		}
		value = append([]byte(nil), raw[8:]...)
		return nil
	})
	if err != nil {
		log.Debugf("session cache read failed: %v", err)
		return nil, false
	}
	if expired {
		_ = s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(sessionBucket).Delete([]byte(key))
		})
		return nil, false
	}
	if value == nil {
		return nil, false
	}
	return value, true
}

// Put stores value under key with an absolute expiry encoded in the first
// eight bytes. A non-positive ttl means no expiry.
func (s *BoltStore) Put(key string, value []byte, ttl time.Duration) {
	var deadline int64
	if ttl > 0 {
		deadline = s.now().Add(ttl).Unix()
	}
	record := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(record[:8], uint64(deadline))
	copy(record[8:], value)

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Put([]byte(key), record)
	})
	if err != nil {
		log.Debugf("session cache write failed: %v", err)
	}
}
