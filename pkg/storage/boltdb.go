package storage

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketRounds = []byte("rounds")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the journal at path
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open journal %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRounds); err != nil {
			return errors.Wrapf(err, "failed to create bucket %s", bucketRounds)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// OpenBoltStoreReadOnly opens an existing journal for reading. Unlike
// NewBoltStore it never creates the file.
func OpenBoltStoreReadOnly(path string) (*BoltStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "failed to open journal %s", path),
			"check the --journal path; the journal is created by \"drain --journal\"",
		)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open journal %s", path)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// AppendRound stores rec under the next sequence number and sets rec.Seq
func (s *BoltStore) AppendRound(rec *RoundRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRounds)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec.Seq = seq

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
}

// ListRounds returns the newest limit records in chronological order.
// limit <= 0 returns everything.
func (s *BoltStore) ListRounds(limit int) ([]*RoundRecord, error) {
	var records []*RoundRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRounds)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var rec RoundRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return errors.Wrapf(err, "corrupt journal entry %d", binary.BigEndian.Uint64(k))
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
