package record

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "records"

// DB defines the interface for record persistence
type DB interface {
	// SaveEntry inserts or replaces an entry
	SaveEntry(ctx context.Context, entry *Entry) error

	// GetEntry retrieves an entry by ID, returning ErrNotFound when missing
	GetEntry(ctx context.Context, id string) (*Entry, error)

	// ListEntries returns all entries
	ListEntries(ctx context.Context) ([]*Entry, error)

	// DeleteEntry removes an entry, returning ErrNotFound when missing
	DeleteEntry(ctx context.Context, id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveEntry saves an entry without its inline receipt, which lives in blob storage
func (b *BoltDB) SaveEntry(_ context.Context, entry *Entry) error {
	stored := *entry
	stored.ReceiptInline = ""
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(entry.ID), data)
	})
}

// GetEntry retrieves an entry by ID
func (b *BoltDB) GetEntry(_ context.Context, id string) (*Entry, error) {
	var entry *Entry
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntries returns all entries in key order
func (b *BoltDB) ListEntries(_ context.Context) ([]*Entry, error) {
	entries := make([]*Entry, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshaling entry %s: %w", k, err)
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteEntry removes an entry from the database
func (b *BoltDB) DeleteEntry(_ context.Context, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
