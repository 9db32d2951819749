package storage

import (
	"fmt"
	"time"

	"parley/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketSession       = []byte("session")
	bucketConversations = []byte("conversations")
)

// BboltStorage is the local client cache: the persisted session and a
// roster snapshot. It is never authoritative; the server is.
type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSession); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketConversations); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// SaveSession stores the current session record.
func (s *BboltStorage) SaveSession(session DBSession) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSession)
		data, err := session.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(session.Key(), data)
	})
}

// GetSession returns the stored session, or models.ErrNotFound.
func (s *BboltStorage) GetSession() (DBSession, error) {
	var session DBSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSession)
		data := b.Get(session.Key())
		if data == nil {
			return models.ErrNotFound
		}
		return session.UnmarshalBinary(data)
	})
	return session, err
}

// ClearSession removes the session record and the cached roster.
// Used on logout: the full local state teardown.
func (s *BboltStorage) ClearSession() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var session DBSession
		if err := tx.Bucket(bucketSession).Delete(session.Key()); err != nil {
			return err
		}
		if err := tx.DeleteBucket(bucketConversations); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketConversations)
		return err
	})
}

// SaveConversations replaces the cached roster snapshot wholesale.
func (s *BboltStorage) SaveConversations(conversations []DBConversation) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketConversations); err != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketConversations)
		if err != nil {
			return err
		}
		for i := range conversations {
			data, err := conversations[i].MarshalBinary()
			if err != nil {
				return err
			}
			if err := b.Put(conversations[i].Key(), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListConversations returns every cached roster entry.
func (s *BboltStorage) ListConversations() ([]DBConversation, error) {
	var conversations []DBConversation
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketConversations)
		return b.ForEach(func(k, v []byte) error {
			var c DBConversation
			if err := c.UnmarshalBinary(v); err != nil {
				return err
			}
			conversations = append(conversations, c)
			return nil
		})
	})
	return conversations, err
}
