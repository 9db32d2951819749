package session

import (
	"errors"
	"sync"
	"time"

	"parley/internal/models"
	"parley/internal/storage"
)

// Session holds the authenticated identity and credential token for the
// process lifetime. The token is opaque to the client.
type Session struct {
	Token     string
	User      models.User
	ExpiresAt time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Store supplies the session to every other component and clears it
// entirely on logout.
type Store struct {
	db *storage.BboltStorage

	mu      sync.RWMutex
	current Session
	loaded  bool
}

func NewStore(db *storage.BboltStorage) *Store {
	return &Store{db: db}
}

// Load reads a previously persisted session into memory. Returns
// models.ErrNotFound when no one is logged in.
func (s *Store) Load() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.db.GetSession()
	if err != nil {
		return Session{}, err
	}

	s.current = Session{
		Token: rec.Token,
		User: models.User{
			ID:        rec.UserID,
			FirstName: rec.FirstName,
			LastName:  rec.LastName,
			Email:     rec.Email,
			AvatarURL: rec.AvatarURL,
		},
		ExpiresAt: time.Unix(rec.ExpiresAt, 0),
	}
	if rec.ExpiresAt == 0 {
		s.current.ExpiresAt = time.Time{}
	}
	s.loaded = true
	return s.current, nil
}

// Save replaces the current session and persists it.
func (s *Store) Save(session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt int64
	if !session.ExpiresAt.IsZero() {
		expiresAt = session.ExpiresAt.Unix()
	}
	err := s.db.SaveSession(storage.DBSession{
		Token:     session.Token,
		UserID:    session.User.ID,
		FirstName: session.User.FirstName,
		LastName:  session.User.LastName,
		Email:     session.User.Email,
		AvatarURL: session.User.AvatarURL,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}

	s.current = session
	s.loaded = true
	return nil
}

// Current returns the in-memory session.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.loaded
}

// Token returns the credential for the connection handshake and fetch
// authorization headers.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// Clear wipes the session and all persisted client state. This is the
// logout teardown.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = Session{}
	s.loaded = false

	err := s.db.ClearSession()
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	return nil
}
