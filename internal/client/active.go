package client

import (
	"sync"

	"parley/internal/models"
)

// ActiveRef is the single "currently open conversation" cell. Every
// inbound handler reads it at the moment the handler runs, never at
// registration time, so a handler started under an earlier active
// conversation cannot act on stale state.
type ActiveRef struct {
	mu   sync.RWMutex
	conv *models.Conversation
}

// Set makes conv the active conversation. Called synchronously on
// every switch, before any dependent work is issued.
func (a *ActiveRef) Set(conv models.Conversation) {
	a.mu.Lock()
	c := conv
	a.conv = &c
	a.mu.Unlock()
}

// Clear closes the active conversation.
func (a *ActiveRef) Clear() {
	a.mu.Lock()
	a.conv = nil
	a.mu.Unlock()
}

// Get returns a copy of the active conversation.
func (a *ActiveRef) Get() (models.Conversation, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.conv == nil {
		return models.Conversation{}, false
	}
	return *a.conv, true
}

// ID returns the active conversation id, or "" when none is open.
func (a *ActiveRef) ID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.conv == nil {
		return ""
	}
	return a.conv.ID
}

// Update applies fn to the active conversation if its id matches.
// Used to refresh the cell when roster metadata for the open
// conversation changes.
func (a *ActiveRef) Update(id string, fn func(*models.Conversation)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conv != nil && a.conv.ID == id {
		fn(a.conv)
	}
}
