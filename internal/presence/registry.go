// Package presence tracks which identities currently hold a live connection.
// State lives only for the process lifetime; a reconnect re-registers.
package presence

import (
	"sort"
	"sync"

	"jyotish-chat/internal/domain/chat"
)

const StatusOnline = "online"
const StatusOffline = "offline"

// Entry binds an identity to the connection handle it was last seen on.
type Entry struct {
	IdentityID string
	Role       chat.Role
	Handle     string
}

// Status is one roster line as sent to clients.
type Status struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// Registry is safe for concurrent use; every operation is atomic with respect
// to the others.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register inserts or overwrites the entry for identityID. The last connection
// wins; the previous handle, if any, is returned.
func (r *Registry) Register(identityID string, role chat.Role, handle string) (previous string, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.entries[identityID]; ok {
		previous, replaced = old.Handle, true
	}
	r.entries[identityID] = Entry{IdentityID: identityID, Role: role, Handle: handle}
	return previous, replaced
}

func (r *Registry) Deregister(identityID string) {
	r.mu.Lock()
	delete(r.entries, identityID)
	r.mu.Unlock()
}

// Lookup returns the connection handle registered for identityID.
func (r *Registry) Lookup(identityID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[identityID]
	return e.Handle, ok
}

func (r *Registry) Get(identityID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[identityID]
	return e, ok
}

// Snapshot returns every registered identity as online, ordered by id.
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	out := make([]Status, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, Status{UserID: id, Status: StatusOnline})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
