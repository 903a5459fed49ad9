// Package session holds the identity state of one running client: who is
// signed in, which role they resolved to and whose document they work on.
// One Session is shared by the mirror, the coordinator and the role resolver
// so that several independent sessions can live in the same process.
package session

import (
	"sync"

	"github.com/localnerve/crmsync/internal/models"
)

// Session is safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	userID   string
	name     string
	ownerID  string
	role     models.Role
	resolved bool
}

// New creates an unresolved session for userID. Until a role is resolved the
// session behaves as the primary owner of its own document.
func New(userID, name string) *Session {
	return &Session{userID: userID, name: name, role: models.RoleOwner}
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// OwnerID is the identity whose cloud document this session reads and writes.
func (s *Session) OwnerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ownerID == "" {
		return s.userID
	}
	return s.ownerID
}

func (s *Session) Role() models.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// Resolved reports whether a role lookup completed.
func (s *Session) Resolved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolved
}

// IsDelegated reports whether this identity works through another owner's document.
func (s *Session) IsDelegated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role.Delegated() && s.ownerID != "" && s.ownerID != s.userID
}

func (s *Session) IsSecretary() bool {
	return s.IsDelegated() && s.Role() == models.RoleSecretary
}

func (s *Session) IsCaptador() bool {
	return s.IsDelegated() && s.Role() == models.RoleCaptador
}

// CanEdit reports whether existing records may be changed or deleted from this
// session. It is a workflow check only; the server enforces ownership.
func (s *Session) CanEdit() bool {
	return !s.IsDelegated()
}

// Resolve records the outcome of a role lookup. An empty ownerID, or one equal
// to the user, makes the session its own primary owner.
func (s *Session) Resolve(ownerID string, role models.Role, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ownerID == "" || ownerID == s.userID || !role.Delegated() {
		s.ownerID = ""
		s.role = models.RoleOwner
	} else {
		s.ownerID = ownerID
		s.role = role
	}
	if name != "" {
		s.name = name
	}
	s.resolved = true
}
