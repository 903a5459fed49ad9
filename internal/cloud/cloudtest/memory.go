// Package cloudtest provides an in-memory cloud.Remote that records calls.
package cloudtest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/localnerve/crmsync/internal/cloud"
	"github.com/localnerve/crmsync/internal/models"
)

var _ cloud.Remote = (*MemoryRemote)(nil)

// MemoryRemote keeps documents, role records and rosters in memory.
// Subscribers are called synchronously from Put, AppendPending and Emit.
type MemoryRemote struct {
	mu      sync.Mutex
	docs    map[string]*cloud.Snapshot
	roles   map[string]models.UserRole
	rosters map[string][]models.TeamMember
	subs    map[string]map[int]func(*cloud.Snapshot)
	nextSub int

	puts     int
	fetches  int
	setRoles int

	// Fail, when set, is returned by every call.
	Fail error
	// FailRole, when set, is returned by GetRole only.
	FailRole error
}

// NewMemoryRemote creates an empty MemoryRemote.
func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{
		docs:    make(map[string]*cloud.Snapshot),
		roles:   make(map[string]models.UserRole),
		rosters: make(map[string][]models.TeamMember),
		subs:    make(map[string]map[int]func(*cloud.Snapshot)),
	}
}

func clone(snap *cloud.Snapshot) *cloud.Snapshot {
	raw, _ := json.Marshal(snap)
	var out cloud.Snapshot
	_ = json.Unmarshal(raw, &out)
	return &out
}

// Seed stores snap as owner's document without notifying subscribers.
func (r *MemoryRemote) Seed(owner string, snap *cloud.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[owner] = clone(snap)
}

// Document returns a copy of owner's document, or nil.
func (r *MemoryRemote) Document(owner string) *cloud.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[owner]; ok {
		return clone(doc)
	}
	return nil
}

// Emit delivers snap to owner's subscribers as a change notification.
func (r *MemoryRemote) Emit(owner string, snap *cloud.Snapshot) {
	r.mu.Lock()
	fns := make([]func(*cloud.Snapshot), 0, len(r.subs[owner]))
	for _, fn := range r.subs[owner] {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn(clone(snap))
	}
}

// PutCount is the number of successful Put calls.
func (r *MemoryRemote) PutCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.puts
}

// FetchCount is the number of Fetch calls.
func (r *MemoryRemote) FetchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}

// SetRoleCount is the number of successful SetRole calls.
func (r *MemoryRemote) SetRoleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setRoles
}

// SubscriberCount is the number of live subscriptions for owner.
func (r *MemoryRemote) SubscriberCount(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[owner])
}

// SeedRole stores a role record.
func (r *MemoryRemote) SeedRole(role models.UserRole) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[role.UserID] = role
}

// SeedRoster replaces owner's roster.
func (r *MemoryRemote) SeedRoster(owner string, members ...models.TeamMember) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rosters[owner] = members
}

func (r *MemoryRemote) Fetch(ctx context.Context, owner string) (*cloud.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	if r.Fail != nil {
		return nil, r.Fail
	}
	doc, ok := r.docs[owner]
	if !ok {
		return nil, cloud.ErrNotFound
	}
	return clone(doc), nil
}

func (r *MemoryRemote) Put(ctx context.Context, owner string, snap *cloud.Snapshot) error {
	r.mu.Lock()
	if r.Fail != nil {
		r.mu.Unlock()
		return r.Fail
	}
	stored := clone(snap)
	stored.PendingApprovals = nil
	if prev, ok := r.docs[owner]; ok {
		stored.PendingApprovals = prev.PendingApprovals
		stored.Version = prev.Version + 1
	} else {
		stored.Version = 1
	}
	r.docs[owner] = stored
	r.puts++
	r.mu.Unlock()

	r.Emit(owner, stored)
	return nil
}

func (r *MemoryRemote) AppendPending(ctx context.Context, owner string, entry models.PendingApproval) error {
	r.mu.Lock()
	if r.Fail != nil {
		r.mu.Unlock()
		return r.Fail
	}
	doc, ok := r.docs[owner]
	if !ok {
		r.mu.Unlock()
		return cloud.ErrNotFound
	}
	doc.PendingApprovals = append(doc.PendingApprovals, entry)
	doc.Version++
	stored := clone(doc)
	r.mu.Unlock()

	r.Emit(owner, stored)
	return nil
}

func (r *MemoryRemote) Subscribe(ctx context.Context, owner string, fn func(*cloud.Snapshot)) (cloud.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return nil, r.Fail
	}
	r.nextSub++
	id := r.nextSub
	if r.subs[owner] == nil {
		r.subs[owner] = make(map[int]func(*cloud.Snapshot))
	}
	r.subs[owner][id] = fn
	return unsubscribe(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs[owner], id)
	}), nil
}

func (r *MemoryRemote) GetRole(ctx context.Context, userID string) (*models.UserRole, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailRole != nil {
		return nil, r.FailRole
	}
	if r.Fail != nil {
		return nil, r.Fail
	}
	role, ok := r.roles[userID]
	if !ok {
		return nil, cloud.ErrNotFound
	}
	return &role, nil
}

func (r *MemoryRemote) SetRole(ctx context.Context, role models.UserRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	r.roles[role.UserID] = role
	r.setRoles++
	return nil
}

func (r *MemoryRemote) Roster(ctx context.Context, owner string) ([]models.TeamMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return nil, r.Fail
	}
	return append([]models.TeamMember(nil), r.rosters[owner]...), nil
}

type unsubscribe func()

func (f unsubscribe) Unsubscribe() { f() }
