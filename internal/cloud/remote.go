// Package cloud mirrors the local collections into one remote document per
// primary owner: whole-document push, one-shot pull and change subscription.
package cloud

import (
	"context"
	"errors"

	"github.com/localnerve/crmsync/internal/models"
)

// Snapshot is the remote document shape.
type Snapshot = models.Snapshot

var (
	// ErrNotFound is returned when the owner has no document or role record.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the remote refuses the caller.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when an optimistic version check fails.
	ErrConflict = errors.New("E_VERSION")
	// ErrPushBusy is returned by Mirror.Push when a push or a remote apply
	// is already running. The caller should retry later.
	ErrPushBusy = errors.New("push busy")
)

// Subscription is a live change listener.
type Subscription interface {
	Unsubscribe()
}

// Remote is the cloud document store.
type Remote interface {
	Fetch(ctx context.Context, owner string) (*Snapshot, error)
	Put(ctx context.Context, owner string, snap *Snapshot) error
	AppendPending(ctx context.Context, owner string, entry models.PendingApproval) error
	// Subscribe calls fn for every change to owner's document until the
	// subscription is cancelled.
	Subscribe(ctx context.Context, owner string, fn func(*Snapshot)) (Subscription, error)

	GetRole(ctx context.Context, userID string) (*models.UserRole, error)
	SetRole(ctx context.Context, role models.UserRole) error
	Roster(ctx context.Context, owner string) ([]models.TeamMember, error)
}

type subscriptionFunc func()

func (f subscriptionFunc) Unsubscribe() { f() }

// TeamManager edits an owner's roster. Only the owner may call it.
type TeamManager interface {
	SetTeamMember(ctx context.Context, member models.TeamMember) error
	RemoveTeamMember(ctx context.Context, owner, member string) error
}

var (
	_ Remote      = (*HTTPRemote)(nil)
	_ Remote      = (*ServiceRemote)(nil)
	_ TeamManager = (*HTTPRemote)(nil)
	_ TeamManager = (*ServiceRemote)(nil)
)
