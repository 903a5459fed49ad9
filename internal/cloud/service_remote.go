package cloud

import (
	"context"
	"errors"
	"sync"

	"github.com/localnerve/crmsync/internal/models"
	"github.com/localnerve/crmsync/internal/notify"
	"github.com/localnerve/crmsync/internal/services"
	"gorm.io/gorm"
)

// ServiceRemote is an in-process Remote over the server services, acting as
// one authenticated identity. It applies the same ownership checks as the
// HTTP routes.
type ServiceRemote struct {
	DB     *gorm.DB
	Hub    *notify.Hub
	UserID string
}

// NewServiceRemote creates a ServiceRemote acting as userID.
func NewServiceRemote(db *gorm.DB, hub *notify.Hub, userID string) *ServiceRemote {
	return &ServiceRemote{DB: db, Hub: hub, UserID: userID}
}

// As returns a copy acting as another identity on the same storage.
func (r *ServiceRemote) As(userID string) *ServiceRemote {
	return &ServiceRemote{DB: r.DB, Hub: r.Hub, UserID: userID}
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, services.ErrForbidden):
		return ErrForbidden
	case errors.Is(err, services.ErrVersion):
		return ErrConflict
	}
	return err
}

func (r *ServiceRemote) checkRead(owner string) error {
	ok, err := services.CanRead(r.DB, r.UserID, owner)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (r *ServiceRemote) Fetch(ctx context.Context, owner string) (*Snapshot, error) {
	if err := r.checkRead(owner); err != nil {
		return nil, err
	}
	snap, err := services.GetDocument(r.DB.WithContext(ctx), owner)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return snap, nil
}

func (r *ServiceRemote) Put(ctx context.Context, owner string, snap *Snapshot) error {
	if r.UserID != owner {
		return ErrForbidden
	}
	stored, err := services.PutDocument(r.DB.WithContext(ctx), owner, nil, snap)
	if err != nil {
		return mapServiceError(err)
	}
	if r.Hub != nil {
		r.Hub.Publish(owner, stored)
	}
	return nil
}

func (r *ServiceRemote) AppendPending(ctx context.Context, owner string, entry models.PendingApproval) error {
	if err := r.checkRead(owner); err != nil {
		return err
	}
	entry.AddedBy = r.UserID
	stored, err := services.AppendPending(r.DB.WithContext(ctx), owner, entry)
	if err != nil {
		return mapServiceError(err)
	}
	if r.Hub != nil {
		r.Hub.Publish(owner, stored)
	}
	return nil
}

func (r *ServiceRemote) Subscribe(ctx context.Context, owner string, fn func(*Snapshot)) (Subscription, error) {
	if err := r.checkRead(owner); err != nil {
		return nil, err
	}
	if r.Hub == nil {
		return subscriptionFunc(func() {}), nil
	}
	cancel := r.Hub.SubscribeLocal(owner, fn)
	var once sync.Once
	return subscriptionFunc(func() { once.Do(cancel) }), nil
}

func (r *ServiceRemote) GetRole(ctx context.Context, userID string) (*models.UserRole, error) {
	if userID != r.UserID {
		return nil, ErrForbidden
	}
	role, err := services.GetRole(r.DB.WithContext(ctx), userID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return role, nil
}

func (r *ServiceRemote) SetRole(ctx context.Context, role models.UserRole) error {
	if role.UserID != r.UserID {
		return ErrForbidden
	}
	return mapServiceError(services.SetRole(r.DB.WithContext(ctx), role))
}

func (r *ServiceRemote) Roster(ctx context.Context, owner string) ([]models.TeamMember, error) {
	if err := r.checkRead(owner); err != nil {
		return nil, err
	}
	members, err := services.Roster(r.DB.WithContext(ctx), owner)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return members, nil
}

func (r *ServiceRemote) SetTeamMember(ctx context.Context, member models.TeamMember) error {
	if member.OwnerID != r.UserID {
		return ErrForbidden
	}
	return mapServiceError(services.SetTeamMember(r.DB.WithContext(ctx), member))
}

func (r *ServiceRemote) RemoveTeamMember(ctx context.Context, owner, member string) error {
	if owner != r.UserID {
		return ErrForbidden
	}
	return mapServiceError(services.RemoveTeamMember(r.DB.WithContext(ctx), owner, member))
}
