// Package roles resolves which document an identity works against and stages
// the writes of delegated identities as pending approvals.
package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/localnerve/crmsync/internal/cloud"
	"github.com/localnerve/crmsync/internal/localstore"
	"github.com/localnerve/crmsync/internal/logging"
	"github.com/localnerve/crmsync/internal/models"
	"github.com/localnerve/crmsync/internal/session"
	"github.com/sirupsen/logrus"
)

// Pending approval kinds.
const (
	PendingProperty = "property"
	PendingClient   = "client"
	PendingSign     = "sign"
)

var (
	// ErrUnknownPendingType is returned for a kind other than property, client or sign.
	ErrUnknownPendingType = errors.New("unknown pending approval type")
	// ErrNotDelegated is returned when a primary owner tries to stage a write.
	ErrNotDelegated = errors.New("session is not a delegated identity")
)

// Options configure a Resolver.
type Options struct {
	// FailClosed returns role lookup failures instead of falling back to
	// primary owner behavior.
	FailClosed bool
	Logger     *logrus.Entry
	// Now stamps pending approvals; defaults to the current UTC time.
	Now func() string
}

// Resolver binds a session to its role record on the remote.
type Resolver struct {
	remote     cloud.Remote
	sess       *session.Session
	failClosed bool
	log        *logrus.Entry
	now        func() string
	validate   *validator.Validate
}

// New creates a Resolver for sess.
func New(remote cloud.Remote, sess *session.Session, opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = logging.Component("roles")
	}
	if opts.Now == nil {
		opts.Now = models.Now
	}
	return &Resolver{
		remote:     remote,
		sess:       sess,
		failClosed: opts.FailClosed,
		log:        opts.Logger,
		now:        opts.Now,
		validate:   validator.New(),
	}
}

// Resolve looks up the session's role record and redirects the session to
// the owner it names. A record that is missing, or that points at the caller,
// makes the session its own primary owner. Delegated records are checked once
// against the owner's roster and rewritten when the roster disagrees.
func (r *Resolver) Resolve(ctx context.Context) (models.Role, error) {
	uid := r.sess.UserID()
	log := r.log.WithField("uid", uid)

	rec, err := r.remote.GetRole(ctx, uid)
	if errors.Is(err, cloud.ErrNotFound) {
		r.sess.Resolve("", models.RoleOwner, "")
		log.Info("No role record, acting as primary owner")
		return models.RoleOwner, nil
	}
	if err != nil {
		return r.failed(log, err)
	}

	if rec.Role.Delegated() && rec.OwnerID != "" && rec.OwnerID != uid {
		healed, err := r.reconcile(ctx, rec)
		if err != nil {
			log.WithError(err).Warn("Roster check failed, keeping stored role")
		} else if healed != nil {
			rec = healed
		}
	}

	r.sess.Resolve(rec.OwnerID, rec.Role, rec.Name)
	log.WithFields(logrus.Fields{"role": r.sess.Role(), "owner": r.sess.OwnerID()}).Info("Role resolved")
	return r.sess.Role(), nil
}

func (r *Resolver) failed(log *logrus.Entry, err error) (models.Role, error) {
	log.WithError(err).Error("Role resolution failed")
	if r.failClosed {
		return "", fmt.Errorf("resolve role: %w", err)
	}
	r.sess.Resolve("", models.RoleOwner, "")
	return models.RoleOwner, nil
}

// reconcile compares rec with the owner's roster. It returns the re-read
// record when the stored role had to be rewritten, nil when nothing changed.
func (r *Resolver) reconcile(ctx context.Context, rec *models.UserRole) (*models.UserRole, error) {
	roster, err := r.remote.Roster(ctx, rec.OwnerID)
	if err != nil {
		return nil, err
	}

	for _, member := range roster {
		if member.MemberID != rec.UserID {
			continue
		}
		if member.Role == rec.Role {
			return nil, nil
		}

		r.log.WithFields(logrus.Fields{
			"uid":    rec.UserID,
			"stored": rec.Role,
			"roster": member.Role,
		}).Info("Role changed by owner, updating role record")

		updated := *rec
		updated.Role = member.Role
		if member.Name != "" {
			updated.Name = member.Name
		}
		if err := r.remote.SetRole(ctx, updated); err != nil {
			return nil, err
		}
		return r.remote.GetRole(ctx, rec.UserID)
	}

	r.log.WithFields(logrus.Fields{"uid": rec.UserID, "owner": rec.OwnerID}).Warn("Role record not on the owner's roster")
	return nil, nil
}

// SavePending stages record as a pending approval on the owner's document.
// The record gets a generated id; primary collections are not touched.
func (r *Resolver) SavePending(ctx context.Context, kind string, record any) (*models.PendingApproval, error) {
	if !r.sess.IsDelegated() {
		return nil, ErrNotDelegated
	}

	data, err := r.pendingData(kind, record)
	if err != nil {
		return nil, err
	}

	entry := models.PendingApproval{
		Type:        kind,
		Data:        data,
		AddedBy:     r.sess.UserID(),
		AddedByName: r.sess.Name(),
		AddedAt:     r.now(),
	}
	owner := r.sess.OwnerID()
	if err := r.remote.AppendPending(ctx, owner, entry); err != nil {
		r.log.WithError(err).WithField("owner", owner).Error("Pending approval failed")
		return nil, fmt.Errorf("save pending %s: %w", kind, err)
	}

	r.log.WithFields(logrus.Fields{"owner": owner, "type": kind}).Info("Staged pending approval")
	return &entry, nil
}

func (r *Resolver) pendingData(kind string, record any) (json.RawMessage, error) {
	var target models.Entity
	switch kind {
	case PendingProperty:
		target = &models.Property{}
	case PendingClient:
		target = &models.Client{}
	case PendingSign:
		target = &models.Sign{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPendingType, kind)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	if err := r.validate.Struct(target); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", kind, err)
	}

	target.SetEntityID(localstore.NewID())
	if target.CreatedStamp() == "" {
		target.SetCreatedStamp(r.now())
	}
	return json.Marshal(target)
}
