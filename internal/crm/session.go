// session.go
//
// Offline-first sync and persistence for a real-estate CRM
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of crmsync.
// crmsync is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// crmsync is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with crmsync.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package crm is the surface the CRM front end talks to: typed collection
// getters and setters, role checks, staged writes and cloud sync, all bound
// to one signed-in identity.
package crm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/localnerve/crmsync/internal/cloud"
	"github.com/localnerve/crmsync/internal/config"
	"github.com/localnerve/crmsync/internal/localstore"
	"github.com/localnerve/crmsync/internal/logging"
	"github.com/localnerve/crmsync/internal/models"
	"github.com/localnerve/crmsync/internal/roles"
	"github.com/localnerve/crmsync/internal/session"
	"github.com/localnerve/crmsync/internal/syncer"
	"github.com/localnerve/crmsync/internal/transfer"
	"github.com/sirupsen/logrus"
)

// ErrDelegatedReadOnly is returned for direct writes from a secretary or
// captador session. It is a client-side check; the server refuses those
// writes independently.
var ErrDelegatedReadOnly = errors.New("delegated identities stage writes with SavePending")

// Options assemble a Session.
type Options struct {
	UserID     string
	UserName   string
	Store      *localstore.Store
	Remote     cloud.Remote
	Debounce   time.Duration
	Policy     syncer.Policy
	FailClosed bool
	Logger     *logrus.Entry
	// Closer is called by Close after the coordinator stops, typically the
	// local store's backing file.
	Closer io.Closer
}

// Session is one identity's view of the CRM data.
type Session struct {
	store    *localstore.Store
	remote   cloud.Remote
	ident    *session.Session
	mirror   *cloud.Mirror
	coord    *syncer.Coordinator
	resolver *roles.Resolver
	closer   io.Closer
	log      *logrus.Entry
}

// New wires a Session. The store's change hook is taken over by the session's
// sync coordinator.
func New(opts Options) (*Session, error) {
	if opts.UserID == "" {
		return nil, errors.New("user id is required")
	}
	if opts.Store == nil || opts.Remote == nil {
		return nil, errors.New("store and remote are required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Component("crm")
	}
	log := opts.Logger.WithField("uid", opts.UserID)

	ident := session.New(opts.UserID, opts.UserName)
	mirror := cloud.NewMirror(opts.Store, opts.Remote, ident, log.WithField("component", "mirror"))
	coord := syncer.New(opts.Store, mirror, ident, syncer.Options{
		Debounce: opts.Debounce,
		Policy:   opts.Policy,
		Logger:   log.WithField("component", "syncer"),
	})
	resolver := roles.New(opts.Remote, ident, roles.Options{
		FailClosed: opts.FailClosed,
		Logger:     log.WithField("component", "roles"),
		Now:        opts.Store.Now,
	})

	return &Session{
		store:    opts.Store,
		remote:   opts.Remote,
		ident:    ident,
		mirror:   mirror,
		coord:    coord,
		resolver: resolver,
		closer:   opts.Closer,
		log:      log,
	}, nil
}

// Open builds a Session from client configuration, with the local store in
// the configured SQLite file.
func Open(cfg *config.ClientConfig, remote cloud.Remote, notifier localstore.Notifier) (*Session, error) {
	kv, err := localstore.OpenFile(cfg.StorePath, cfg.StoreQuota)
	if err != nil {
		return nil, err
	}
	store := localstore.New(kv, localstore.WithNotifier(notifier))
	s, err := New(Options{
		UserID:     cfg.UserID,
		UserName:   cfg.UserName,
		Store:      store,
		Remote:     remote,
		Debounce:   cfg.Debounce,
		Policy:     syncer.Policy(cfg.Policy),
		FailClosed: cfg.RoleFailClosed,
		Closer:     kv,
	})
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	return s, nil
}

// Store exposes the local store.
func (s *Session) Store() *localstore.Store { return s.store }

// Identity exposes the resolved identity.
func (s *Session) Identity() *session.Session { return s.ident }

// StoreUsage is the byte size of the local store, when its backend reports one.
func (s *Session) StoreUsage() (int64, bool) {
	u, ok := s.closer.(interface{ Usage() (int64, error) })
	if !ok {
		return 0, false
	}
	n, err := u.Usage()
	if err != nil {
		s.log.WithError(err).Warn("Local store usage unavailable")
		return 0, false
	}
	return n, true
}

// Status reports the sync state.
func (s *Session) Status() syncer.Status { return s.coord.Status() }

func (s *Session) Properties() []models.Property { return s.store.Properties() }
func (s *Session) Clients() []models.Client { return s.store.Clients() }
func (s *Session) Followups() []models.Followup { return s.store.Followups() }
func (s *Session) Signs() []models.Sign { return s.store.Signs() }
func (s *Session) Expenses() []models.Expense { return s.store.Expenses() }
func (s *Session) Colleagues() []models.Colleague { return s.store.Colleagues() }
func (s *Session) Sales() []models.Sale { return s.store.Sales() }
func (s *Session) Activity() []models.Activity { return s.store.Activity() }
func (s *Session) Settings() models.Settings { return s.store.Settings() }

func (s *Session) writable() error {
	if !s.ident.CanEdit() {
		return ErrDelegatedReadOnly
	}
	return nil
}

func (s *Session) SaveProperty(p *models.Property) (*models.Property, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	return s.store.SaveProperty(p)
}

func (s *Session) SaveClient(c *models.Client) (*models.Client, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	return s.store.SaveClient(c)
}

func (s *Session) SaveFollowup(f *models.Followup) (*models.Followup, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	return s.store.SaveFollowup(f)
}

func (s *Session) SaveSign(sg *models.Sign) (*models.Sign, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	return s.store.SaveSign(sg)
}

func (s *Session) SaveExpense(e *models.Expense) (*models.Expense, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	return s.store.SaveExpense(e)
}

func (s *Session) SaveColleague(c *models.Colleague) (*models.Colleague, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	return s.store.SaveColleague(c)
}

func (s *Session) SaveSettings(patch models.Settings) (models.Settings, error) {
	if err := s.writable(); err != nil {
		return models.Settings{}, err
	}
	return s.store.SaveSettings(patch)
}

// CloseSale marks a property sold or rented and books the sale.
func (s *Session) CloseSale(propertyID string, sale models.PropertySale) (*models.Property, *models.Sale, error) {
	if err := s.writable(); err != nil {
		return nil, nil, err
	}
	return s.store.CloseSale(propertyID, sale)
}

func (s *Session) DeleteProperty(id string) error {
	if err := s.writable(); err != nil {
		return err
	}
	return s.store.DeleteProperty(id)
}

func (s *Session) DeleteClient(id string) error {
	if err := s.writable(); err != nil {
		return err
	}
	return s.store.DeleteClient(id)
}

func (s *Session) DeleteFollowup(id string) error {
	if err := s.writable(); err != nil {
		return err
	}
	return s.store.DeleteFollowup(id)
}

func (s *Session) DeleteSign(id string) error {
	if err := s.writable(); err != nil {
		return err
	}
	return s.store.DeleteSign(id)
}

func (s *Session) DeleteExpense(id string) error {
	if err := s.writable(); err != nil {
		return err
	}
	return s.store.DeleteExpense(id)
}

func (s *Session) IsSecretary() bool { return s.ident.IsSecretary() }
func (s *Session) IsCaptador() bool { return s.ident.IsCaptador() }

// SavePending stages record on the owner's document.
func (s *Session) SavePending(ctx context.Context, kind string, record any) (*models.PendingApproval, error) {
	return s.resolver.SavePending(ctx, kind, record)
}

// InitUserRole resolves the identity's role and target document.
func (s *Session) InitUserRole(ctx context.Context) (models.Role, error) {
	return s.resolver.Resolve(ctx)
}

// SyncFromCloud runs the startup sync against the target document.
func (s *Session) SyncFromCloud(ctx context.Context) (syncer.State, error) {
	return s.coord.Startup(ctx)
}

// ManualSync applies the remote document regardless of timestamps.
func (s *Session) ManualSync(ctx context.Context) error {
	return s.coord.ForcePull(ctx)
}

// Push sends local state now instead of waiting for the debounce.
func (s *Session) Push(ctx context.Context) error {
	return s.coord.Flush(ctx)
}

// InitCloud resolves the role, runs the startup sync and subscribes to
// remote changes. With fail-closed role resolution a lookup failure stops
// here and nothing is synced.
func (s *Session) InitCloud(ctx context.Context) error {
	if _, err := s.InitUserRole(ctx); err != nil {
		return err
	}
	if _, err := s.SyncFromCloud(ctx); err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	if err := s.coord.Start(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.log.WithFields(logrus.Fields{"owner": s.ident.OwnerID(), "role": s.ident.Role()}).Info("Cloud sync started")
	return nil
}

// Export writes the backup file of the local store.
func (s *Session) Export(w io.Writer) error {
	return transfer.Write(w, s.store)
}

// Import replaces the collections found in r and schedules a push.
func (s *Session) Import(r io.Reader) (int, error) {
	if err := s.writable(); err != nil {
		return 0, err
	}
	return transfer.Import(r, s.store)
}

// Close pushes any armed change, then stops syncing and releases the store.
func (s *Session) Close(ctx context.Context) error {
	var errs []error
	if s.coord.Pending() {
		if err := s.coord.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.coord.Close()
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
