// mirror.go
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

package cloud

import (
	"context"
	"fmt"
	"sync"

	"github.com/localnerve/crmsync/internal/localstore"
	"github.com/localnerve/crmsync/internal/logging"
	"github.com/localnerve/crmsync/internal/models"
	"github.com/localnerve/crmsync/internal/session"
	"github.com/sirupsen/logrus"
)

// Mirror moves whole snapshots between the local store and the owner's
// remote document.
type Mirror struct {
	store  *localstore.Store
	remote Remote
	sess   *session.Session
	log    *logrus.Entry

	mu           sync.Mutex
	pushing      bool
	applying     bool
	inflight     string
	lastProduced string
}

// NewMirror creates a Mirror for the session's document. A nil log uses the
// component logger.
func NewMirror(store *localstore.Store, remote Remote, sess *session.Session, log *logrus.Entry) *Mirror {
	if log == nil {
		log = logging.Component("mirror")
	}
	return &Mirror{store: store, remote: remote, sess: sess, log: log}
}

// Remote returns the remote this mirror talks to.
func (m *Mirror) Remote() Remote {
	return m.remote
}

// Applying reports whether a remote snapshot is being written locally.
func (m *Mirror) Applying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applying
}

// LastProduced is the lastSync stamp of this mirror's most recent successful push.
func (m *Mirror) LastProduced() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastProduced
}

func (m *Mirror) produced(stamp string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return stamp == m.lastProduced || stamp == m.inflight
}

// Snapshot builds the document for the current local collections.
func (m *Mirror) Snapshot(lastSync string) *Snapshot {
	snap := &Snapshot{LastSync: lastSync}
	for _, key := range models.SyncedCollections {
		snap.SetCollection(key, m.store.RawCollection(key))
	}
	return snap
}

// Push writes the local collections to the owner's document. It returns
// false for a delegated session, and ErrPushBusy while another push is in
// flight or a remote snapshot is being applied. On success the stamp it
// wrote is persisted locally as lastSync.
func (m *Mirror) Push(ctx context.Context) (bool, error) {
	if m.sess.IsDelegated() {
		m.log.Debug("Push skipped for delegated session")
		return false, nil
	}

	m.mu.Lock()
	if m.pushing || m.applying {
		m.mu.Unlock()
		m.log.Debug("Push deferred, push or apply in progress")
		return false, ErrPushBusy
	}
	m.pushing = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.pushing = false
		m.mu.Unlock()
	}()

	owner := m.sess.OwnerID()
	stamp := m.store.Now()
	snap := m.Snapshot(stamp)

	// The echo can arrive before Put returns.
	m.mu.Lock()
	m.inflight = stamp
	m.mu.Unlock()

	if err := m.remote.Put(ctx, owner, snap); err != nil {
		m.log.WithError(err).WithField("owner", owner).Error("Push failed")
		return false, fmt.Errorf("push %s: %w", owner, err)
	}

	m.mu.Lock()
	m.lastProduced = stamp
	m.mu.Unlock()
	m.store.SetLastSync(stamp)
	m.log.WithFields(logrus.Fields{"owner": owner, "lastSync": stamp}).Info("Pushed snapshot")
	return true, nil
}

// Pull fetches the owner's document once.
func (m *Mirror) Pull(ctx context.Context) (*Snapshot, error) {
	owner := m.sess.OwnerID()
	snap, err := m.remote.Fetch(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", owner, err)
	}
	return snap, nil
}

// Subscribe listens for changes to the owner's document. Notifications whose
// lastSync equals the local lastSync or this mirror's last push are echoes
// and are dropped; everything else is handed to fn.
func (m *Mirror) Subscribe(ctx context.Context, fn func(*Snapshot)) (Subscription, error) {
	owner := m.sess.OwnerID()
	sub, err := m.remote.Subscribe(ctx, owner, func(snap *Snapshot) {
		if snap == nil {
			return
		}
		if snap.LastSync == m.store.LastSync() || m.produced(snap.LastSync) {
			m.log.WithField("lastSync", snap.LastSync).Debug("Dropped own change notification")
			return
		}
		fn(snap)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", owner, err)
	}
	return sub, nil
}

// Apply writes every collection present in snap over the local one, then
// records snap's lastSync locally. Missing keys are left untouched.
func (m *Mirror) Apply(snap *Snapshot) {
	m.mu.Lock()
	m.applying = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.applying = false
		m.mu.Unlock()
	}()

	cols := snap.Collections()
	m.store.ReplaceCollections(cols)
	if snap.LastSync != "" {
		m.store.SetLastSync(snap.LastSync)
	}
	m.log.WithFields(logrus.Fields{"collections": len(cols), "lastSync": snap.LastSync}).Info("Applied remote snapshot")
}
