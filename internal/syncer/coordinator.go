// coordinator.go
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

// Package syncer decides when remote snapshots overwrite local state and
// schedules the debounced pushes that follow local mutations.
//
// A Coordinator moves through the states
//
//	idle -> pulling -> (applied | unchanged) -> idle
//	idle -> pending_push -> pushing -> idle
//
// and lands in error when a pull or push fails. There is no retry: the next
// local mutation or a manual sync is the retry.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/localnerve/crmsync/internal/cloud"
	"github.com/localnerve/crmsync/internal/localstore"
	"github.com/localnerve/crmsync/internal/logging"
	"github.com/localnerve/crmsync/internal/session"
	"github.com/sirupsen/logrus"
)

// State is the coordinator's observable sync state.
type State string

const (
	StateIdle        State = "idle"
	StatePulling     State = "pulling"
	StateApplied     State = "applied"
	StateUnchanged   State = "unchanged"
	StatePendingPush State = "pending_push"
	StatePushing     State = "pushing"
	StateError       State = "error"
)

// Policy selects how a foreign snapshot is reconciled with local state.
type Policy string

const (
	// PolicyLegacy overwrites every collection present in the snapshot,
	// keyed on the single document lastSync.
	PolicyLegacy Policy = "legacy"
	// PolicyRecord merges record by record on updatedAt, keeping local-only
	// records and pushing the merge back when it differs from the snapshot.
	PolicyRecord Policy = "record"
)

// DefaultDebounce is the push coalescing window.
const DefaultDebounce = 2 * time.Second

// ErrClosed is returned by operations on a closed coordinator.
var ErrClosed = errors.New("coordinator closed")

// Options configure a Coordinator.
type Options struct {
	Debounce time.Duration
	Policy   Policy
	Logger   *logrus.Entry
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State       State
	LastOutcome State
	LastSync    string
	LastError   error
	Subscribed  bool
}

// Coordinator is bound to one session, store and mirror.
type Coordinator struct {
	store  *localstore.Store
	mirror *cloud.Mirror
	sess   *session.Session
	policy Policy
	wait   time.Duration
	log    *logrus.Entry

	mu          sync.Mutex
	state       State
	lastOutcome State
	lastErr     error
	timer       *time.Timer
	sub         cloud.Subscription
	closed      bool
	fires       sync.WaitGroup
}

// New creates a Coordinator and installs its debounced push as the store's
// change hook.
func New(store *localstore.Store, mirror *cloud.Mirror, sess *session.Session, opts Options) *Coordinator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Policy == "" {
		opts.Policy = PolicyLegacy
	}
	if opts.Logger == nil {
		opts.Logger = logging.Component("syncer")
	}
	c := &Coordinator{
		store:  store,
		mirror: mirror,
		sess:   sess,
		policy: opts.Policy,
		wait:   opts.Debounce,
		log:    opts.Logger,
		state:  StateIdle,
	}
	store.OnChange(c.ScheduleSave)
	return c
}

func (c *Coordinator) setStateLocked(next State) {
	if c.state == next {
		return
	}
	c.log.WithFields(logrus.Fields{"from": c.state, "to": next, "owner": c.sess.OwnerID()}).Debug("Sync state")
	c.state = next
}

func (c *Coordinator) setState(next State) {
	c.mu.Lock()
	c.setStateLocked(next)
	c.mu.Unlock()
}

func (c *Coordinator) fail(err error) error {
	c.mu.Lock()
	c.lastErr = err
	c.setStateLocked(StateError)
	c.mu.Unlock()
	c.log.WithError(err).Error("Sync failed")
	return err
}

// Status reports the current state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:       c.state,
		LastOutcome: c.lastOutcome,
		LastSync:    c.store.LastSync(),
		LastError:   c.lastErr,
		Subscribed:  c.sub != nil,
	}
}

// LastError is the error of the most recent failed pull or push.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Pending reports whether a debounced push is armed.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

func (c *Coordinator) finish(outcome State) {
	c.mu.Lock()
	c.lastOutcome = outcome
	c.lastErr = nil
	c.setStateLocked(outcome)
	if c.timer != nil {
		c.setStateLocked(StatePendingPush)
	} else {
		c.setStateLocked(StateIdle)
	}
	c.mu.Unlock()
}

// Startup pulls the owner's document once and applies it when local
// properties are empty while the remote has some, or when the remote lastSync
// differs from the local one. A missing document is created from local state
// by a primary owner.
func (c *Coordinator) Startup(ctx context.Context) (State, error) {
	c.setState(StatePulling)

	snap, err := c.mirror.Pull(ctx)
	if errors.Is(err, cloud.ErrNotFound) {
		c.log.WithField("owner", c.sess.OwnerID()).Info("No remote document")
		if c.sess.IsDelegated() {
			c.finish(StateUnchanged)
			return StateUnchanged, nil
		}
		if err := c.Flush(ctx); err != nil {
			return StateError, err
		}
		c.finish(StateUnchanged)
		return StateUnchanged, nil
	}
	if err != nil {
		return StateError, c.fail(err)
	}

	localEmpty := len(c.store.Properties()) == 0
	if (localEmpty && snap.HasProperties()) || snap.LastSync != c.store.LastSync() {
		c.apply(snap)
		c.finish(StateApplied)
		return StateApplied, nil
	}

	c.log.WithField("lastSync", snap.LastSync).Info("Local state is current")
	c.finish(StateUnchanged)
	return StateUnchanged, nil
}

// OnRemote handles a change notification. Snapshots whose lastSync equals the
// local one are left alone.
func (c *Coordinator) OnRemote(snap *cloud.Snapshot) State {
	if snap == nil || snap.LastSync == c.store.LastSync() {
		c.finish(StateUnchanged)
		return StateUnchanged
	}
	c.apply(snap)
	c.finish(StateApplied)
	return StateApplied
}

// ForcePull applies whatever the remote holds, ignoring timestamps.
func (c *Coordinator) ForcePull(ctx context.Context) error {
	c.setState(StatePulling)
	snap, err := c.mirror.Pull(ctx)
	if err != nil {
		return c.fail(err)
	}
	c.mirror.Apply(snap)
	c.finish(StateApplied)
	return nil
}

func (c *Coordinator) apply(snap *cloud.Snapshot) {
	if c.policy != PolicyRecord {
		c.mirror.Apply(snap)
		return
	}

	merged, diverged := mergeSnapshot(c.mirror.Snapshot(c.store.LastSync()), snap)
	c.mirror.Apply(merged)
	if diverged {
		c.log.WithField("lastSync", snap.LastSync).Info("Merged snapshot keeps local changes, scheduling push")
		c.ScheduleSave()
	}
}

// ScheduleSave arms, or re-arms, the debounced push. It does nothing for
// delegated sessions. Applying a remote snapshot does not call it, since
// ReplaceCollections skips the change hook.
func (c *Coordinator) ScheduleSave() {
	if c.sess.IsDelegated() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.wait, c.fire)
	c.setStateLocked(StatePendingPush)
}

func (c *Coordinator) fire() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.fires.Add(1)
	c.mu.Unlock()
	defer c.fires.Done()

	_ = c.Flush(context.Background())
}

// Flush pushes immediately, cancelling any armed debounce timer. When the
// mirror is busy the push is re-armed instead.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.setStateLocked(StatePushing)
	c.mu.Unlock()

	if _, err := c.mirror.Push(ctx); err != nil {
		if errors.Is(err, cloud.ErrPushBusy) {
			// The running push or apply may not carry this change.
			c.log.Debug("Push busy, re-arming")
			c.ScheduleSave()
			return nil
		}
		return c.fail(err)
	}

	c.mu.Lock()
	c.lastErr = nil
	if c.timer != nil {
		c.setStateLocked(StatePendingPush)
	} else {
		c.setStateLocked(StateIdle)
	}
	c.mu.Unlock()
	return nil
}

// Start subscribes to the owner's document; every foreign change goes
// through OnRemote.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.sub != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	sub, err := c.mirror.Subscribe(ctx, func(snap *cloud.Snapshot) {
		c.OnRemote(snap)
	})
	if err != nil {
		return c.fail(fmt.Errorf("start: %w", err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.sub != nil {
		sub.Unsubscribe()
		return nil
	}
	c.sub = sub
	return nil
}

// Close stops the debounce timer and the subscription. An armed push is
// dropped; callers that need it call Flush first.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	c.fires.Wait()
}
