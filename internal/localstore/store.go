// Package localstore keeps the typed CRM collections in a synchronous
// key-value store, one JSON value per collection key. Reads are served from
// an in-memory cache so that local writes are visible immediately, before any
// network round trip.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/localnerve/crmsync/internal/logging"
	"github.com/localnerve/crmsync/internal/models"
	"github.com/sirupsen/logrus"
)

// KeyLastSync holds the last sync timestamp produced or applied by this client.
const KeyLastSync = "lastSync"

// maxActivity caps the audit trail.
const maxActivity = 50

var (
	// ErrNotFound is returned when a delete or lookup names an unknown id.
	ErrNotFound = errors.New("record not found")
	// ErrPersistence wraps KV write failures other than quota exhaustion.
	ErrPersistence = errors.New("local persistence failed")
)

// Notifier receives expected, non-fatal failures (quota, persistence).
type Notifier func(err error)

// Option configures a Store.
type Option func(*Store)

// WithNotifier installs the side channel for non-fatal failures.
func WithNotifier(fn Notifier) Option {
	return func(s *Store) { s.notify = fn }
}

// WithClock overrides the clock used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger overrides the component logger.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Store) { s.log = log }
}

// Store is safe for concurrent use. The change hook and the notifier are
// always called without the store lock held.
type Store struct {
	mu       sync.Mutex
	kv       KV
	cache    map[string][]byte
	notify   Notifier
	onChange func()
	now      func() time.Time
	log      *logrus.Entry
	validate *validator.Validate
}

// New creates a Store over kv.
func New(kv KV, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		cache:    make(map[string][]byte),
		now:      time.Now,
		log:      logging.Component("localstore"),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange sets the hook invoked after every user-originated mutation.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Now returns the store clock's current time as a timestamp.
func (s *Store) Now() string {
	return models.Timestamp(s.now())
}

func (s *Store) readLocked(key string) []byte {
	if v, ok := s.cache[key]; ok {
		return v
	}
	v, ok, err := s.kv.Get(key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Failed to read local collection")
		return nil
	}
	if !ok {
		return nil
	}
	s.cache[key] = v
	return v
}

// writeLocked updates the cache first. A failed KV write leaves the cache
// ahead of the persisted value until the next successful write.
func (s *Store) writeLocked(key string, value []byte) error {
	s.cache[key] = value
	if err := s.kv.Set(key, value); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			return fmt.Errorf("persist %s: %w", key, err)
		}
		return fmt.Errorf("%w: persist %s: %v", ErrPersistence, key, err)
	}
	return nil
}

func (s *Store) report(errs ...error) {
	for _, err := range errs {
		if err == nil {
			continue
		}
		s.log.WithError(err).Error("Local write failed")
		if s.notify != nil {
			s.notify(err)
		}
	}
}

func (s *Store) changed() {
	s.mu.Lock()
	hook := s.onChange
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func decodeList[T any](s *Store, key string, raw []byte) []T {
	if len(raw) == 0 {
		return []T{}
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Corrupted local collection, treating as empty")
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}

func list[T any](s *Store, key string) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeList[T](s, key, s.readLocked(key))
}

// record is the pointer form of a collection element.
type record[T any] interface {
	*T
	models.Entity
	Label() string
}

func find[T any, P record[T]](s *Store, key, id string) (P, bool) {
	for _, item := range list[T](s, key) {
		if P(&item).EntityID() == id {
			found := item
			return &found, true
		}
	}
	return nil, false
}

func saveRecord[T any, P record[T]](s *Store, key, kind string, rec P) (P, error) {
	if rec == nil {
		return nil, fmt.Errorf("save %s: nil record", kind)
	}
	now := models.Timestamp(s.now())

	s.mu.Lock()
	items := decodeList[T](s, key, s.readLocked(key))
	idx := -1
	if id := rec.EntityID(); id != "" {
		for i := range items {
			if P(&items[i]).EntityID() == id {
				idx = i
				break
			}
		}
	}

	var saved T
	action := "created"
	if idx >= 0 {
		merged, err := mergeRecord[T](&items[idx], rec)
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("merge %s: %w", kind, err)
		}
		saved = merged
		P(&saved).SetEntityID(P(&items[idx]).EntityID())
		P(&saved).SetCreatedStamp(P(&items[idx]).CreatedStamp())
		P(&saved).SetUpdatedStamp(now)
		action = "updated"
	} else {
		saved = *rec
		if P(&saved).EntityID() == "" {
			P(&saved).SetEntityID(NewID())
		}
		// Stamps are the store's, whatever the caller sent.
		P(&saved).SetCreatedStamp(now)
		P(&saved).SetUpdatedStamp("")
	}

	if err := s.validate.Struct(P(&saved)); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("invalid %s: %w", kind, err)
	}

	if idx >= 0 {
		items[idx] = saved
	} else {
		items = append(items, saved)
	}
	raw, err := json.Marshal(items)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	werr := s.writeLocked(key, raw)
	aerr := s.appendActivityLocked(kind, action, P(&saved).EntityID(), P(&saved).Label(), now)
	s.mu.Unlock()

	s.report(werr, aerr)
	s.changed()
	out := saved
	return &out, nil
}

func deleteRecord[T any, P record[T]](s *Store, key, kind, id string) error {
	now := models.Timestamp(s.now())

	s.mu.Lock()
	items := decodeList[T](s, key, s.readLocked(key))
	kept := make([]T, 0, len(items))
	label := ""
	found := false
	for _, item := range items {
		if P(&item).EntityID() == id {
			label = P(&item).Label()
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	raw, err := json.Marshal(kept)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encode %s: %w", key, err)
	}
	werr := s.writeLocked(key, raw)
	aerr := s.appendActivityLocked(kind, "deleted", id, label, now)
	s.mu.Unlock()

	s.report(werr, aerr)
	s.changed()
	return nil
}

func (s *Store) appendActivityLocked(kind, action, entityID, label, now string) error {
	entries := decodeList[models.Activity](s, models.CollectionActivity, s.readLocked(models.CollectionActivity))
	description := kind + " " + action
	if label != "" {
		description += ": " + label
	}
	entry := models.Activity{
		ID:          NewID(),
		Type:        kind,
		Action:      action,
		EntityID:    entityID,
		Description: description,
		Timestamp:   now,
	}
	entries = append([]models.Activity{entry}, entries...)
	if len(entries) > maxActivity {
		entries = entries[:maxActivity]
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.writeLocked(models.CollectionActivity, raw)
}

// ReplaceCollections overwrites each given collection with its raw value.
// It records no activity and does not invoke the change hook; it is the
// write path of remote snapshot application.
func (s *Store) ReplaceCollections(cols map[string]json.RawMessage) {
	s.mu.Lock()
	errs := make([]error, 0, len(cols))
	for key, raw := range cols {
		errs = append(errs, s.writeLocked(key, append([]byte(nil), raw...)))
	}
	s.mu.Unlock()
	s.report(errs...)
}

// ImportCollections replaces the given collections as a user action: one
// activity entry is recorded and the change hook fires.
func (s *Store) ImportCollections(cols map[string]json.RawMessage) {
	now := models.Timestamp(s.now())
	s.mu.Lock()
	errs := make([]error, 0, len(cols)+1)
	for key, raw := range cols {
		errs = append(errs, s.writeLocked(key, append([]byte(nil), raw...)))
	}
	errs = append(errs, s.appendActivityLocked("data", "imported", "", fmt.Sprintf("%d collections", len(cols)), now))
	s.mu.Unlock()
	s.report(errs...)
	s.changed()
}

// RawCollection returns the stored JSON of a collection, or an empty array
// (an empty object for settings) when it is absent or corrupted.
func (s *Store) RawCollection(key string) json.RawMessage {
	s.mu.Lock()
	raw := s.readLocked(key)
	s.mu.Unlock()
	if len(raw) == 0 || !json.Valid(raw) {
		if len(raw) > 0 {
			s.log.WithField("key", key).Warn("Corrupted local collection, exporting as empty")
		}
		if key == models.CollectionSettings {
			return json.RawMessage("{}")
		}
		return json.RawMessage("[]")
	}
	return append(json.RawMessage(nil), raw...)
}

// HasCollection reports whether key holds a value.
func (s *Store) HasCollection(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readLocked(key)) > 0
}

// LastSync is the last sync timestamp this client produced or applied.
func (s *Store) LastSync() string {
	s.mu.Lock()
	raw := s.readLocked(KeyLastSync)
	s.mu.Unlock()
	if len(raw) == 0 {
		return ""
	}
	var ts string
	if err := json.Unmarshal(raw, &ts); err != nil {
		s.log.WithError(err).Warn("Corrupted lastSync value, ignoring")
		return ""
	}
	return ts
}

// SetLastSync persists ts under KeyLastSync.
func (s *Store) SetLastSync(ts string) {
	raw, _ := json.Marshal(ts)
	s.mu.Lock()
	err := s.writeLocked(KeyLastSync, raw)
	s.mu.Unlock()
	s.report(err)
}
