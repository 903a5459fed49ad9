package localstore

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrQuotaExceeded is returned by a KV when a write would exceed its byte quota.
var ErrQuotaExceeded = errors.New("local storage quota exceeded")

// KV is the synchronous key-value API the store persists through.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// MemoryKV is a map-backed KV. A positive quota caps the total value bytes.
type MemoryKV struct {
	mu    sync.Mutex
	data  map[string][]byte
	quota int64
}

// NewMemoryKV creates an empty MemoryKV. quota <= 0 means unlimited.
func NewMemoryKV(quota int64) *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte), quota: quota}
}

func (m *MemoryKV) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quota > 0 {
		var total int64
		for k, v := range m.data {
			if k != key {
				total += int64(len(v))
			}
		}
		if total+int64(len(value)) > m.quota {
			return ErrQuotaExceeded
		}
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// LocalEntry is one persisted collection in the embedded store file.
type LocalEntry struct {
	Key       string `gorm:"column:entry_key;primaryKey;size:64"`
	Value     []byte `gorm:"type:blob"`
	UpdatedAt time.Time
}

// TableName overrides the table name for LocalEntry
func (LocalEntry) TableName() string {
	return "local_entries"
}

// GormKV persists entries in a SQLite file through gorm.
type GormKV struct {
	db    *gorm.DB
	quota int64
}

// OpenFile opens (or creates) the SQLite store at path. quota <= 0 means unlimited.
func OpenFile(path string, quota int64) (*GormKV, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store %s: %w", path, err)
	}
	return NewGormKV(db, quota)
}

// NewGormKV wraps an open gorm DB and migrates the entry table.
func NewGormKV(db *gorm.DB, quota int64) (*GormKV, error) {
	if err := db.AutoMigrate(&LocalEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}
	return &GormKV{db: db, quota: quota}, nil
}

func (g *GormKV) Get(key string) ([]byte, bool, error) {
	var entry LocalEntry
	err := g.db.Where("entry_key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value, true, nil
}

func (g *GormKV) Set(key string, value []byte) error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		if g.quota > 0 {
			var total int64
			if err := tx.Model(&LocalEntry{}).
				Where("entry_key <> ?", key).
				Select("COALESCE(SUM(LENGTH(value)), 0)").
				Scan(&total).Error; err != nil {
				return err
			}
			if total+int64(len(value)) > g.quota {
				return ErrQuotaExceeded
			}
		}
		entry := LocalEntry{Key: key, Value: value, UpdatedAt: time.Now()}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&entry).Error
	})
}

func (g *GormKV) Delete(key string) error {
	return g.db.Where("entry_key = ?", key).Delete(&LocalEntry{}).Error
}

// Close releases the underlying connection pool.
func (g *GormKV) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Usage is the number of value bytes stored.
func (g *GormKV) Usage() (int64, error) {
	var total int64
	err := g.db.Model(&LocalEntry{}).Select("COALESCE(SUM(LENGTH(value)), 0)").Scan(&total).Error
	return total, err
}
