// document_service.go
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

package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/localnerve/crmsync/internal/models"
	"github.com/localnerve/crmsync/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GetDocument retrieves the snapshot of one owner, with its version and pending approvals
func GetDocument(db *gorm.DB, ownerID string) (*models.Snapshot, error) {
	var doc models.CloudDocument
	err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Where("owner_id = ?", ownerID).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return documentSnapshot(&doc)
}

// FilterCollections keeps only the named collections of snap. An empty list keeps everything.
func FilterCollections(snap *models.Snapshot, collections []string) *models.Snapshot {
	if len(collections) == 0 || collections[0] == "" {
		return snap
	}
	out := &models.Snapshot{
		LastSync:         snap.LastSync,
		Version:          snap.Version,
		PendingApprovals: snap.PendingApprovals,
	}
	present := snap.Collections()
	for _, name := range collections {
		if raw, ok := present[name]; ok {
			out.SetCollection(name, raw)
		}
	}
	return out
}

func documentSnapshot(doc *models.CloudDocument) (*models.Snapshot, error) {
	snap := &models.Snapshot{}
	if body := doc.Body.Bytes(); body != nil {
		if err := json.Unmarshal(body, snap); err != nil {
			return nil, fmt.Errorf("corrupt document body for %s: %w", doc.OwnerID, err)
		}
	}
	if pending := doc.Pending.Bytes(); pending != nil {
		if err := json.Unmarshal(pending, &snap.PendingApprovals); err != nil {
			return nil, fmt.Errorf("corrupt pending approvals for %s: %w", doc.OwnerID, err)
		}
	}
	snap.LastSync = doc.LastSync
	snap.Version = types.FlexUint64(doc.DocumentVersion)
	return snap, nil
}

// PutDocument replaces the synced collections of an owner's document. When
// version is non-nil it must match the stored version. Pending approvals are
// never touched. The stored snapshot is returned with its new version.
func PutDocument(db *gorm.DB, ownerID string, version *uint64, snap *models.Snapshot) (*models.Snapshot, error) {
	body, err := snap.Body()
	if err != nil {
		return nil, err
	}

	var stored models.CloudDocument
	err = db.Transaction(func(tx *gorm.DB) error {
		var doc models.CloudDocument
		err := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("owner_id = ?", ownerID).
			First(&doc).Error

		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if version != nil && *version != 0 {
				return ErrVersion
			}
			stored = models.CloudDocument{
				OwnerID:         ownerID,
				Body:            models.NewJSON(body),
				LastSync:        snap.LastSync,
				DocumentVersion: 1,
			}
			return tx.Create(&stored).Error
		}

		if version != nil && doc.DocumentVersion != *version {
			return ErrVersion
		}

		result := tx.Model(&models.CloudDocument{}).
			Where("owner_id = ? AND document_version = ?", ownerID, doc.DocumentVersion).
			Updates(map[string]interface{}{
				"body":             models.NewJSON(body),
				"last_sync":        snap.LastSync,
				"document_version": doc.DocumentVersion + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w - Failed to update document due to concurrent modification", ErrVersion)
		}

		doc.Body = models.NewJSON(body)
		doc.LastSync = snap.LastSync
		doc.DocumentVersion++
		stored = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return documentSnapshot(&stored)
}

// AppendPending adds a staged write to an existing owner document and returns
// the updated snapshot.
func AppendPending(db *gorm.DB, ownerID string, entry models.PendingApproval) (*models.Snapshot, error) {
	var stored models.CloudDocument
	err := db.Transaction(func(tx *gorm.DB) error {
		var doc models.CloudDocument
		if err := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("owner_id = ?", ownerID).
			First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var pending []models.PendingApproval
		if raw := doc.Pending.Bytes(); raw != nil {
			if err := json.Unmarshal(raw, &pending); err != nil {
				return fmt.Errorf("corrupt pending approvals for %s: %w", ownerID, err)
			}
		}
		pending = append(pending, entry)
		raw, err := json.Marshal(pending)
		if err != nil {
			return err
		}

		result := tx.Model(&models.CloudDocument{}).
			Where("owner_id = ? AND document_version = ?", ownerID, doc.DocumentVersion).
			Updates(map[string]interface{}{
				"pending":          models.NewJSON(raw),
				"document_version": doc.DocumentVersion + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w - Failed to update document due to concurrent modification", ErrVersion)
		}

		doc.Pending = models.NewJSON(raw)
		doc.DocumentVersion++
		stored = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return documentSnapshot(&stored)
}
