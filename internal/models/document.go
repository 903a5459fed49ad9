package models

import (
	"encoding/json"
	"time"

	"github.com/localnerve/crmsync/internal/types"
)

// CloudDocument is the server-side row for one primary owner's snapshot.
// Body holds the synced collections plus lastSync; Pending holds the
// pendingApprovals list, which a document push never overwrites.
type CloudDocument struct {
	OwnerID         string `gorm:"primaryKey;size:128"`
	Body            JSON
	Pending         JSON
	LastSync        string `gorm:"size:40"`
	DocumentVersion uint64 `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName overrides the table name for CloudDocument
func (CloudDocument) TableName() string {
	return "cloud_documents"
}

// PendingApproval is a write staged by a delegated identity against the
// owner's document, waiting for the owner to accept it.
type PendingApproval struct {
	Type        string          `json:"type" validate:"required,oneof=property client sign"`
	Data        json.RawMessage `json:"data" validate:"required"`
	AddedBy     string          `json:"addedBy" validate:"required"`
	AddedByName string          `json:"addedByName,omitempty"`
	AddedAt     string          `json:"addedAt" validate:"required"`
}

// Snapshot is the remote document of one primary owner. Collection fields are
// raw so that a missing key stays distinguishable from an empty collection.
type Snapshot struct {
	Properties       json.RawMessage   `json:"properties,omitempty" swaggertype:"array,object"`
	Clients          json.RawMessage   `json:"clients,omitempty" swaggertype:"array,object"`
	Followups        json.RawMessage   `json:"followups,omitempty" swaggertype:"array,object"`
	Colleagues       json.RawMessage   `json:"colleagues,omitempty" swaggertype:"array,object"`
	Sales            json.RawMessage   `json:"sales,omitempty" swaggertype:"array,object"`
	Settings         json.RawMessage   `json:"settings,omitempty" swaggertype:"object"`
	Signs            json.RawMessage   `json:"signs,omitempty" swaggertype:"array,object"`
	LastSync         string            `json:"lastSync,omitempty"`
	Version          types.FlexUint64  `json:"__version,omitempty" swaggertype:"string"`
	PendingApprovals []PendingApproval `json:"pendingApprovals,omitempty"`
}

func (s *Snapshot) fields() map[string]*json.RawMessage {
	return map[string]*json.RawMessage{
		CollectionProperties: &s.Properties,
		CollectionClients:    &s.Clients,
		CollectionFollowups:  &s.Followups,
		CollectionColleagues: &s.Colleagues,
		CollectionSales:      &s.Sales,
		CollectionSettings:   &s.Settings,
		CollectionSigns:      &s.Signs,
	}
}

// Collections returns the collection keys present in the snapshot.
func (s *Snapshot) Collections() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(SyncedCollections))
	for key, field := range s.fields() {
		if len(*field) > 0 && string(*field) != "null" {
			out[key] = *field
		}
	}
	return out
}

// SetCollection stores raw under key. Unknown keys are ignored.
func (s *Snapshot) SetCollection(key string, raw json.RawMessage) {
	if field, ok := s.fields()[key]; ok {
		*field = raw
	}
}

// HasProperties reports whether the snapshot carries at least one property.
func (s *Snapshot) HasProperties() bool {
	if len(s.Properties) == 0 {
		return false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(s.Properties, &items); err != nil {
		return false
	}
	return len(items) > 0
}

// Body encodes the stored document body: the synced collections and lastSync.
func (s *Snapshot) Body() ([]byte, error) {
	body := Snapshot{LastSync: s.LastSync}
	for key, raw := range s.Collections() {
		body.SetCollection(key, raw)
	}
	return json.Marshal(&body)
}

// PutDocumentRequest is the body of a whole-document replace. A non-nil
// Version enables the optimistic version check.
type PutDocumentRequest struct {
	Version  *types.FlexUint64 `json:"version,omitempty" swaggertype:"string"`
	Document Snapshot          `json:"document"`
}
