package syncer

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/localnerve/crmsync/internal/cloud"
	"github.com/localnerve/crmsync/internal/models"
)

type recordStamps struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (r recordStamps) stamp() string {
	if r.UpdatedAt != "" {
		return r.UpdatedAt
	}
	return r.CreatedAt
}

// newer reports whether stamp a is strictly after stamp b.
func newer(a, b string) bool {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA != nil || errB != nil {
		return a > b
	}
	return ta.After(tb)
}

// mergeSnapshot reconciles remote against the local snapshot record by
// record. The result carries remote's lastSync. diverged is true when the
// result holds local data the remote lacks.
func mergeSnapshot(local, remote *cloud.Snapshot) (*cloud.Snapshot, bool) {
	out := &cloud.Snapshot{LastSync: remote.LastSync}
	localCols := local.Collections()
	remoteCols := remote.Collections()
	diverged := false

	for key, remoteRaw := range remoteCols {
		localRaw, ok := localCols[key]
		if !ok {
			out.SetCollection(key, remoteRaw)
			continue
		}
		var merged json.RawMessage
		var changed bool
		if key == models.CollectionSettings {
			merged, changed = mergeObject(localRaw, remoteRaw)
		} else {
			merged, changed = mergeList(localRaw, remoteRaw)
		}
		out.SetCollection(key, merged)
		diverged = diverged || changed
	}

	// Collections the remote lacks stay local and need pushing.
	for key, localRaw := range localCols {
		if _, ok := remoteCols[key]; !ok && !emptyJSON(localRaw) {
			diverged = true
		}
	}
	return out, diverged
}

func emptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "[]" || string(trimmed) == "{}" || string(trimmed) == "null"
}

func mergeObject(local, remote json.RawMessage) (json.RawMessage, bool) {
	var l, r recordStamps
	if json.Unmarshal(local, &l) != nil || json.Unmarshal(remote, &r) != nil {
		return remote, false
	}
	if newer(l.stamp(), r.stamp()) {
		return local, true
	}
	return remote, false
}

func mergeList(local, remote json.RawMessage) (json.RawMessage, bool) {
	var localItems, remoteItems []json.RawMessage
	if json.Unmarshal(local, &localItems) != nil || json.Unmarshal(remote, &remoteItems) != nil {
		return remote, false
	}

	type entry struct {
		raw    json.RawMessage
		stamps recordStamps
	}
	localByID := make(map[string]entry, len(localItems))
	localOrder := make([]entry, 0, len(localItems))
	for _, raw := range localItems {
		var st recordStamps
		_ = json.Unmarshal(raw, &st)
		e := entry{raw: raw, stamps: st}
		localOrder = append(localOrder, e)
		if st.ID != "" {
			localByID[st.ID] = e
		}
	}

	changed := false
	seen := make(map[string]bool, len(remoteItems))
	// ID-less records have no key; equal bytes count as the same record.
	unkeyed := make(map[string]int)
	out := make([]json.RawMessage, 0, len(remoteItems)+len(localItems))
	for _, raw := range remoteItems {
		var st recordStamps
		_ = json.Unmarshal(raw, &st)
		if st.ID == "" {
			unkeyed[compactKey(raw)]++
			out = append(out, raw)
			continue
		}
		seen[st.ID] = true
		if l, ok := localByID[st.ID]; ok && newer(l.stamps.stamp(), st.stamp()) {
			out = append(out, l.raw)
			changed = true
			continue
		}
		out = append(out, raw)
	}
	for _, e := range localOrder {
		if e.stamps.ID == "" {
			if key := compactKey(e.raw); unkeyed[key] > 0 {
				unkeyed[key]--
				continue
			}
		} else if seen[e.stamps.ID] {
			continue
		}
		out = append(out, e.raw)
		changed = true
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return remote, false
	}
	return encoded, changed
}

func compactKey(raw json.RawMessage) string {
	var buf bytes.Buffer
	if json.Compact(&buf, raw) != nil {
		return string(raw)
	}
	return buf.String()
}
