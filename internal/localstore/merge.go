package localstore

import (
	"encoding/json"
)

// mergeRecord overlays the top-level JSON fields present in patch onto base.
// Fields the patch omits (absent or zero, given omitempty tags) are kept.
func mergeRecord[T any](base *T, patch any) (T, error) {
	var merged T
	raw, err := overlay(base, patch)
	if err != nil {
		return merged, err
	}
	err = json.Unmarshal(raw, &merged)
	return merged, err
}

func overlay(base, patch any) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	baseRaw, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(baseRaw, &fields); err != nil {
		return nil, err
	}
	patchRaw, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	patchFields := map[string]json.RawMessage{}
	if err := json.Unmarshal(patchRaw, &patchFields); err != nil {
		return nil, err
	}
	for k, v := range patchFields {
		fields[k] = v
	}
	return json.Marshal(fields)
}
