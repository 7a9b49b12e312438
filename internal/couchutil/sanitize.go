// Package couchutil holds helpers shared by the remote (CouchDB-backed)
// stores.
package couchutil

import (
	"encoding/json"
	"fmt"
)

// SanitizeDoc strips null members from a document before transmission; the
// transport rejects explicit nulls where a field should simply be absent.
// The walk is recursive over nested objects and arrays.
func SanitizeDoc(doc any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding remote doc: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding remote doc: %w", err)
	}
	out, _ := dropNulls(m).(map[string]any)
	return out, nil
}

func dropNulls(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, member := range val {
			if member == nil {
				delete(val, k)
				continue
			}
			val[k] = dropNulls(member)
		}
		return val
	case []any:
		for i, member := range val {
			val[i] = dropNulls(member)
		}
		return val
	default:
		return v
	}
}
