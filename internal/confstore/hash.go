package confstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// reservedKeys are stripped before hashing or persisting and
// re-inserted by callers that need the wire representation
// (spec.md §3 "Reserved keys _rev and _id").
var reservedKeys = []string{"_rev", "_id"}

// canonicalize returns content with reserved keys removed. The
// returned map is a shallow copy; callers that need a full deep copy
// should use cloneContent.
func canonicalize(content map[string]any) map[string]any {
	out := make(map[string]any, len(content))
	for k, v := range content {
		out[k] = v
	}
	for _, k := range reservedKeys {
		delete(out, k)
	}
	return out
}

// hashContent computes SHA-256 over the canonical JSON form of
// content: reserved keys stripped, keys sorted, no inter-token
// whitespace, UTF-8. encoding/json already sorts map[string]any keys
// when marshaling, so a plain json.Marshal of the canonicalized map is
// the canonical form — no third-party canonical-JSON encoder in the
// example pack does this more idiomatically than the two-line stdlib
// round trip, so this is a deliberately stdlib-only piece (see
// DESIGN.md).
func hashContent(content map[string]any) (string, error) {
	canon := canonicalize(content)
	data, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// cloneContent deep-copies content via a JSON round trip, which is
// sufficient because configuration documents are JSON-valued by
// construction (spec.md §3 "a mapping string->JSON value").
func cloneContent(content map[string]any) (map[string]any, error) {
	if content == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
