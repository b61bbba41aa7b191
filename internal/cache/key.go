package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Key derives the cache key for (model name, input, parameters). It is a
// pure function of its arguments: inputs and parameters are canonicalized
// (re-marshalled with sorted map keys) so logically identical requests
// always collide on the same key.
func Key(model string, input json.RawMessage, params map[string]any) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write(canonicalJSON(input))
	h.Write([]byte{0})
	if len(params) > 0 {
		// encoding/json sorts map keys, nested maps included
		if b, err := json.Marshal(params); err == nil {
			h.Write(b)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalJSON normalizes raw JSON by decode + re-encode, which strips
// whitespace and orders object keys. Non-JSON payloads hash as-is.
func canonicalJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	b, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return b
}
