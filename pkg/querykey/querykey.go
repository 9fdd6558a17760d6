// Package querykey derives deterministic cache keys for content queries.
//
// A key is "<namespace>:" followed by a 32-bit djb2-xor hash, in base 36, of
// the JSON document {"query": ..., "params": ...}. Object keys are serialized
// in sorted order so the same params produce the same key regardless of how
// the map was built. The hash runs over UTF-16 code units and U+2028/U+2029
// are left unescaped, as JSON.stringify does, so a browser computing the key
// over the same document gets the same result. The browser serializes params
// in insertion order, so keys agree only for queries whose params have a
// single key or were inserted in sorted order.
package querykey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf16"
)

// DefaultNamespace prefixes keys when no namespace is given.
const DefaultNamespace = "sanity"

type document struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params"`
}

// Serialize returns the canonical JSON encoding of a query and its params.
func Serialize(query string, params map[string]any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(document{Query: query, Params: params}); err != nil {
		return nil, fmt.Errorf("serialize query: %w", err)
	}
	return unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes encoding/json
// always writes back into the raw characters. An escaped backslash followed
// by "u2028" is left alone.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if i+5 < len(b) && string(b[i+1:i+5]) == "u202" && (b[i+5] == '8' || b[i+5] == '9') {
			if b[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

// Hash computes the djb2-xor hash of s and renders it in base 36.
func Hash(s string) string {
	var h uint32 = 5381
	for _, r := range s {
		if r >= 0x10000 {
			hi, lo := utf16.EncodeRune(r)
			h = h*33 ^ uint32(hi)
			h = h*33 ^ uint32(lo)
			continue
		}
		h = h*33 ^ uint32(r)
	}
	return strconv.FormatUint(uint64(h), 36)
}

// Make returns the cache key for query and params under namespace.
func Make(namespace, query string, params map[string]any) (string, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	data, err := Serialize(query, params)
	if err != nil {
		return "", err
	}
	return namespace + ":" + Hash(string(data)), nil
}
