// Package cursor encodes and decodes Relay-style connection cursors.
// Cursors are opaque base64-encoded JSON objects carrying the node type, the
// sort key the list was ordered by and the zero-based offset of the edge.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const version = 1

type payload struct {
	Version  int    `json:"v"`
	TypeName string `json:"t"`
	SortKey  string `json:"k"`
	Offset   int    `json:"o"`
}

// Encode builds an opaque cursor for the edge at offset.
func Encode(typeName, sortKey string, offset int) string {
	data, err := json.Marshal(payload{
		Version:  version,
		TypeName: typeName,
		SortKey:  sortKey,
		Offset:   offset,
	})
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// Decode parses raw and checks it was issued for the same type and sort key.
// It returns the offset of the edge the cursor points at.
func Decode(raw, typeName, sortKey string) (int, error) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor: %w", err)
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, fmt.Errorf("invalid cursor format")
	}
	if p.Version != version {
		return 0, fmt.Errorf("invalid cursor format: unsupported version %d", p.Version)
	}
	if p.TypeName != typeName {
		return 0, fmt.Errorf("cursor type mismatch: expected %s, got %s", typeName, p.TypeName)
	}
	if p.SortKey != sortKey {
		return 0, fmt.Errorf("cursor sort mismatch: expected %s, got %s", sortKey, p.SortKey)
	}
	if p.Offset < 0 {
		return 0, fmt.Errorf("invalid cursor: negative offset")
	}
	return p.Offset, nil
}

// After returns the offset of the first edge following the cursor, or zero
// when raw is empty.
func After(raw, typeName, sortKey string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	offset, err := Decode(raw, typeName, sortKey)
	if err != nil {
		return 0, err
	}
	return offset + 1, nil
}
