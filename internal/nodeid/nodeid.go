// Package nodeid encodes and decodes Relay-style global node IDs.
//
// An ID is the base64 encoding of a JSON array: the GraphQL type name followed by
// the record's primary key, e.g. ["Product", 42].
package nodeid

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidID reports an ID that cannot be decoded or names another type.
var ErrInvalidID = errors.New("invalid id")

// Encode marshals the type name and primary key values into a base64-encoded JSON array.
func Encode(typeName string, pkValues ...interface{}) string {
	payload := make([]interface{}, 0, len(pkValues)+1)
	payload = append(payload, typeName)
	payload = append(payload, pkValues...)
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// Decode parses a node ID and returns the type name and raw primary key values.
// Numbers are returned as json.Number so large integers survive intact.
func Decode(nodeID string) (string, []interface{}, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(nodeID))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var payload []interface{}
	if err := decoder.Decode(&payload); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	if len(payload) < 2 {
		return "", nil, fmt.Errorf("%w: missing type or primary key values", ErrInvalidID)
	}
	typeName, ok := payload[0].(string)
	if !ok || typeName == "" {
		return "", nil, fmt.Errorf("%w: missing type name", ErrInvalidID)
	}
	return typeName, payload[1:], nil
}

// DecodeInt decodes an ID for a record with a single integer primary key and
// checks that it names wantType.
func DecodeInt(wantType, nodeID string) (int64, error) {
	typeName, values, err := Decode(nodeID)
	if err != nil {
		return 0, err
	}
	if typeName != wantType {
		return 0, fmt.Errorf("%w: expected a %s id, got %s", ErrInvalidID, wantType, typeName)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("%w: expected one primary key value", ErrInvalidID)
	}
	return parseInt(values[0])
}

func parseInt(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: invalid integer primary key", ErrInvalidID)
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid integer primary key", ErrInvalidID)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: invalid integer primary key", ErrInvalidID)
	}
}
