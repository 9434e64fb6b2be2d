package cursor

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_Roundtrip(t *testing.T) {
	tests := []struct {
		name     string
		typeName string
		sortKey  string
		offset   int
	}{
		{name: "first edge", typeName: "Product", sortKey: "id", offset: 0},
		{name: "descending price", typeName: "Product", sortKey: "-price", offset: 41},
		{name: "categories", typeName: "Category", sortKey: "name", offset: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := Encode(tt.typeName, tt.sortKey, tt.offset)
			require.NotEmpty(t, encoded)

			offset, err := Decode(encoded, tt.typeName, tt.sortKey)
			require.NoError(t, err)
			assert.Equal(t, tt.offset, offset)
		})
	}
}

func TestDecode_Mismatches(t *testing.T) {
	encoded := Encode("Product", "price", 3)

	_, err := Decode(encoded, "Category", "price")
	assert.ErrorContains(t, err, "type mismatch")

	_, err = Decode(encoded, "Product", "-price")
	assert.ErrorContains(t, err, "sort mismatch")
}

func TestDecode_Invalid(t *testing.T) {
	tests := map[string]string{
		"not base64":      "%%%",
		"not json":        base64.StdEncoding.EncodeToString([]byte("nope")),
		"wrong version":   base64.StdEncoding.EncodeToString([]byte(`{"v":2,"t":"Product","k":"id","o":1}`)),
		"negative offset": base64.StdEncoding.EncodeToString([]byte(`{"v":1,"t":"Product","k":"id","o":-1}`)),
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(raw, "Product", "id")
			assert.Error(t, err)
		})
	}
}

func TestAfter(t *testing.T) {
	offset, err := After("", "Product", "id")
	require.NoError(t, err)
	assert.Equal(t, 0, offset)

	offset, err = After(Encode("Product", "id", 9), "Product", "id")
	require.NoError(t, err)
	assert.Equal(t, 10, offset)
}
