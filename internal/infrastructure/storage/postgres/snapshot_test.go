package postgres

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCodec(t *testing.T) {
	codec, err := NewSnapshotCodec(64)
	require.NoError(t, err)

	small := json.RawMessage(`{"total":"10.00"}`)
	stored := codec.Encode(small)
	assert.Equal(t, CompressionNone, stored.Algo)
	got, err := codec.Decode(stored)
	require.NoError(t, err)
	assert.JSONEq(t, string(small), string(got))

	large := json.RawMessage(`{"lines":"` + strings.Repeat("paracetamol ", 100) + `"}`)
	stored = codec.Encode(large)
	assert.Equal(t, CompressionZstd, stored.Algo)
	assert.Nil(t, stored.Plain)
	assert.Less(t, len(stored.Compressed), len(large))

	got, err = codec.Decode(stored)
	require.NoError(t, err)
	assert.JSONEq(t, string(large), string(got))
}
