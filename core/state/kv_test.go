package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tiergate/storage"
)

type record struct {
	Tier  uint32
	Label string
}

func TestManagerKVRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	stored := record{Tier: 3, Label: "gold"}
	require.NoError(t, manager.KVPut([]byte("registry/test"), &stored))

	var loaded record
	ok, err := manager.KVGet([]byte("registry/test"), &loaded)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, stored, loaded)

	ok, err = manager.KVHas([]byte("registry/test"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, manager.KVDelete([]byte("registry/test")))
	ok, err = manager.KVGet([]byte("registry/test"), &loaded)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManagerKVMissingKey(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	var loaded record
	ok, err := manager.KVGet([]byte("absent"), &loaded)
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting an absent key is a no-op, not an error.
	require.NoError(t, manager.KVDelete([]byte("absent")))
}

func TestManagerKVRejectsEmptyKey(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	require.Error(t, manager.KVPut(nil, uint64(1)))
	_, err := manager.KVGet(nil, nil)
	require.Error(t, err)
	require.Error(t, manager.KVDelete(nil))
}
