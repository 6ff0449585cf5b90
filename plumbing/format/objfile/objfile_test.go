package objfile

import (
	"testing"

	"github.com/go-git/git-engine/plumbing"
	"github.com/stretchr/testify/require"
)

func TestHashAndSerializeEmptyBlob(t *testing.T) {
	oid, raw := HashAndSerialize(plumbing.BlobObject, nil)
	require.Equal(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", oid.String())
	require.Equal(t, "blob 0\x00", string(raw))
}

func TestWriteLooseReadLooseRoundTrip(t *testing.T) {
	payload := []byte("hello world\n")
	oid, deflated, err := WriteLoose(plumbing.BlobObject, payload)
	require.NoError(t, err)

	gotType, gotPayload, err := ReadLoose(deflated)
	require.NoError(t, err)
	require.Equal(t, plumbing.BlobObject, gotType)
	require.Equal(t, payload, gotPayload)

	// Re-hashing the reconstructed bytes equals the OID.
	rehash, _ := HashAndSerialize(gotType, gotPayload)
	require.Equal(t, oid, rehash)
}
