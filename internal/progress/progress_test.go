package progress

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestBytes_NoWriter checks that bars are silent no-ops without Open.
func TestBytes_NoWriter(t *testing.T) {
	t.Parallel()

	b := Bytes(context.Background(), 10, "upload")

	n, err := b.Read(make([]byte, 4))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	b.Close()
}

// TestBytes_Renders checks that an opened context renders the description.
func TestBytes_Renders(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	b := Bytes(Open(context.Background(), &out), 8, "cars/x.zip")

	_, err := b.Read(make([]byte, 8))
	require.NoError(t, err)

	b.Close()
	require.Contains(t, out.String(), "cars/x.zip")
}
