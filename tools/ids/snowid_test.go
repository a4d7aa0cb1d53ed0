package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateMonotonicAndUnique(t *testing.T) {
	seen := make(map[int64]struct{}, 10000)
	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id := Generate()
		require.Greater(t, id, prev)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
		prev = id
	}
}

func TestNodeEncoding(t *testing.T) {
	SetNodeID(42)
	defer SetNodeID(1)

	id := Generate()
	require.EqualValues(t, 42, NodeOf(id))
}

func TestSetNodeIDRejectsOutOfRange(t *testing.T) {
	SetNodeID(5000)
	defer SetNodeID(1)
	require.EqualValues(t, 1, NodeOf(Generate()))
}

func TestTimeOf(t *testing.T) {
	id := Generate()
	require.WithinDuration(t, time.Now(), TimeOf(id), time.Second)
}
