package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitaliisemenov/flagcore/internal/version"
)

func fixedClock(ts int64) version.Clock {
	return func() int64 { return ts }
}

func TestMakeAndIncrement(t *testing.T) {
	v1 := version.Make("node-a", "seed-1", fixedClock(100))
	assert.Equal(t, uint64(1), v1.Version)
	assert.Equal(t, int64(100), v1.Timestamp)
	assert.Equal(t, "node-a", v1.NodeID)
	assert.Len(t, v1.Checksum, 8)

	v2 := version.Increment(v1, "seed-2", fixedClock(200))
	assert.Equal(t, uint64(2), v2.Version)
	assert.Equal(t, "node-a", v2.NodeID)
	assert.True(t, version.IsNewer(v2, v1))
}

func TestCompareTotalOrder(t *testing.T) {
	base := version.Vector{Version: 1, Timestamp: 10, NodeID: "a", Checksum: "aaaaaaaa"}

	higherVersion := base
	higherVersion.Version = 2
	assert.Equal(t, 1, version.Compare(higherVersion, base))
	assert.Equal(t, -1, version.Compare(base, higherVersion))

	sameVersionLaterTS := base
	sameVersionLaterTS.Timestamp = 20
	assert.Equal(t, 1, version.Compare(sameVersionLaterTS, base))

	sameVersionSameTSHigherNode := base
	sameVersionSameTSHigherNode.NodeID = "b"
	assert.Equal(t, 1, version.Compare(sameVersionSameTSHigherNode, base))

	sameExceptChecksum := base
	sameExceptChecksum.Checksum = "bbbbbbbb"
	assert.Equal(t, 1, version.Compare(sameExceptChecksum, base))

	assert.Equal(t, 0, version.Compare(base, base))
}

func TestMergeConflictRemoteWins(t *testing.T) {
	local := version.Vector{Version: 2, Timestamp: 10, NodeID: "A", Checksum: "x"}
	remote := version.Vector{Version: 3, Timestamp: 5, NodeID: "B", Checksum: "y"}

	merged := version.Merge(local, remote, fixedClock(999))
	assert.Equal(t, uint64(4), merged.Version)
	assert.Equal(t, "B", merged.NodeID)
	assert.Equal(t, "y", merged.Checksum)
	assert.Equal(t, int64(999), merged.Timestamp)
}

func TestRoundTripStringParse(t *testing.T) {
	v := version.Vector{Version: 7, Timestamp: 12345, NodeID: "node-x", Checksum: "deadbeef"}
	parsed, err := version.Parse(v.String())
	require.NoError(t, err)
	assert.Equal(t, v, parsed)
}

func TestParseRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"1:2:3",
		"1:2:3:4:5",
		"notanumber:2:node:checksum",
		"1:notanumber:node:checksum",
		"1:2:node:",
	}
	for _, c := range cases {
		_, err := version.Parse(c)
		assert.Error(t, err, "expected parse error for %q", c)
	}
}

func TestChecksumDeterministic(t *testing.T) {
	a := version.Checksum("hello")
	b := version.Checksum("hello")
	assert.Equal(t, a, b)
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, version.Checksum("world"))
}
