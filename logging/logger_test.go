package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForReturnsSameInstanceForSameName(t *testing.T) {
	a := For("paxos-test")
	b := For("paxos-test")
	require.Same(t, a, b)
}

func TestSetLevelGatesOutput(t *testing.T) {
	SetLevel("quorum-test", LevelError)
	l := For("quorum-test").(*namedLogger)
	require.Equal(t, LevelError, l.level)
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	require.Equal(t, LevelDebug, ParseLevel("debug"))
	require.Equal(t, LevelInfo, ParseLevel("garbage"))
}
