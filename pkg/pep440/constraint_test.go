package pep440

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseConstraintSet(t *testing.T) {
	t.Run("wildcard", func(t *testing.T) {
		cs, err := ParseConstraintSet("*")
		require.NoError(t, err)
		require.Empty(t, cs)
	})

	t.Run("range", func(t *testing.T) {
		cs, err := ParseConstraintSet(">=0.5,<0.7")
		require.NoError(t, err)
		require.Len(t, cs, 2)
		require.Equal(t, ">=", cs[0].Op)
		require.Equal(t, "<", cs[1].Op)
	})

	t.Run("rejects unknown comparator", func(t *testing.T) {
		_, err := ParseConstraintSet("~0.5")
		require.Error(t, err)
	})
}

func TestConstraintSetMatches(t *testing.T) {
	cs, err := ParseConstraintSet(">=0.5,<0.7")
	require.NoError(t, err)

	cases := map[string]bool{
		"0.4.0": false,
		"0.5.0": true,
		"0.6.9": true,
		"0.7.0": false,
	}
	for verStr, want := range cases {
		t.Run(verStr, func(t *testing.T) {
			v, err := Parse(verStr)
			require.NoError(t, err)
			require.Equal(t, want, cs.Matches(v))
		})
	}
}

func TestCompatibleRelease(t *testing.T) {
	cs, err := ParseConstraintSet("~=2.2")
	require.NoError(t, err)

	v1, _ := Parse("2.3.0")
	require.True(t, cs.Matches(v1))

	v2, _ := Parse("3.0.0")
	require.False(t, cs.Matches(v2))

	v3, _ := Parse("2.1.0")
	require.False(t, cs.Matches(v3))
}

func TestIsExactPin(t *testing.T) {
	t.Run("accepts exact pin", func(t *testing.T) {
		exact, ok := IsExactPin("==2.5.1")
		require.True(t, ok)
		require.Equal(t, "2.5.1", exact)
	})

	t.Run("accepts exact pin with local segment", func(t *testing.T) {
		exact, ok := IsExactPin("==2.5.1+cu121")
		require.True(t, ok)
		require.Equal(t, "2.5.1+cu121", exact)
	})

	t.Run("rejects range", func(t *testing.T) {
		_, ok := IsExactPin(">=2.5.1")
		require.False(t, ok)
	})

	t.Run("rejects multi-clause", func(t *testing.T) {
		_, ok := IsExactPin("==2.5.1,<3.0")
		require.False(t, ok)
	})

	t.Run("rejects wildcard", func(t *testing.T) {
		_, ok := IsExactPin("==2.5.*")
		require.False(t, ok)
	})
}

func TestMatchesVersionTag(t *testing.T) {
	require.True(t, MatchesVersionTag("*", "1.2.3"))
	require.True(t, MatchesVersionTag("", "1.2.3"))
	require.True(t, MatchesVersionTag(">=1.0,<2.0", "1.2.3"))
	require.False(t, MatchesVersionTag(">=1.0,<2.0", "2.0.0"))
	require.True(t, MatchesVersionTag("nightly-2026-01-01", "nightly-2026-01-01"))
}
