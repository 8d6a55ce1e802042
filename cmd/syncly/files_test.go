package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListAndSearchLimitsAreIndependent(t *testing.T) {
	// Both commands expose --limit with different defaults; building one
	// must not clobber the other's value.
	lsCmd := newListCmd()
	searchCmd := newSearchCmd()

	lsLimit, err := lsCmd.Flags().GetInt("limit")
	require.NoError(t, err)
	require.Equal(t, 100, lsLimit)

	searchLimit, err := searchCmd.Flags().GetInt("limit")
	require.NoError(t, err)
	require.Equal(t, 0, searchLimit)

	require.NoError(t, searchCmd.Flags().Set("limit", "5"))
	lsLimit, err = lsCmd.Flags().GetInt("limit")
	require.NoError(t, err)
	require.Equal(t, 100, lsLimit)
}
