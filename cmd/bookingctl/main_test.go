package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Tree(t *testing.T) {
	root := newRootCommand()

	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "status"},
		{"reindex"},
		{"sequence", "next"},
		{"sequence", "list"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	reindex, _, err := root.Find([]string{"reindex"})
	require.NoError(t, err)
	assert.NotNil(t, reindex.Flags().Lookup("batch-size"))
	assert.NotNil(t, reindex.Flags().Lookup("interval"))

	next, _, err := root.Find([]string{"sequence", "next"})
	require.NoError(t, err)
	assert.NotNil(t, next.Flags().Lookup("code"))
}
