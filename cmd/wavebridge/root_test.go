package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"run", "tray", "devices"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))

	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	interval := run.Flags().Lookup("interval")
	require.NotNil(t, interval)
	assert.Equal(t, "1s", interval.DefValue)
}
