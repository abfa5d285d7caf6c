package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()
	require.Equal(t, "psicoctl", root.Use)

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"migrate", "queue", "trigger", "retry", "stats", "config"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestTriggerRejectsMalformedID(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"trigger", "not-a-uuid", "--config", "testdata/config.yaml"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid response id")
}

func TestConfigSetValidatesLevel(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{
		"config", "set", "6f9c2a9e-0b46-4c47-8a1d-30c1f1aa24d9",
		"--min-notify-level", "gravissimo",
		"--config", "testdata/config.yaml",
	})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid notify level")
}
