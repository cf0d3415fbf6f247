package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cmd, ok := ParseCommand("/signals mintA")
	require.True(t, ok)
	assert.Equal(t, "signals", cmd.Cmd)
	assert.Equal(t, []string{"mintA"}, cmd.Args)

	cmd, ok = ParseCommand("  /MUTE   15  ")
	require.True(t, ok)
	assert.Equal(t, "mute", cmd.Cmd, "command is lowercased")
	n, isInt := cmd.IntArg(0)
	assert.True(t, isInt)
	assert.Equal(t, 15, n)
}

func TestParseCommandRejectsPlainText(t *testing.T) {
	for _, text := range []string{"", "hello", "  ", "/", "no /slash"} {
		_, ok := ParseCommand(text)
		assert.False(t, ok, "%q", text)
	}
}

func TestParsedCommandMissingArgs(t *testing.T) {
	cmd, ok := ParseCommand("/resume")
	require.True(t, ok)
	assert.Empty(t, cmd.Arg(0))
	_, isInt := cmd.IntArg(0)
	assert.False(t, isInt)
}
