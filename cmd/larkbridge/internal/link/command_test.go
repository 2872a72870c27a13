package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLinkCommand(t *testing.T) {
	cmd := NewLinkCommand()

	require.NotNil(t, cmd)

	assert.Equal(t, "link", cmd.Use)
	assert.True(t, cmd.HasExample())
	assert.True(t, cmd.HasSubCommands())
}

func TestNewLinkCommand_UserSubcommand(t *testing.T) {
	cmd := NewLinkCommand()

	user, _, err := cmd.Find([]string{"user"})
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.Equal(t, "user", user.Use)
	assert.NotNil(t, user.RunE)
	assert.NotNil(t, user.Flags().Lookup("slack"))
	assert.NotNil(t, user.Flags().Lookup("lark"))
	assert.NotNil(t, user.Flags().Lookup("name"))
	assert.NotNil(t, user.Flags().Lookup("credential"))
	assert.NotNil(t, user.Flags().Lookup("paste-credential"))
}

func TestNewLinkCommand_ChannelSubcommand(t *testing.T) {
	cmd := NewLinkCommand()

	channel, _, err := cmd.Find([]string{"channel"})
	require.NoError(t, err)
	require.NotNil(t, channel)

	assert.Equal(t, "channel", channel.Use)
	assert.NotNil(t, channel.Flags().Lookup("slack"))
	assert.NotNil(t, channel.Flags().Lookup("lark"))
	assert.NotNil(t, channel.Flags().Lookup("one-way"))
}

func TestNewLinkCommand_ListAndRemove(t *testing.T) {
	cmd := NewLinkCommand()

	list, _, err := cmd.Find([]string{"list"})
	require.NoError(t, err)
	assert.Equal(t, "list", list.Use)

	remove, _, err := cmd.Find([]string{"remove"})
	require.NoError(t, err)
	assert.NotNil(t, remove.Flags().Lookup("user"))
	assert.NotNil(t, remove.Flags().Lookup("channel"))
}
