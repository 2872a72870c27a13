// Package slackclient implements the platform client over the Slack Web API.
package slackclient

import (
	"context"
	"fmt"
	"time"

	"github.com/slack-go/slack"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
	"github.com/tinyland-inc/larkbridge/pkg/logger"
	"github.com/tinyland-inc/larkbridge/pkg/platform"
)

// maxMessageRunes is Slack's documented text limit for chat.postMessage.
const maxMessageRunes = 4000

// Client wraps the Slack Web API behind the bridge.Client interface. Every
// call is bounded by the configured timeout.
type Client struct {
	api     *slack.Client
	timeout time.Duration
}

// New builds a Client. appToken may be empty when Socket Mode is not used.
func New(botToken, appToken string, timeout time.Duration) *Client {
	opts := []slack.Option{}
	if appToken != "" {
		opts = append(opts, slack.OptionAppLevelToken(appToken))
	}
	return &Client{
		api:     slack.New(botToken, opts...),
		timeout: timeout,
	}
}

// API exposes the underlying client for the Socket Mode ingress.
func (c *Client) API() *slack.Client {
	return c.api
}

// SendMessage posts req to a channel. A non-empty credential posts with that
// user token instead of the bot token, so the message appears to come from
// the linked person.
func (c *Client) SendMessage(ctx context.Context, req bridge.SendRequest) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	api := c.api
	if req.Credential != "" {
		api = slack.New(req.Credential)
	}

	for _, chunk := range platform.SplitText(req.Text, maxMessageRunes) {
		opts := []slack.MsgOption{slack.MsgOptionText(chunk, false)}
		if req.ThreadID != "" {
			opts = append(opts, slack.MsgOptionTS(req.ThreadID))
		}
		if req.Credential != "" {
			opts = append(opts, slack.MsgOptionAsUser(true))
		}
		if _, _, err := api.PostMessageContext(ctx, req.ChatID, opts...); err != nil {
			return fmt.Errorf("slack post to %s: %w", req.ChatID, err)
		}
	}
	return nil
}

// ListChannels pages through the workspace's public and private channels.
func (c *Client) ListChannels(ctx context.Context, workspaceID string) ([]bridge.ChannelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var channels []bridge.ChannelInfo
	params := &slack.GetConversationsParameters{
		Types: []string{"public_channel", "private_channel"},
		Limit: 200,
	}
	for {
		page, cursor, err := c.api.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("slack list conversations: %w", err)
		}
		for _, ch := range page {
			channels = append(channels, bridge.ChannelInfo{
				ID:          ch.ID,
				Name:        ch.Name,
				IsShared:    ch.IsShared || ch.IsExtShared,
				WorkspaceID: workspaceID,
			})
		}
		if cursor == "" {
			break
		}
		params.Cursor = cursor
	}

	logger.DebugCF("slack", "Channel list fetched", map[string]any{"channels": len(channels)})
	return channels, nil
}

// ResolveUser fetches one user's profile.
func (c *Client) ResolveUser(ctx context.Context, userID string) (*bridge.UserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("slack user info %s: %w", userID, err)
	}

	display := user.Profile.DisplayName
	if display == "" {
		display = user.RealName
	}
	return &bridge.UserInfo{
		ID:          user.ID,
		DisplayName: display,
		Alias:       user.RealName,
		Handle:      user.Name,
		IsBot:       user.IsBot,
	}, nil
}
