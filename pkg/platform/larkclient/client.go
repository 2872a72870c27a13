// Package larkclient implements the platform client over the Lark Open API.
package larkclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
	"github.com/tinyland-inc/larkbridge/pkg/logger"
	"github.com/tinyland-inc/larkbridge/pkg/platform"
)

// maxMessageRunes keeps text content comfortably under the Open API's
// message body size cap.
const maxMessageRunes = 10000

// Client wraps the Lark Open API behind the bridge.Client interface. Every
// call is bounded by the configured timeout.
type Client struct {
	api     *lark.Client
	timeout time.Duration
}

// New builds a Client. baseDomain overrides the API endpoint for
// Feishu-vs-Lark tenancy and may be empty.
func New(appID, appSecret, baseDomain string, timeout time.Duration) *Client {
	var opts []lark.ClientOptionFunc
	if baseDomain != "" {
		opts = append(opts, lark.WithOpenBaseUrl(baseDomain))
	}
	return &Client{
		api:     lark.NewClient(appID, appSecret, opts...),
		timeout: timeout,
	}
}

// SendMessage sends req to a chat. A non-empty ThreadID replies to that
// message instead of opening a new top-level one; a non-empty credential
// sends with that user access token.
func (c *Client) SendMessage(ctx context.Context, req bridge.SendRequest) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqOpts []larkcore.RequestOptionFunc
	if req.Credential != "" {
		reqOpts = append(reqOpts, larkcore.WithUserAccessToken(req.Credential))
	}

	for _, chunk := range platform.SplitText(req.Text, maxMessageRunes) {
		if err := c.sendChunk(ctx, req, chunk, reqOpts); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendChunk(ctx context.Context, req bridge.SendRequest, text string, reqOpts []larkcore.RequestOptionFunc) error {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("lark encode content: %w", err)
	}

	if req.ThreadID != "" {
		reply := larkim.NewReplyMessageReqBuilder().
			MessageId(req.ThreadID).
			Body(larkim.NewReplyMessageReqBodyBuilder().
				MsgType("text").
				Content(string(content)).
				Build()).
			Build()
		resp, err := c.api.Im.Message.Reply(ctx, reply, reqOpts...)
		if err != nil {
			return fmt.Errorf("lark reply in %s: %w", req.ChatID, err)
		}
		if !resp.Success() {
			return fmt.Errorf("lark reply in %s: code %d: %s", req.ChatID, resp.Code, resp.Msg)
		}
		return nil
	}

	create := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(req.ChatID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()
	resp, err := c.api.Im.Message.Create(ctx, create, reqOpts...)
	if err != nil {
		return fmt.Errorf("lark send to %s: %w", req.ChatID, err)
	}
	if !resp.Success() {
		return fmt.Errorf("lark send to %s: code %d: %s", req.ChatID, resp.Code, resp.Msg)
	}
	return nil
}

// ListChannels pages through the chats the bridge's app has joined.
func (c *Client) ListChannels(ctx context.Context, workspaceID string) ([]bridge.ChannelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var channels []bridge.ChannelInfo
	pageToken := ""
	for {
		builder := larkim.NewListChatReqBuilder().PageSize(100)
		if pageToken != "" {
			builder.PageToken(pageToken)
		}
		resp, err := c.api.Im.Chat.List(ctx, builder.Build())
		if err != nil {
			return nil, fmt.Errorf("lark list chats: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("lark list chats: code %d: %s", resp.Code, resp.Msg)
		}

		for _, chat := range resp.Data.Items {
			channels = append(channels, bridge.ChannelInfo{
				ID:          deref(chat.ChatId),
				Name:        deref(chat.Name),
				IsShared:    chat.External != nil && *chat.External,
				WorkspaceID: workspaceID,
			})
		}

		if resp.Data.HasMore == nil || !*resp.Data.HasMore {
			break
		}
		pageToken = deref(resp.Data.PageToken)
	}

	logger.DebugCF("lark", "Chat list fetched", map[string]any{"chats": len(channels)})
	return channels, nil
}

// ResolveUser fetches one user's profile by open id.
func (c *Client) ResolveUser(ctx context.Context, userID string) (*bridge.UserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := larkcontact.NewGetUserReqBuilder().
		UserId(userID).
		UserIdType(larkcontact.UserIdTypeOpenId).
		Build()
	resp, err := c.api.Contact.User.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lark user info %s: %w", userID, err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("lark user info %s: code %d: %s", userID, resp.Code, resp.Msg)
	}

	user := resp.Data.User
	if user == nil {
		return nil, fmt.Errorf("lark user info %s: empty response", userID)
	}
	return &bridge.UserInfo{
		ID:          deref(user.OpenId),
		DisplayName: deref(user.Name),
		Alias:       deref(user.Nickname),
		Handle:      deref(user.EnName),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
