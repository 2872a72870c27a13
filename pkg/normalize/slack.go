package normalize

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
	"github.com/tinyland-inc/larkbridge/pkg/logger"
)

// SlackNormalizer converts Slack webhook payloads into canonical messages.
// It understands the event_callback envelope, the url_verification
// handshake, and the legacy flat message envelope.
type SlackNormalizer struct {
	verificationToken string
	botUserID         string
	lookup            bridge.UserLookup
}

// NewSlack builds a SlackNormalizer. token is the configured verification
// token, empty to skip verification. botUserID is the bridge's own Slack user
// id, used to flag self-authored events. lookup may be nil.
func NewSlack(token, botUserID string, lookup bridge.UserLookup) *SlackNormalizer {
	return &SlackNormalizer{verificationToken: token, botUserID: botUserID, lookup: lookup}
}

// Normalize parses one Slack payload.
func (n *SlackNormalizer) Normalize(ctx context.Context, payload []byte) (*Result, error) {
	root := gjson.ParseBytes(payload)

	switch root.Get("type").String() {
	case "url_verification":
		if err := n.verify(root.Get("token").String()); err != nil {
			return nil, err
		}
		return &Result{Challenge: root.Get("challenge").String()}, nil

	case "event_callback":
		if err := n.verify(root.Get("token").String()); err != nil {
			return nil, err
		}
		return n.normalizeEvent(ctx, root.Get("event")), nil

	case "message":
		// Legacy flat envelope carries the message fields at top level.
		if err := n.verify(root.Get("token").String()); err != nil {
			return nil, err
		}
		return n.normalizeEvent(ctx, root), nil
	}

	logger.DebugC("normalize", "Slack payload matched no known envelope, ignoring")
	return notAMessage, nil
}

func (n *SlackNormalizer) verify(token string) error {
	if n.verificationToken != "" && token != n.verificationToken {
		return bridge.ErrInvalidVerificationToken
	}
	return nil
}

func (n *SlackNormalizer) normalizeEvent(ctx context.Context, event gjson.Result) *Result {
	if event.Get("type").String() != "message" {
		return notAMessage
	}

	subtype := event.Get("subtype").String()
	switch subtype {
	case "", "bot_message", "thread_broadcast", "file_share":
	default:
		// Edits, deletions, joins and the rest are channel noise, not
		// relayable messages.
		return notAMessage
	}

	senderID := event.Get("user").String()
	if senderID == "" {
		senderID = event.Get("bot_id").String()
	}

	automated := subtype == "bot_message" || event.Get("bot_id").Exists()
	if n.botUserID != "" && senderID == n.botUserID {
		automated = true
	}

	m := &bridge.Message{
		SourcePlatform:    bridge.PlatformSlack,
		SourceChatID:      event.Get("channel").String(),
		SourceThreadID:    event.Get("thread_ts").String(),
		SenderID:          senderID,
		SenderDisplayName: n.senderName(ctx, event, senderID),
		SenderIsAutomated: automated,
		RawText:           event.Get("text").String(),
		Timestamp:         parseEpoch(event.Get("ts").String()),
	}
	if m.SourceChatID == "" || m.SenderID == "" {
		return notAMessage
	}
	return &Result{Message: m}
}

func (n *SlackNormalizer) senderName(ctx context.Context, event gjson.Result, senderID string) string {
	if name := event.Get("username").String(); name != "" {
		return name
	}
	if n.lookup == nil || senderID == "" {
		return ""
	}
	u, err := n.lookup.ResolveUser(ctx, senderID)
	if err != nil || u == nil {
		return ""
	}
	return u.DisplayName
}
