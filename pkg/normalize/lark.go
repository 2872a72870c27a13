package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
	"github.com/tinyland-inc/larkbridge/pkg/logger"
)

// LarkNormalizer converts Lark webhook payloads into canonical messages. It
// understands both the current schema 2.0 header/event envelope and the
// legacy v1 flat envelope.
type LarkNormalizer struct {
	verificationToken string
	encryptKey        string
	lookup            bridge.UserLookup
}

// NewLark builds a LarkNormalizer. token is the configured verification
// token, empty to skip verification. lookup resolves sender display names and
// may be nil.
func NewLark(token string, lookup bridge.UserLookup) *LarkNormalizer {
	return &LarkNormalizer{verificationToken: token, lookup: lookup}
}

// WithEncryptKey enables decryption of encrypted webhook envelopes. An empty
// key leaves decryption off.
func (n *LarkNormalizer) WithEncryptKey(key string) *LarkNormalizer {
	n.encryptKey = key
	return n
}

// Normalize parses one Lark payload. Verification handshakes come back as a
// challenge echo; event types other than message receipt come back as a
// non-message result.
func (n *LarkNormalizer) Normalize(ctx context.Context, payload []byte) (*Result, error) {
	root := gjson.ParseBytes(payload)

	if encrypted := root.Get("encrypt"); encrypted.Exists() {
		if n.encryptKey == "" {
			return nil, fmt.Errorf("received encrypted payload but no encrypt key is configured")
		}
		plain, err := decryptLarkPayload(n.encryptKey, encrypted.String())
		if err != nil {
			return nil, fmt.Errorf("decrypt payload: %w", err)
		}
		root = gjson.ParseBytes(plain)
	}

	if challenge := root.Get("challenge"); challenge.Exists() {
		if err := n.verify(root.Get("token").String()); err != nil {
			return nil, err
		}
		return &Result{Challenge: challenge.String()}, nil
	}

	if root.Get("schema").String() == "2.0" {
		return n.normalizeV2(ctx, root)
	}
	if root.Get("uuid").Exists() || root.Get("event.type").Exists() {
		return n.normalizeV1(ctx, root)
	}

	logger.DebugC("normalize", "Lark payload matched no known envelope, ignoring")
	return notAMessage, nil
}

func (n *LarkNormalizer) verify(token string) error {
	if n.verificationToken != "" && token != n.verificationToken {
		return bridge.ErrInvalidVerificationToken
	}
	return nil
}

func (n *LarkNormalizer) normalizeV2(ctx context.Context, root gjson.Result) (*Result, error) {
	if err := n.verify(root.Get("header.token").String()); err != nil {
		return nil, err
	}
	if root.Get("header.event_type").String() != "im.message.receive_v1" {
		return notAMessage, nil
	}

	event := root.Get("event")
	msg := event.Get("message")
	senderID := larkUserID(event.Get("sender.sender_id"))
	senderType := event.Get("sender.sender_type").String()

	text := larkMessageText(msg.Get("message_type").String(), msg.Get("content").String())

	threadID := msg.Get("root_id").String()
	if threadID == "" {
		threadID = msg.Get("parent_id").String()
	}

	m := &bridge.Message{
		SourcePlatform:    bridge.PlatformLark,
		SourceChatID:      msg.Get("chat_id").String(),
		SourceThreadID:    threadID,
		SenderID:          senderID,
		SenderDisplayName: n.senderName(ctx, senderID),
		SenderIsAutomated: senderType != "" && senderType != "user",
		RawText:           text,
		Mentions:          larkMentions(msg.Get("mentions")),
		Timestamp:         parseEpoch(msg.Get("create_time").String()),
	}
	if m.SourceChatID == "" || m.SenderID == "" {
		return notAMessage, nil
	}
	return &Result{Message: m}, nil
}

func (n *LarkNormalizer) normalizeV1(ctx context.Context, root gjson.Result) (*Result, error) {
	if err := n.verify(root.Get("token").String()); err != nil {
		return nil, err
	}
	event := root.Get("event")
	if event.Get("type").String() != "message" {
		return notAMessage, nil
	}

	senderID := event.Get("open_id").String()
	if senderID == "" {
		senderID = event.Get("user_open_id").String()
	}
	chatID := event.Get("open_chat_id").String()
	if chatID == "" {
		chatID = event.Get("chat_id").String()
	}
	text := event.Get("text").String()
	if text == "" {
		text = larkMessageText(event.Get("msg_type").String(), event.Get("content").String())
	}

	m := &bridge.Message{
		SourcePlatform:    bridge.PlatformLark,
		SourceChatID:      chatID,
		SourceThreadID:    event.Get("root_id").String(),
		SenderID:          senderID,
		SenderDisplayName: n.senderName(ctx, senderID),
		SenderIsAutomated: event.Get("is_bot").Bool(),
		RawText:           text,
		Timestamp:         parseEpoch(root.Get("ts").String()),
	}
	if m.SourceChatID == "" || m.SenderID == "" {
		return notAMessage, nil
	}
	return &Result{Message: m}, nil
}

func (n *LarkNormalizer) senderName(ctx context.Context, senderID string) string {
	if n.lookup == nil || senderID == "" {
		return ""
	}
	u, err := n.lookup.ResolveUser(ctx, senderID)
	if err != nil || u == nil {
		return ""
	}
	return u.DisplayName
}

// larkUserID picks the first populated identifier from a sender_id or
// mention id object, in open_id, user_id, union_id order.
func larkUserID(id gjson.Result) string {
	for _, field := range []string{"open_id", "user_id", "union_id"} {
		if v := id.Get(field).String(); v != "" {
			return v
		}
	}
	return ""
}

func larkMentions(mentions gjson.Result) []bridge.MentionRef {
	if !mentions.IsArray() {
		return nil
	}
	var refs []bridge.MentionRef
	mentions.ForEach(func(_, m gjson.Result) bool {
		userID := larkUserID(m.Get("id"))
		refs = append(refs, bridge.MentionRef{
			RawToken:            m.Get("key").String(),
			ResolvedUserID:      userID,
			ResolvedDisplayName: m.Get("name").String(),
			IsAutomatedAccount:  userID == "",
		})
		return true
	})
	return refs
}

// larkMessageText extracts the human-readable body from a Lark content
// field. Content arrives as a JSON envelope for text and post messages; a
// payload that fails structured parsing is treated as literal text. That
// fallback is load-bearing and must never error.
func larkMessageText(messageType, content string) string {
	switch messageType {
	case "", "text":
		var envelope struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(content), &envelope); err == nil && envelope.Text != "" {
			return envelope.Text
		}
		return content
	case "post":
		return larkPostText(content)
	default:
		return ""
	}
}

// larkPostText flattens a rich-text post: title first, then each paragraph's
// text, link, and mention runs joined with newlines between paragraphs.
func larkPostText(content string) string {
	root := gjson.Parse(content)
	post := root.Get("post")
	if !post.Exists() {
		post = root
	}

	var doc gjson.Result
	found := false
	post.ForEach(func(_, lang gjson.Result) bool {
		doc = lang
		found = true
		return false // first language block only
	})
	if !found {
		return ""
	}

	var lines []string
	if title := doc.Get("title").String(); title != "" {
		lines = append(lines, title)
	}
	doc.Get("content").ForEach(func(_, paragraph gjson.Result) bool {
		var sb strings.Builder
		paragraph.ForEach(func(_, run gjson.Result) bool {
			switch run.Get("tag").String() {
			case "text":
				sb.WriteString(run.Get("text").String())
			case "a":
				if label := run.Get("text").String(); label != "" {
					sb.WriteString(label)
				} else {
					sb.WriteString(run.Get("href").String())
				}
			case "at":
				sb.WriteString("@" + run.Get("user_name").String())
			}
			return true
		})
		if line := sb.String(); line != "" {
			lines = append(lines, line)
		}
		return true
	})
	return strings.Join(lines, "\n")
}
