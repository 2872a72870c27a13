// Package bridge defines the canonical message model shared by both relay
// directions and the pipeline that carries one inbound delivery from a raw
// webhook payload to an outbound send.
package bridge

import "time"

// Platform identifies one side of the relay.
type Platform string

const (
	PlatformSlack Platform = "slack"
	PlatformLark  Platform = "lark"
)

// Other returns the opposite side of the relay.
func (p Platform) Other() Platform {
	if p == PlatformSlack {
		return PlatformLark
	}
	return PlatformSlack
}

// MentionRef is one mention token carried alongside a message. A ref with no
// resolvable user id and IsAutomatedAccount set represents a platform-internal
// system mention (@everyone, app mentions) and is dropped on rewrite.
type MentionRef struct {
	RawToken            string
	ResolvedUserID      string
	ResolvedDisplayName string
	IsAutomatedAccount  bool
}

// Message is the canonical, platform-agnostic form of one chat message.
// It is immutable once constructed; pipeline stages derive new values rather
// than mutating it.
type Message struct {
	SourcePlatform    Platform
	SourceChatID      string
	SourceThreadID    string
	SenderID          string
	SenderDisplayName string

	// SenderIsAutomated is derived purely from the source event's
	// sender-type field, never from the message body, so the loop guard
	// decision stays deterministic.
	SenderIsAutomated bool

	RawText   string
	Mentions  []MentionRef
	Timestamp time.Time
}

// ChannelInfo is one entry of a workspace's channel directory.
type ChannelInfo struct {
	ID          string
	Name        string
	IsShared    bool
	WorkspaceID string
}

// ChannelMapping maps a source channel to a destination channel. Mappings are
// created through the configuration surface; the router only reads them.
type ChannelMapping struct {
	SourcePlatform  Platform `json:"source_platform"`
	SourceChannelID string   `json:"source_channel_id"`
	TargetPlatform  Platform `json:"target_platform"`
	TargetChannelID string   `json:"target_channel_id"`
	Bidirectional   bool     `json:"bidirectional"`
}

// UserLink associates a person's identity on one platform with a credential
// on the other, letting them send as themselves. Records are replaced whole,
// never partially updated.
type UserLink struct {
	PlatformAID         string `json:"platform_a_id"`
	PlatformBID         string `json:"platform_b_id"`
	PlatformBCredential string `json:"platform_b_credential"`
	DisplayName         string `json:"display_name,omitempty"`
}
