// Package identity decides which credential an outbound message is sent
// with. A sender with a stored account link posts as themselves on the other
// platform; everyone else posts through the bridge's default credential with
// a source-attribution prefix.
package identity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
	"github.com/tinyland-inc/larkbridge/pkg/logger"
)

// linkBucket holds UserLink records keyed by "<platform>:<userID>".
const linkBucket = "user_links"

// Kind discriminates how an outbound message is attributed.
type Kind string

const (
	// KindLinked sends with the sender's own linked credential; recipients
	// see the message as coming from that person directly.
	KindLinked Kind = "linked"
	// KindDefault sends with the bridge's default credential and a
	// source-attribution prefix.
	KindDefault Kind = "default"
)

// SendAs describes the identity an outbound message is dispatched under.
type SendAs struct {
	Kind        Kind
	Credential  string
	DisplayName string
	// Prefix is "[Slack: name]" style attribution, set only for KindDefault.
	Prefix string
}

// Resolver reads UserLink records. Links are written by the account-linking
// surface; the resolver only reads.
type Resolver struct {
	store bridge.Store

	// fallback holds per-target-platform credentials used for senders
	// without a link, keyed by the platform being sent to.
	fallback map[bridge.Platform]string
}

// NewResolver builds a Resolver over store.
func NewResolver(store bridge.Store) *Resolver {
	return &Resolver{store: store}
}

// WithFallbackCredential sets a credential used for every unlinked sender
// whose message is relayed to target. The attribution prefix still applies;
// the fallback only changes which token the message is posted with.
func (r *Resolver) WithFallbackCredential(target bridge.Platform, credential string) *Resolver {
	if r.fallback == nil {
		r.fallback = make(map[bridge.Platform]string)
	}
	r.fallback[target] = credential
	return r
}

// LinkKey is the store key for a user's link record.
func LinkKey(platform bridge.Platform, userID string) string {
	return string(platform) + ":" + userID
}

// ResolveSender picks the send identity for msg. A store failure degrades to
// the default identity; identity lookup problems never block a relay.
func (r *Resolver) ResolveSender(msg *bridge.Message) SendAs {
	if r.store != nil {
		raw, ok, err := r.store.Get(linkBucket, LinkKey(msg.SourcePlatform, msg.SenderID))
		if err != nil {
			logger.WarnCF("identity", "Link lookup failed, sending as default", map[string]any{
				"sender": msg.SenderID,
				"error":  err.Error(),
			})
		} else if ok {
			var link bridge.UserLink
			if err := json.Unmarshal(raw, &link); err != nil {
				logger.WarnCF("identity", "Corrupt link record, sending as default", map[string]any{
					"sender": msg.SenderID,
					"error":  err.Error(),
				})
			} else if link.PlatformBCredential != "" {
				name := link.DisplayName
				if name == "" {
					name = msg.SenderDisplayName
				}
				return SendAs{
					Kind:        KindLinked,
					Credential:  link.PlatformBCredential,
					DisplayName: name,
				}
			}
		}
	}

	name := msg.SenderDisplayName
	if name == "" {
		name = msg.SenderID
	}
	return SendAs{
		Kind:       KindDefault,
		Credential: r.fallback[msg.SourcePlatform.Other()],
		Prefix:     fmt.Sprintf("[%s: %s]", platformLabel(msg.SourcePlatform), name),
	}
}

// CounterpartFor returns the linked destination-platform user for a display
// name, matched case-insensitively against stored link records. Used when
// re-encoding mentions for the destination platform.
func (r *Resolver) CounterpartFor(sourcePlatform bridge.Platform, name string) (*bridge.UserInfo, bool) {
	if r.store == nil {
		return nil, false
	}
	records, err := r.store.List(linkBucket)
	if err != nil {
		logger.DebugCF("identity", "Link scan failed", map[string]any{"error": err.Error()})
		return nil, false
	}
	prefix := string(sourcePlatform) + ":"
	for key, raw := range records {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		var link bridge.UserLink
		if err := json.Unmarshal(raw, &link); err != nil {
			continue
		}
		if strings.EqualFold(link.DisplayName, name) {
			return &bridge.UserInfo{ID: link.PlatformBID, DisplayName: link.DisplayName}, true
		}
	}
	return nil, false
}

func platformLabel(p bridge.Platform) string {
	switch p {
	case bridge.PlatformSlack:
		return "Slack"
	case bridge.PlatformLark:
		return "Lark"
	default:
		return string(p)
	}
}
