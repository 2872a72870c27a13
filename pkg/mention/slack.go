package mention

import (
	"context"
	"regexp"
	"strings"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
)

var (
	slackUserMention = regexp.MustCompile(`<@([A-Z0-9]+)(?:\|([^>]*))?>`)
	slackSpecial     = regexp.MustCompile(`<!(?:channel|here|everyone)(?:\|[^>]*)?>|<!subteam\^[^>]*>`)
	slackChannelRef  = regexp.MustCompile(`<#([A-Z0-9]+)\|([^>]*)>`)
	slackLink        = regexp.MustCompile(`<(https?://[^>|]+)(?:\|([^>]*))?>`)
	spaceRun         = regexp.MustCompile(`[ \t]{2,}`)
)

// DecodeSlack rewrites Slack mrkdwn mention markup to the neutral
// @displayName form. <@U...> tokens resolve through lookup; tokens that
// resolve to a bot account, like <!channel>-style system mentions, are
// removed rather than renamed. A failed or timed-out lookup degrades to the
// raw user id, which is still meaningful to a human reader.
func DecodeSlack(ctx context.Context, text string, lookup bridge.UserLookup) string {
	if text == "" {
		return text
	}

	out := slackSpecial.ReplaceAllString(text, "")

	out = slackUserMention.ReplaceAllStringFunc(out, func(m string) string {
		sub := slackUserMention.FindStringSubmatch(m)
		if len(sub) != 3 {
			return m
		}
		id, label := sub[1], strings.TrimSpace(sub[2])
		if label != "" {
			return "@" + label
		}
		if lookup != nil {
			if u, err := lookup.ResolveUser(ctx, id); err == nil && u != nil {
				if u.IsBot {
					return ""
				}
				if u.DisplayName != "" {
					return "@" + u.DisplayName
				}
			}
		}
		return "@" + id
	})

	out = slackChannelRef.ReplaceAllString(out, "#$2")
	out = slackLink.ReplaceAllStringFunc(out, func(m string) string {
		sub := slackLink.FindStringSubmatch(m)
		if len(sub) != 3 {
			return m
		}
		if label := strings.TrimSpace(sub[2]); label != "" {
			return label
		}
		return sub[1]
	})

	out = strings.ReplaceAll(out, "&lt;", "<")
	out = strings.ReplaceAll(out, "&gt;", ">")
	out = strings.ReplaceAll(out, "&amp;", "&")

	// Collapse gaps left by removed system and bot mentions.
	out = spaceRun.ReplaceAllString(out, " ")

	return strings.TrimSpace(out)
}

// EncodeSlack rewrites neutral @displayName mentions into Slack's <@U...>
// markup for names the resolver can place.
func EncodeSlack(ctx context.Context, text string, resolve Resolver) string {
	return encodeNeutral(ctx, text, resolve, func(u *bridge.UserInfo) string {
		return "<@" + u.ID + ">"
	})
}
