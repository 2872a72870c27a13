// Package mention parses and rewrites "@mention" markup between each
// platform's internal representation and a neutral "@displayName" form.
// Decode strips platform markup on the way in; encode re-targets neutral
// mentions to the destination platform's own markup on the way out.
package mention

import (
	"context"
	"regexp"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
)

// Token is one platform-delivered mention entry: the raw token as it appears
// in the message text, the display name, and the genuine end-user id. A token
// with an empty UserID is a bot/app/system mention and is removed on decode,
// never renamed.
type Token struct {
	Key    string
	Name   string
	UserID string
}

// Resolver looks up a destination-platform user for a display name seen in
// free text. The lookup is case-insensitive against display name, alias, and
// handle; a miss returns ok=false and the mention stays plain text.
type Resolver func(ctx context.Context, name string) (*bridge.UserInfo, bool)

// neutralMention matches "@" followed by word characters or CJK
// ideographic/kana characters. Human display names are frequently written in
// Han, Hiragana, or Katakana, so those scripts must match. A bare "@word"
// followed by "." and more word characters (an email address) still matches
// on the local part; that behavior is preserved deliberately.
var neutralMention = regexp.MustCompile(`@([\w\p{Han}\p{Hiragana}\p{Katakana}]+)`)

// encodeNeutral rewrites each neutral @name mention using render. Mentions
// that do not resolve are left untouched: an unresolved mention is still
// meaningful as plain text to a human reader.
func encodeNeutral(ctx context.Context, text string, resolve Resolver, render func(u *bridge.UserInfo) string) string {
	if text == "" || resolve == nil {
		return text
	}
	return neutralMention.ReplaceAllStringFunc(text, func(raw string) string {
		name := raw[1:] // strip "@"
		u, ok := resolve(ctx, name)
		if !ok || u == nil || u.ID == "" {
			return raw
		}
		return render(u)
	})
}
