package mention

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
)

// larkAtTag matches the <at user_id="...">name</at> markup Lark embeds in
// message text.
var larkAtTag = regexp.MustCompile(`<at\s+user_id="([^"]*)"\s*>([^<]*)</at>`)

// DecodeLark rewrites Lark mention markup to the neutral @displayName form.
// Tokens whose identity carries a genuine end-user id become "@Name"; tokens
// with a missing or empty user id are bot/app mentions and are removed, with
// the surrounding whitespace collapsed to a single space. An empty token list
// leaves tag-free text unmodified.
func DecodeLark(text string, tokens []Token) string {
	if text == "" {
		return text
	}
	if len(tokens) == 0 && !strings.Contains(text, "<at") {
		return text
	}

	out := text
	if len(tokens) > 0 {
		// Replace longer keys first so @_user_1 cannot corrupt @_user_10.
		sorted := make([]Token, len(tokens))
		copy(sorted, tokens)
		sort.Slice(sorted, func(i, j int) bool {
			if len(sorted[i].Key) != len(sorted[j].Key) {
				return len(sorted[i].Key) > len(sorted[j].Key)
			}
			return sorted[i].Key > sorted[j].Key
		})

		for _, tok := range sorted {
			key := strings.TrimSpace(tok.Key)
			if key == "" {
				continue
			}
			if strings.TrimSpace(tok.UserID) == "" {
				out = removeToken(out, key)
				continue
			}
			name := strings.TrimSpace(tok.Name)
			if name == "" {
				name = strings.TrimSpace(tok.UserID)
			}
			out = strings.ReplaceAll(out, key, "@"+name)
		}
	}

	if strings.Contains(out, "<at") {
		out = larkAtTag.ReplaceAllStringFunc(out, func(m string) string {
			sub := larkAtTag.FindStringSubmatch(m)
			if len(sub) != 3 {
				return m
			}
			userID := strings.TrimSpace(sub[1])
			name := strings.TrimSpace(sub[2])
			if userID == "" || userID == "all" {
				return ""
			}
			if name == "" {
				name = userID
			}
			return "@" + name
		})
	}

	return strings.TrimSpace(out)
}

// removeToken deletes every occurrence of key, collapsing the whitespace run
// produced by the removal into a single space. Whitespace elsewhere in the
// text is untouched.
func removeToken(text, key string) string {
	re := regexp.MustCompile(`[ \t]*` + regexp.QuoteMeta(key) + `[ \t]*`)
	return re.ReplaceAllString(text, " ")
}

// EncodeLark rewrites neutral @displayName mentions into Lark's
// <at user_id="...">name</at> markup for names the resolver can place.
func EncodeLark(ctx context.Context, text string, resolve Resolver) string {
	return encodeNeutral(ctx, text, resolve, func(u *bridge.UserInfo) string {
		name := u.DisplayName
		if name == "" {
			name = u.ID
		}
		return `<at user_id="` + u.ID + `">` + name + `</at>`
	})
}
