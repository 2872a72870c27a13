package mention

import (
	"context"
	"testing"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
)

func TestDecodeLark_NamedUserToken(t *testing.T) {
	tokens := []Token{{Key: "@_user_1", Name: "A", UserID: "u1"}}
	got := DecodeLark("@_user_1 hi", tokens)
	if got != "@A hi" {
		t.Errorf("expected %q, got %q", "@A hi", got)
	}
}

func TestDecodeLark_BotTokenRemoved(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		tokens []Token
		want   string
	}{
		{
			name:   "empty user id",
			text:   "@_user_1 deploy now",
			tokens: []Token{{Key: "@_user_1", Name: "buildbot", UserID: ""}},
			want:   "deploy now",
		},
		{
			name:   "only system tokens yield empty",
			text:   "@_user_1 @_user_2",
			tokens: []Token{{Key: "@_user_1"}, {Key: "@_user_2"}},
			want:   "",
		},
		{
			name:   "token in the middle collapses to single space",
			text:   "before @_user_1 after",
			tokens: []Token{{Key: "@_user_1"}},
			want:   "before after",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeLark(tt.text, tt.tokens); got != tt.want {
				t.Errorf("DecodeLark(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestDecodeLark_Idempotent(t *testing.T) {
	tokens := []Token{
		{Key: "@_user_1", Name: "Alice", UserID: "ou_1"},
		{Key: "@_user_2", UserID: ""},
	}
	texts := []string{
		"@_user_1 please review @_user_2",
		"plain text, no tokens",
		"multi\nline @_user_1 text",
	}
	for _, text := range texts {
		once := DecodeLark(text, tokens)
		twice := DecodeLark(once, tokens)
		if once != twice {
			t.Errorf("decode not idempotent for %q: %q != %q", text, once, twice)
		}
	}
}

func TestDecodeLark_EmptyTokenListUnmodified(t *testing.T) {
	text := "  raw text with   odd spacing\nand newline "
	if got := DecodeLark(text, nil); got != text {
		// Tag-free text with no tokens must pass through untouched.
		t.Errorf("expected unmodified text, got %q", got)
	}
}

func TestDecodeLark_LongerKeysFirst(t *testing.T) {
	tokens := []Token{
		{Key: "@_user_1", Name: "One", UserID: "u1"},
		{Key: "@_user_10", Name: "Ten", UserID: "u10"},
	}
	got := DecodeLark("@_user_10 and @_user_1", tokens)
	want := "@Ten and @One"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDecodeLark_AtTags(t *testing.T) {
	got := DecodeLark(`hello <at user_id="ou_9">Bob</at>, ping <at user_id="all">everyone</at>`, nil)
	want := "hello @Bob, ping"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestEncodeLark(t *testing.T) {
	resolve := func(_ context.Context, name string) (*bridge.UserInfo, bool) {
		if name == "Alice" {
			return &bridge.UserInfo{ID: "ou_alice", DisplayName: "Alice"}, true
		}
		return nil, false
	}

	got := EncodeLark(context.Background(), "cc @Alice and @Nobody", resolve)
	want := `cc <at user_id="ou_alice">Alice</at> and @Nobody`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestEncode_CJKNames(t *testing.T) {
	resolved := map[string]string{
		"田中":   "ou_tanaka",
		"さくら":  "ou_sakura",
		"カタカナ": "ou_kata",
	}
	resolve := func(_ context.Context, name string) (*bridge.UserInfo, bool) {
		if id, ok := resolved[name]; ok {
			return &bridge.UserInfo{ID: id, DisplayName: name}, true
		}
		return nil, false
	}

	got := EncodeLark(context.Background(), "@田中 @さくら @カタカナ よろしく", resolve)
	want := `<at user_id="ou_tanaka">田中</at> <at user_id="ou_sakura">さくら</at> <at user_id="ou_kata">カタカナ</at> よろしく`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestEncode_EmailLocalPartStillMatches(t *testing.T) {
	// "test@example.com" mention-matches on the local part "example".
	// Preserved for behavioral parity; flagged for product review in
	// DESIGN.md rather than silently fixed.
	resolve := func(_ context.Context, name string) (*bridge.UserInfo, bool) {
		if name == "example" {
			return &bridge.UserInfo{ID: "ou_ex", DisplayName: "example"}, true
		}
		return nil, false
	}
	got := EncodeLark(context.Background(), "mail test@example.com", resolve)
	want := `mail test<at user_id="ou_ex">example</at>.com`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
