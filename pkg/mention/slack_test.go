package mention

import (
	"context"
	"errors"
	"testing"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
)

type fakeLookup struct {
	users map[string]*bridge.UserInfo
}

func (f *fakeLookup) ResolveUser(_ context.Context, userID string) (*bridge.UserInfo, error) {
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func TestDecodeSlack(t *testing.T) {
	lookup := &fakeLookup{users: map[string]*bridge.UserInfo{
		"U111": {ID: "U111", DisplayName: "Alice"},
		"B222": {ID: "B222", DisplayName: "deploybot", IsBot: true},
	}}

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "label wins over lookup",
			text: "hi <@U111|alice.l>",
			want: "hi @alice.l",
		},
		{
			name: "lookup supplies display name",
			text: "hi <@U111>",
			want: "hi @Alice",
		},
		{
			name: "bot mention removed and gap collapsed",
			text: "ping <@B222> now",
			want: "ping now",
		},
		{
			name: "failed lookup degrades to raw id",
			text: "hi <@U999>",
			want: "hi @U999",
		},
		{
			name: "system mentions removed",
			text: "<!here> standup in 5 <!channel>",
			want: "standup in 5",
		},
		{
			name: "channel ref and link",
			text: "see <#C123|general> and <https://example.com|the docs>",
			want: "see #general and the docs",
		},
		{
			name: "bare link keeps url",
			text: "see <https://example.com/page>",
			want: "see https://example.com/page",
		},
		{
			name: "html entities unescaped",
			text: "a &lt;b&gt; &amp; c",
			want: "a <b> & c",
		},
		{
			name: "newlines preserved",
			text: "line one\nline two <@U111>",
			want: "line one\nline two @Alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeSlack(context.Background(), tt.text, lookup); got != tt.want {
				t.Errorf("DecodeSlack(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestDecodeSlack_Idempotent(t *testing.T) {
	lookup := &fakeLookup{users: map[string]*bridge.UserInfo{
		"U111": {ID: "U111", DisplayName: "Alice"},
	}}
	texts := []string{
		"<@U111> hello <!here> <#C1|general>",
		"plain text stays plain",
	}
	for _, text := range texts {
		once := DecodeSlack(context.Background(), text, lookup)
		twice := DecodeSlack(context.Background(), once, lookup)
		if once != twice {
			t.Errorf("decode not idempotent for %q: %q != %q", text, once, twice)
		}
	}
}

func TestEncodeSlack(t *testing.T) {
	resolve := func(_ context.Context, name string) (*bridge.UserInfo, bool) {
		if name == "Alice" {
			return &bridge.UserInfo{ID: "U111", DisplayName: "Alice"}, true
		}
		return nil, false
	}

	got := EncodeSlack(context.Background(), "cc @Alice and @Nobody", resolve)
	want := "cc <@U111> and @Nobody"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestEncodeSlack_NilResolverLeavesText(t *testing.T) {
	text := "cc @Alice"
	if got := EncodeSlack(context.Background(), text, nil); got != text {
		t.Errorf("expected unmodified text, got %q", got)
	}
}
