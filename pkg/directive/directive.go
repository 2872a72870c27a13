// Package directive detects explicit routing instructions placed at the
// start of message text, letting a sender pick the destination channel or
// thread for a single message.
package directive

import (
	"regexp"
	"strings"
)

// Directive is a parsed routing instruction. TargetChannel is a channel name
// or id the router still has to resolve; ThreadID is set only for the
// bracketed thread-reply form.
type Directive struct {
	TargetChannel string
	ThreadID      string
}

var (
	// [C0123ABCD|1700000000.000100] body
	threadForm = regexp.MustCompile(`(?s)^\[([A-Z][A-Za-z0-9]*)\|(\d+\.\d+)\]\s*(.*)$`)

	// C0123ABCD body — channel ids are uppercase-led and at least 9 chars,
	// which keeps ordinary sentence-initial words from matching.
	channelIDForm = regexp.MustCompile(`(?s)^([A-Z][A-Za-z0-9]{8,})\s+(\S.*)$`)

	// #general body — the whitespace after the name is required, so
	// "#generalNoSpace" and a mid-text "#123" are plain text.
	channelNameForm = regexp.MustCompile(`(?s)^#(\S+)\s+(.*)$`)
)

// Parse inspects text for a leading routing directive and returns the
// directive, if any, plus the message body. Text with no directive is
// returned unchanged, not trimmed.
func Parse(text string) (*Directive, string) {
	if m := threadForm.FindStringSubmatch(text); m != nil {
		return &Directive{TargetChannel: m[1], ThreadID: m[2]}, m[3]
	}
	if m := channelIDForm.FindStringSubmatch(text); m != nil {
		return &Directive{TargetChannel: m[1]}, m[2]
	}
	if strings.HasPrefix(text, "#") {
		if m := channelNameForm.FindStringSubmatch(text); m != nil {
			return &Directive{TargetChannel: m[1]}, m[2]
		}
	}
	return nil, text
}
