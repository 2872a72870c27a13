// Package normalize converts raw inbound webhook payloads into the canonical
// message form. Each platform's normalizer branches on the envelope's schema
// discriminator before extracting fields; unknown or future envelope versions
// come back as a non-message result rather than an error, so upstream API
// evolution never hard-fails the bridge.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
)

// Result is the outcome of normalizing one payload. Exactly one of the
// following holds: Message is set (a relayable chat message), Challenge is
// set (a verification handshake to echo), or neither (acknowledge and stop).
type Result struct {
	Message   *bridge.Message
	Challenge string
}

// IsMessage reports whether the payload carried a relayable chat message.
func (r *Result) IsMessage() bool {
	return r != nil && r.Message != nil
}

// notAMessage is the shared no-op result for event types the bridge
// acknowledges but does not relay.
var notAMessage = &Result{}

// parseEpoch turns a platform timestamp string into a time.Time. Slack sends
// "seconds.fraction", Lark sends epoch milliseconds. A value that parses as
// neither yields the zero time.
func parseEpoch(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if strings.Contains(raw, ".") {
		if sec, err := strconv.ParseFloat(raw, 64); err == nil {
			return time.Unix(0, int64(sec*float64(time.Second)))
		}
		return time.Time{}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	if n > 1e12 { // epoch milliseconds
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}
