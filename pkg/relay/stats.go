package relay

import (
	"sync/atomic"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
)

// Stats counts relayed messages per direction.
type Stats struct {
	slackToLark atomic.Int64
	larkToSlack atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	SlackToLark int64 `json:"slack_to_lark"`
	LarkToSlack int64 `json:"lark_to_slack"`
}

func (s *Stats) record(source bridge.Platform) {
	if source == bridge.PlatformSlack {
		s.slackToLark.Add(1)
	} else {
		s.larkToSlack.Add(1)
	}
}

// Snapshot returns the current counts.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		SlackToLark: s.slackToLark.Load(),
		LarkToSlack: s.larkToSlack.Load(),
	}
}
